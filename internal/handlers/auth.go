package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/anikchand/videotube/internal/events"
	"github.com/anikchand/videotube/internal/hash"
	"github.com/anikchand/videotube/internal/logging"
	authmw "github.com/anikchand/videotube/internal/middleware/auth"
	"github.com/anikchand/videotube/internal/models"
	"github.com/anikchand/videotube/internal/service/search"
	"github.com/anikchand/videotube/internal/session"
)

// EventPublisher pushes user lifecycle events to the message broker.
// *events.Producer is the production implementation.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

var _ EventPublisher = (*events.Producer)(nil)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Service
	Producer EventPublisher
	Indexer  *search.Indexer
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, session.ErrPrincipalNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user does not exist")
	case errors.Is(err, session.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login credentials")
	case errors.Is(err, session.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
	case errors.Is(err, session.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *AuthHandler) publishEvent(c echo.Context, eventType string, user *models.User) {
	if h.Producer == nil {
		return
	}

	event := map[string]interface{}{
		"type":     eventType,
		"user_id":  user.ID,
		"username": user.Username,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, fmt.Sprint(user.ID), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "register")

	var req struct {
		Username      string `json:"username"`
		Email         string `json:"email"`
		Password      string `json:"password"`
		FullName      string `json:"full_name"`
		AvatarURL     string `json:"avatar_url"`
		CoverImageURL string `json:"cover_image_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields are required")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "reason", "password hash", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	user := models.User{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      strings.TrimSpace(req.FullName),
		PasswordHash:  pwHash,
		AvatarURL:     req.AvatarURL,
		CoverImageURL: req.CoverImageURL,
	}
	// Uniqueness is enforced by the indexes on username and email, so a
	// concurrent duplicate cannot slip through a lookup-then-create window.
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "user with email or username already exists")
		}
		l.Error("register_failed", "reason", "create", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publishEvent(c, "user_registered", &user)
	if err := h.Indexer.IndexUser(ctx, &user); err != nil {
		l.Error("search index error", "user_id", user.ID, "error", err)
	}

	l.Info("user_registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Identifier string `json:"identifier"`
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username or email and password are required")
	}

	res, err := h.Sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		return sessionHTTPError(err)
	}

	c.SetCookie(CreateCookie("accessToken", res.AccessToken, "/", res.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", res.RefreshToken, "/", res.RefreshExp))

	h.publishEvent(c, "user_logged_in", res.User)

	return c.JSON(http.StatusOK, echo.Map{
		"user":          res.User,
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
	})
}

// Refresh rotates the token pair. The refresh token is read from the
// refreshToken cookie, falling back to the request body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var submitted string
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		submitted = cookie.Value
	}
	if submitted == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.Bind(&req); err == nil {
			submitted = req.RefreshToken
		}
	}

	res, err := h.Sessions.Refresh(ctx, submitted)
	if err != nil {
		return sessionHTTPError(err)
	}

	c.SetCookie(CreateCookie("accessToken", res.AccessToken, "/", res.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", res.RefreshToken, "/", res.RefreshExp))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
	}

	if err := h.Sessions.Logout(ctx, userID); err != nil {
		return sessionHTTPError(err)
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	user := models.User{ID: userID}
	if err := h.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		logging.FromContext(ctx).Error("logout user lookup error", "user_id", userID, "error", err)
	}
	h.publishEvent(c, "user_logged_out", &user)

	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}
