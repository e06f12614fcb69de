package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/anikchand/videotube/internal/hash"
	"github.com/anikchand/videotube/internal/logging"
	authmw "github.com/anikchand/videotube/internal/middleware/auth"
	"github.com/anikchand/videotube/internal/models"
	"github.com/anikchand/videotube/internal/service/search"
)

type UserHandler struct {
	DB      *gorm.DB
	Indexer *search.Indexer
}

func (h *UserHandler) currentUser(c echo.Context) (*models.User, error) {
	userID, ok := authmw.UserID(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request")
	}

	var user models.User
	err := h.DB.WithContext(c.Request().Context()).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "user does not exist")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return &user, nil
}

func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "change_password")

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields are required")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	if !hash.CheckPassword(user.PasswordHash, req.OldPassword) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid old password")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		l.Error("change_password_failed", "reason", "password hash", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.DB.WithContext(ctx).Model(user).Update("password_hash", pwHash).Error; err != nil {
		l.Error("change_password_failed", "reason", "update", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	l.Info("password_changed", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "password changed successfully",
	})
}

func (h *UserHandler) UpdateAccount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_account")

	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields are required")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"full_name": req.FullName,
		"email":     req.Email,
	}
	if err := h.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		l.Error("update_account_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.Indexer.IndexUser(ctx, user); err != nil {
		l.Error("search index error", "user_id", user.ID, "error", err)
	}

	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateAvatar(c echo.Context) error {
	return h.updateMediaURL(c, "avatar_url")
}

func (h *UserHandler) UpdateCoverImage(c echo.Context) error {
	return h.updateMediaURL(c, "cover_image_url")
}

// updateMediaURL persists a new media reference. The file itself lives on
// the external media host; only its URL is stored here.
func (h *UserHandler) updateMediaURL(c echo.Context, column string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_"+column)

	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	if err := h.DB.WithContext(ctx).Model(user).Update(column, strings.TrimSpace(req.URL)).Error; err != nil {
		l.Error("update_media_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.Indexer.IndexUser(ctx, user); err != nil {
		l.Error("search index error", "user_id", user.ID, "error", err)
	}

	return c.JSON(http.StatusOK, user)
}
