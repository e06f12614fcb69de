package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anikchand/videotube/internal/tokens"
)

const userIDKey = "userID"

// Guard verifies access tokens on protected routes. It accepts the token
// from the Authorization bearer header or the accessToken cookie, in that
// order.
type Guard struct {
	Codec *tokens.Codec
}

func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			if cookie, err := c.Cookie("accessToken"); err == nil {
				raw = cookie.Value
			}
		}
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "access token missing")
		}

		subject, err := g.Codec.Verify(raw, tokens.KindAccess)
		if err != nil {
			if errors.Is(err, tokens.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		id, err := strconv.ParseUint(subject, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		c.Set(userIDKey, uint(id))
		return next(c)
	}
}

// UserID returns the authenticated user id set by RequireLogin.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(userIDKey).(uint)
	return id, ok
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
