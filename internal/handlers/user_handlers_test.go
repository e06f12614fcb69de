package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anikchand/videotube/internal/models"
)

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodGet, "/api/v1/users/me", nil, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "creator", user.Username)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestMe_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/users/me", nil, withBearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodPost, "/api/v1/users/me/password", map[string]string{
		"old_password": "password123",
		"new_password": "password456",
	}, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	// Old password no longer works, the new one does.
	rec = env.do(http.MethodPost, "/api/v1/users/login", map[string]string{
		"identifier": "creator",
		"password":   "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, _ = login(t, env, "creator", "password456")
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodPost, "/api/v1/users/me/password", map[string]string{
		"old_password": "wrong",
		"new_password": "password456",
	}, withBearer(access))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodPatch, "/api/v1/users/me", map[string]string{
		"full_name": "Renamed Creator",
		"email":     "renamed@example.com",
	}, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, env.DB.Where("username = ?", "creator").First(&user).Error)
	assert.Equal(t, "Renamed Creator", user.FullName)
	assert.Equal(t, "renamed@example.com", user.Email)
}

func TestUpdateAccount_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodPatch, "/api/v1/users/me", map[string]string{
		"full_name": "Only Name",
	}, withBearer(access))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAvatarAndCoverImage(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "creator", "creator@example.com", "password123")
	access, _ := login(t, env, "creator", "password123")

	rec := env.do(http.MethodPost, "/api/v1/users/me/avatar", map[string]string{
		"url": "https://media.example.com/avatar.png",
	}, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/users/me/cover-image", map[string]string{
		"url": "https://media.example.com/cover.png",
	}, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, env.DB.Where("username = ?", "creator").First(&user).Error)
	assert.Equal(t, "https://media.example.com/avatar.png", user.AvatarURL)
	assert.Equal(t, "https://media.example.com/cover.png", user.CoverImageURL)

	rec = env.do(http.MethodPost, "/api/v1/users/me/avatar", map[string]string{}, withBearer(access))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
