package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/anikchand/videotube/internal/handlers"
	authmw "github.com/anikchand/videotube/internal/middleware/auth"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	SearchHandler *handlers.SearchHandler
	Guard         *authmw.Guard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	users := v1.Group("/users")

	users.POST("/register", d.AuthHandler.Register)
	users.POST("/login", d.AuthHandler.Login)
	users.POST("/refresh-token", d.AuthHandler.Refresh)
	users.GET("/search", d.SearchHandler.Search)

	secured := users.Group("", d.Guard.RequireLogin)

	secured.POST("/logout", d.AuthHandler.Logout)
	secured.GET("/me", d.UserHandler.Me)
	secured.PATCH("/me", d.UserHandler.UpdateAccount)
	secured.POST("/me/password", d.UserHandler.ChangePassword)
	secured.POST("/me/avatar", d.UserHandler.UpdateAvatar)
	secured.POST("/me/cover-image", d.UserHandler.UpdateCoverImage)
}
