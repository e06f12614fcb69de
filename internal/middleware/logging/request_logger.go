package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anikchand/videotube/internal/logging"
)

// RequestLogger attaches a per-request logger to the context and emits one
// completion line per request. The route pattern is logged instead of the
// raw path so lines for /users/42 and /users/43 aggregate together.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)

			l := base.With(
				"method", c.Request().Method,
				"route", c.Path(),
				"remote_ip", c.RealIP(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}

			req := c.Request().WithContext(logging.IntoContext(c.Request().Context(), l))
			c.SetRequest(req)

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			status := c.Response().Status

			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
				status = c.Response().Status
			}

			attrs := []any{
				"status", status,
				"elapsed_ms", elapsed.Milliseconds(),
				"bytes_out", c.Response().Size,
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}

			switch {
			case err != nil || status >= 500:
				l.Error("request_completed", attrs...)
			case status >= 400:
				l.Warn("request_completed", append(attrs, "user_agent", c.Request().UserAgent())...)
			default:
				l.Info("request_completed", attrs...)
			}
			return nil
		}
	}
}
