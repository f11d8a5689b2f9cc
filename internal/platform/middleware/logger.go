package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request. Session-scoped routes carry
// the workspace id so one consultation's chat, canvas and template traffic
// can be followed through the log.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			rid, _ := c.Get("request_id").(string)
			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if sid := sessionID(c); sid != "" {
				evt = evt.Str("session_id", sid)
			}
			evt.Msg("request")
			return err
		}
	}
}

// sessionID extracts the workspace id from session-scoped routes. Template
// and doctor routes share the :id param name, so the route path decides.
func sessionID(c echo.Context) string {
	if !strings.Contains(c.Path(), "/sessions/") {
		return ""
	}
	return c.Param("id")
}
