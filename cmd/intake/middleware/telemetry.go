package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casedesk/intake/common/telemetry"
)

// Telemetry records per-route request durations and counts abuse-gate
// rejections
func Telemetry(tel *telemetry.Telemetry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			tel.RecordDuration(c.Request().Method+" "+c.Path(), start)

			if c.Response().Status == http.StatusTooManyRequests {
				tel.RecordEvent("rate_limit_rejection", map[string]any{
					"path": c.Path(),
				})
			}

			return err
		}
	}
}
