package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminAuth guards the back-office routes with a bearer token.
// An empty configured token locks the surface entirely rather than
// leaving it open.
func AdminAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "admin access is not configured",
				})
			}

			header := c.Request().Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "bearer token required",
				})
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "invalid token",
				})
			}

			return next(c)
		}
	}
}

// Actor returns the optional back-office actor identity for audit
// logging, empty when the header is absent
func Actor(c echo.Context) *string {
	actor := strings.TrimSpace(c.Request().Header.Get("X-Actor"))
	if actor == "" {
		return nil
	}
	return &actor
}
