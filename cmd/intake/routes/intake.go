package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/casedesk/intake/cmd/intake/container"
	"github.com/casedesk/intake/cmd/intake/handlers"
)

// RegisterIntakeRoutes registers the public submission routes
func RegisterIntakeRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewIntakeHandler(c.IntakeService, c.Components.Logger)

	reports := e.Group("/api/v1/reports")
	{
		reports.POST("/uploads", h.StageUploads) // POST /api/v1/reports/uploads
		reports.POST("", h.CreateReport)         // POST /api/v1/reports
	}
}
