package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/casedesk/intake/cmd/intake/container"
	"github.com/casedesk/intake/cmd/intake/handlers"
	"github.com/casedesk/intake/cmd/intake/middleware"
)

// RegisterAdminRoutes registers the authenticated back-office routes
func RegisterAdminRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAdminHandler(c.ReportService, c.Components.Logger)

	admin := e.Group("/api/v1/admin/reports", middleware.AdminAuth(c.Components.Config.Admin.Token))
	{
		admin.GET("", h.ListReports)                  // GET /api/v1/admin/reports?status=new
		admin.GET("/:id", h.GetReport)                // GET /api/v1/admin/reports/{report_id}
		admin.GET("/:id/updates", h.GetReportHistory) // GET /api/v1/admin/reports/{report_id}/updates
		admin.PATCH("/:id", h.UpdateReport)           // PATCH /api/v1/admin/reports/{report_id}
	}
}
