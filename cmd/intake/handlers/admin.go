package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/casedesk/intake/cmd/intake/middleware"
	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/cmd/intake/service"
	"github.com/casedesk/intake/common/logger"
)

// AdminHandler handles the authenticated back-office endpoints
type AdminHandler struct {
	reports *service.ReportService
	log     *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reports *service.ReportService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		reports: reports,
		log:     log,
	}
}

// ListReports lists reports with optional status filter
// GET /api/v1/admin/reports?status=new&limit=50
func (h *AdminHandler) ListReports(c echo.Context) error {
	var status *models.ReportStatus
	if raw := c.QueryParam("status"); raw != "" {
		s := models.ReportStatus(raw)
		if !s.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "unknown status: " + raw,
			})
		}
		status = &s
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	reports, err := h.reports.List(c.Request().Context(), status, limit)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": reports,
	})
}

// GetReport retrieves a single report
// GET /api/v1/admin/reports/:id
func (h *AdminHandler) GetReport(c echo.Context) error {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid report id",
		})
	}

	report, err := h.reports.Get(c.Request().Context(), reportID)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, report)
}

// GetReportHistory retrieves the append-only update log
// GET /api/v1/admin/reports/:id/updates
func (h *AdminHandler) GetReportHistory(c echo.Context) error {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid report id",
		})
	}

	entries, err := h.reports.History(c.Request().Context(), reportID)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": entries,
	})
}

// updateRequest is the partial update body
type updateRequest struct {
	Status     *string `json:"status"`
	AssignedTo *string `json:"assignedTo"`
	Note       *string `json:"note"`
}

// UpdateReport applies a partial back-office update
// PATCH /api/v1/admin/reports/:id
func (h *AdminHandler) UpdateReport(c echo.Context) error {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid report id",
		})
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if req.Status == nil && req.AssignedTo == nil && req.Note == nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "nothing to update",
		})
	}

	update := service.ReportUpdate{
		AssignedTo: req.AssignedTo,
		Note:       req.Note,
	}
	if req.Status != nil {
		status := models.ReportStatus(*req.Status)
		update.Status = &status
	}

	if err := h.reports.Update(c.Request().Context(), reportID, update, middleware.Actor(c)); err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

func (h *AdminHandler) mapError(c echo.Context, err error) error {
	var invalid *service.InvalidInputError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_input",
			"reasons": invalid.Reasons,
		})
	}

	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "not_found",
		})
	}

	h.log.Error("admin request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal_error",
	})
}
