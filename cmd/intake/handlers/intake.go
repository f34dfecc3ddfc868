package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casedesk/intake/cmd/intake/service"
	"github.com/casedesk/intake/common/logger"
	"github.com/casedesk/intake/common/ratelimit"
	"github.com/casedesk/intake/common/validation"
)

// IntakeHandler handles the unauthenticated intake endpoints
type IntakeHandler struct {
	intake *service.IntakeService
	log    *logger.Logger
}

// NewIntakeHandler creates a new intake handler
func NewIntakeHandler(intake *service.IntakeService, log *logger.Logger) *IntakeHandler {
	return &IntakeHandler{
		intake: intake,
		log:    log,
	}
}

// stageRequest is the stage-uploads body
type stageRequest struct {
	RecaptchaToken string                       `json:"recaptchaToken"`
	Files          []validation.FileDeclaration `json:"files"`
}

// grantResponse is one signed upload grant
type grantResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	StoragePath string `json:"storagePath"`
	URL         string `json:"url"`
	Expires     int64  `json:"expires"`
}

// StageUploads issues signed upload grants for declared files
// POST /api/v1/reports/uploads
func (h *IntakeHandler) StageUploads(c echo.Context) error {
	var req stageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	batch, err := h.intake.StageUploads(c.Request().Context(), clientIdentity(c), req.RecaptchaToken, req.Files)
	if err != nil {
		return h.mapError(c, err)
	}

	signed := make([]grantResponse, 0, len(batch.Grants))
	for _, g := range batch.Grants {
		signed = append(signed, grantResponse{
			Filename:    g.Filename,
			ContentType: g.ContentType,
			StoragePath: g.StoragePath,
			URL:         g.URL,
			Expires:     g.Expires.Unix(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"uploadId": batch.UploadID,
		"signed":   signed,
	})
}

// CreateReport creates a report from staged attachments
// POST /api/v1/reports
func (h *IntakeHandler) CreateReport(c echo.Context) error {
	var req validation.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	caseID, err := h.intake.Submit(c.Request().Context(), clientIdentity(c), req.RecaptchaToken, &req)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"caseId": caseID.String(),
	})
}

// mapError translates service sentinels into the public error surface
func (h *IntakeHandler) mapError(c echo.Context, err error) error {
	var rateLimited *service.RateLimitedError
	if errors.As(err, &rateLimited) {
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error":               "rate_limit_exceeded",
			"retry_after_seconds": int64(rateLimited.RetryAfter.Seconds()),
		})
	}

	var invalid *service.InvalidInputError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_input",
			"reasons": invalid.Reasons,
		})
	}

	switch {
	case errors.Is(err, service.ErrAttestationFailed):
		// No details leaked to the submitter.
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "recaptcha_failed",
		})
	case errors.Is(err, service.ErrAttachmentsMissing):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "attachments_missing",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "not_found",
		})
	}

	h.log.Error("intake request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal_error",
	})
}

// clientIdentity derives the rate-limit identity from the request
func clientIdentity(c echo.Context) string {
	return ratelimit.ClientIdentity(
		c.Request().Header.Get("X-Forwarded-For"),
		c.Request().RemoteAddr,
	)
}
