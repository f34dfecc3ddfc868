package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casedesk/intake/cmd/intake/middleware"
	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/cmd/intake/service"
	"github.com/casedesk/intake/common/cache"
	"github.com/casedesk/intake/common/logger"
	"github.com/casedesk/intake/common/queue"
	"github.com/casedesk/intake/common/ratelimit"
	"github.com/casedesk/intake/common/storage"
	"github.com/casedesk/intake/common/validation"
)

const testAdminToken = "test-admin-token"

// memoryReportStore backs both the intake and admin surfaces in tests
type memoryReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*models.Report
	updates map[uuid.UUID][]*models.UpdateLogEntry
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{
		reports: make(map[uuid.UUID]*models.Report),
		updates: make(map[uuid.UUID][]*models.UpdateLogEntry),
	}
}

func (s *memoryReportStore) Create(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *report
	s.reports[report.ID] = &copied
	return nil
}

func (s *memoryReportStore) SetAttachments(ctx context.Context, reportID uuid.UUID, attachments []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return service.ErrNotFound
	}
	report.Attachments = attachments
	return nil
}

func (s *memoryReportStore) GetByID(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return nil, service.ErrNotFound
	}
	copied := *report
	return &copied, nil
}

func (s *memoryReportStore) List(ctx context.Context, status *models.ReportStatus, limit int) ([]*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Report, 0, len(s.reports))
	for _, report := range s.reports {
		if status != nil && report.Status != *status {
			continue
		}
		copied := *report
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memoryReportStore) Update(ctx context.Context, reportID uuid.UUID, status *models.ReportStatus, assignedTo, note, actor *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return service.ErrNotFound
	}
	if status != nil {
		report.Status = *status
	}
	if assignedTo != nil {
		report.AssignedTo = assignedTo
	}
	report.LastUpdateAt = time.Now().UTC()
	if note != nil {
		s.updates[reportID] = append(s.updates[reportID], &models.UpdateLogEntry{
			UpdateID: uuid.New(),
			ReportID: reportID,
			At:       report.LastUpdateAt,
			Actor:    actor,
			Note:     note,
		})
	}
	return nil
}

func (s *memoryReportStore) ListUpdates(ctx context.Context, reportID uuid.UUID) ([]*models.UpdateLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[reportID], nil
}

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(ctx context.Context, token string) error { return nil }

type testApp struct {
	e     *echo.Echo
	store *storage.MemoryStore
}

func newTestApp(t *testing.T, rateLimit int64) *testApp {
	t.Helper()
	log := logger.New("error", "text")
	store := storage.NewMemoryStore()
	reports := newMemoryReportStore()

	validator := validation.NewReportValidator(validation.Limits{
		MaxAttachments:    10,
		MaxAttachmentSize: 20 << 20,
	})
	stager := service.NewStager(store, 15*time.Minute, log)
	finalizer := service.NewFinalizer(store, service.NewMemoryClaimer(), log)

	intakeService := service.NewIntakeService(
		ratelimit.NewMemoryLimiter(rateLimit, time.Minute),
		acceptAllVerifier{},
		validator,
		stager,
		finalizer,
		reports,
		queue.NewMemoryQueue(log),
		log,
	)
	reportService := service.NewReportService(reports, cache.NewMemoryCache(log), log)

	e := echo.New()
	ih := NewIntakeHandler(intakeService, log)
	e.POST("/api/v1/reports/uploads", ih.StageUploads)
	e.POST("/api/v1/reports", ih.CreateReport)

	ah := NewAdminHandler(reportService, log)
	admin := e.Group("/api/v1/admin/reports", middleware.AdminAuth(testAdminToken))
	admin.GET("", ah.ListReports)
	admin.GET("/:id", ah.GetReport)
	admin.GET("/:id/updates", ah.GetReportHistory)
	admin.PATCH("/:id", ah.UpdateReport)

	return &testApp{e: e, store: store}
}

func (a *testApp) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "203.0.113.7:52100"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + testAdminToken,
		"X-Actor":       "agent.smith",
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEndToEndStageUploadSubmitGet(t *testing.T) {
	app := newTestApp(t, 100)
	ctx := context.Background()

	// Stage a single file.
	rec := app.request(t, http.MethodPost, "/api/v1/reports/uploads", map[string]interface{}{
		"recaptchaToken": "tok",
		"files": []map[string]interface{}{
			{"filename": "evidence.pdf", "contentType": "application/pdf", "size": 1024},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	staged := decode(t, rec)
	uploadID := staged["uploadId"].(string)
	require.Len(t, staged["signed"], 1)
	grant := staged["signed"].([]interface{})[0].(map[string]interface{})
	storagePath := grant["storagePath"].(string)

	// Simulate the client's direct upload against the granted path.
	require.NoError(t, app.store.Put(ctx, storagePath, "application/pdf", make([]byte, 1024)))

	// Submit the report referencing the staged object.
	rec = app.request(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"recaptchaToken": "tok",
		"uploadId":       uploadID,
		"type":           "harassment",
		"details":        "a sufficiently detailed description of the incident",
		"isAnonymous":    false,
		"contact":        map[string]string{"name": "Jamie Doe", "email": "jamie@example.com"},
		"attachments": []map[string]interface{}{
			{"filename": "evidence.pdf", "contentType": "application/pdf", "size": 1024, "storagePath": storagePath},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	caseID := decode(t, rec)["caseId"].(string)
	require.NotEmpty(t, caseID)

	// The back office sees the finalized report.
	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports/"+caseID, nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode(t, rec)
	assert.Equal(t, "new", report["status"])
	attachments := report["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]interface{})
	assert.Equal(t, float64(1024), att["size"])
	assert.Equal(t, fmt.Sprintf("reports/%s/attachments/evidence.pdf", caseID), att["storagePath"])
}

func TestSubmitUnstagedPathRejected(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.request(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"recaptchaToken": "tok",
		"uploadId":       "deadbeefdeadbeefdeadbeefdeadbeef",
		"type":           "harassment",
		"details":        "a sufficiently detailed description of the incident",
		"isAnonymous":    true,
		"attachments": []map[string]interface{}{
			{"filename": "a.pdf", "contentType": "application/pdf", "size": 100,
				"storagePath": "uploads/deadbeefdeadbeefdeadbeefdeadbeef/a.pdf"},
		},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "attachments_missing", decode(t, rec)["error"])

	// No report was left behind.
	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["items"])
}

func TestRateLimitExceededReturns429(t *testing.T) {
	app := newTestApp(t, 1)

	body := map[string]interface{}{
		"recaptchaToken": "tok",
		"files": []map[string]interface{}{
			{"filename": "a.pdf", "contentType": "application/pdf", "size": 1},
		},
	}

	rec := app.request(t, http.MethodPost, "/api/v1/reports/uploads", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.request(t, http.MethodPost, "/api/v1/reports/uploads", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "rate_limit_exceeded", resp["error"])
	assert.NotNil(t, resp["retry_after_seconds"])
}

func TestAdminUpdateAppendsLogEntry(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.request(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"recaptchaToken": "tok",
		"type":           "fraud",
		"details":        "a sufficiently detailed description of the incident",
		"isAnonymous":    true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	caseID := decode(t, rec)["caseId"].(string)

	rec = app.request(t, http.MethodPatch, "/api/v1/admin/reports/"+caseID, map[string]interface{}{
		"status":     "triage",
		"assignedTo": "agent.smith",
		"note":       "taking a first look",
	}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports/"+caseID, nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)
	assert.Equal(t, "triage", report["status"])
	assert.Equal(t, "agent.smith", report["assignedTo"])

	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports/"+caseID+"/updates", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]interface{})
	require.Len(t, items, 1)
	entry := items[0].(map[string]interface{})
	assert.Equal(t, "taking a first look", entry["note"])
	assert.Equal(t, "agent.smith", entry["actor"])
}

func TestAdminUpdateRejectsUnknownStatus(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.request(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"recaptchaToken": "tok",
		"type":           "fraud",
		"details":        "a sufficiently detailed description of the incident",
		"isAnonymous":    true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	caseID := decode(t, rec)["caseId"].(string)

	rec = app.request(t, http.MethodPatch, "/api/v1/admin/reports/"+caseID, map[string]interface{}{
		"status": "escalated",
	}, adminHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.request(t, http.MethodGet, "/api/v1/admin/reports", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports", nil, map[string]string{
		"Authorization": "Bearer wrong-token",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGetUnknownReport(t *testing.T) {
	app := newTestApp(t, 100)

	rec := app.request(t, http.MethodGet, "/api/v1/admin/reports/"+uuid.NewString(), nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/v1/admin/reports/not-a-uuid", nil, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
