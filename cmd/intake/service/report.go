package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/cmd/intake/repository"
	"github.com/casedesk/intake/common/cache"
	"github.com/casedesk/intake/common/logger"
)

const (
	maxListLimit     = 200
	defaultListLimit = 50
	reportCacheTTL   = 30 * time.Second
)

// AdminStore is the persistence surface the back-office needs
type AdminStore interface {
	GetByID(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	List(ctx context.Context, status *models.ReportStatus, limit int) ([]*models.Report, error)
	Update(ctx context.Context, reportID uuid.UUID, status *models.ReportStatus, assignedTo, note, actor *string) error
	ListUpdates(ctx context.Context, reportID uuid.UUID) ([]*models.UpdateLogEntry, error)
}

// ReportUpdate is a partial back-office update
type ReportUpdate struct {
	Status     *models.ReportStatus
	AssignedTo *string
	Note       *string
}

// ReportService handles back-office report operations
type ReportService struct {
	repo  AdminStore
	cache cache.Cache
	log   *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(repo AdminStore, reportCache cache.Cache, log *logger.Logger) *ReportService {
	return &ReportService{
		repo:  repo,
		cache: reportCache,
		log:   log,
	}
}

// List retrieves reports ordered by creation time descending
func (s *ReportService) List(ctx context.Context, status *models.ReportStatus, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	reports, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	return reports, nil
}

// Get retrieves a single report, read-through cached
func (s *ReportService) Get(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	key := cacheKey(reportID)

	if s.cache != nil {
		if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			report := &models.Report{}
			if err := json.Unmarshal(data, report); err == nil {
				return report, nil
			}
			// Corrupt entry; fall through to the store.
		}
	}

	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, key, data, reportCacheTTL); err != nil {
				s.log.Debug("report cache set failed", "report_id", reportID, "error", err)
			}
		}
	}

	return report, nil
}

// Update applies a partial update, bumping last_update_at and appending
// an update log entry iff a note was supplied
func (s *ReportService) Update(ctx context.Context, reportID uuid.UUID, update ReportUpdate, actor *string) error {
	if update.Status != nil && !update.Status.Valid() {
		return &InvalidInputError{Reasons: []string{"unknown status: " + string(*update.Status)}}
	}

	err := s.repo.Update(ctx, reportID, update.Status, update.AssignedTo, update.Note, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(reportID)); err != nil {
			s.log.Debug("report cache invalidation failed", "report_id", reportID, "error", err)
		}
	}

	s.log.Info("updated report",
		"report_id", reportID,
		"status_changed", update.Status != nil,
		"assignment_changed", update.AssignedTo != nil,
		"note", update.Note != nil,
	)

	return nil
}

// History retrieves the append-only update log for a report
func (s *ReportService) History(ctx context.Context, reportID uuid.UUID) ([]*models.UpdateLogEntry, error) {
	entries, err := s.repo.ListUpdates(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.UpdateLogEntry{}
	}
	return entries, nil
}

func cacheKey(reportID uuid.UUID) string {
	return "report:" + reportID.String()
}
