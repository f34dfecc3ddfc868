package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/common/logger"
	"github.com/casedesk/intake/common/queue"
	"github.com/casedesk/intake/common/ratelimit"
	"github.com/casedesk/intake/common/validation"
	"github.com/casedesk/intake/common/verify"
)

// ReportStore is the persistence surface the intake pipeline needs.
// The pgx repository implements it; tests substitute an in-memory fake.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	SetAttachments(ctx context.Context, reportID uuid.UUID, attachments []models.Attachment) error
}

// IntakeService composes the gate (rate limit + attestation), the upload
// stager, the attachment finalizer, and the report store into the two
// public operations
type IntakeService struct {
	limiter   ratelimit.Limiter
	verifier  verify.Verifier
	validator *validation.ReportValidator
	stager    *Stager
	finalizer *Finalizer
	reports   ReportStore
	queue     queue.Queue
	log       *logger.Logger
}

// NewIntakeService creates a new intake orchestrator
func NewIntakeService(
	limiter ratelimit.Limiter,
	verifier verify.Verifier,
	validator *validation.ReportValidator,
	stager *Stager,
	finalizer *Finalizer,
	reports ReportStore,
	notifyQueue queue.Queue,
	log *logger.Logger,
) *IntakeService {
	return &IntakeService{
		limiter:   limiter,
		verifier:  verifier,
		validator: validator,
		stager:    stager,
		finalizer: finalizer,
		reports:   reports,
		queue:     notifyQueue,
		log:       log,
	}
}

// StageUploads gates the caller, validates the declarations, and issues
// upload grants. Nothing is persisted.
func (s *IntakeService) StageUploads(ctx context.Context, identity, token string, files []validation.FileDeclaration) (*models.UploadBatch, error) {
	if err := s.admit(ctx, identity); err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, token); err != nil {
		return nil, ErrAttestationFailed
	}

	if reasons := s.validator.ValidateFiles(files); len(reasons) > 0 {
		return nil, &InvalidInputError{Reasons: reasons}
	}

	return s.stager.StageUploads(ctx, files)
}

// Submit gates the caller, validates the body, verifies the staged
// objects, creates the report, relocates the attachments into its
// namespace, and dispatches a best-effort notification.
//
// All failures before the report record is created abort with no side
// effects beyond the already-issued staging grants.
func (s *IntakeService) Submit(ctx context.Context, identity, token string, req *validation.SubmitRequest) (uuid.UUID, error) {
	if err := s.admit(ctx, identity); err != nil {
		return uuid.Nil, err
	}

	if err := s.verifier.Verify(ctx, token); err != nil {
		return uuid.Nil, ErrAttestationFailed
	}

	sub, reasons := s.validator.ValidateSubmit(req)
	if len(reasons) > 0 {
		return uuid.Nil, &InvalidInputError{Reasons: reasons}
	}

	if len(sub.Attachments) > 0 {
		if err := s.finalizer.VerifyStaged(ctx, sub.Attachments); err != nil {
			return uuid.Nil, err
		}
		if err := s.finalizer.ClaimBatch(ctx, sub.UploadID); err != nil {
			return uuid.Nil, err
		}
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:           uuid.New(),
		Type:         sub.Type,
		Details:      sub.Details,
		IsAnonymous:  sub.IsAnonymous,
		Contact:      toModelContact(sub.Contact),
		Status:       models.StatusNew,
		Attachments:  []models.Attachment{},
		CreatedAt:    now,
		LastUpdateAt: now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return uuid.Nil, err
	}

	// The report now exists; from here on the submitter's contract is
	// fulfilled and failures must not surface as request failures.
	if len(sub.Attachments) > 0 {
		relocated, err := s.finalizer.Relocate(ctx, report.ID, sub.Attachments)
		if err != nil {
			s.log.Error("attachment relocation incomplete, manual remediation needed",
				"report_id", report.ID,
				"relocated", len(relocated),
				"declared", len(sub.Attachments),
				"error", err,
			)
		}
		if len(relocated) > 0 {
			if err := s.reports.SetAttachments(ctx, report.ID, relocated); err != nil {
				s.log.Error("failed to record finalized attachments",
					"report_id", report.ID, "error", err)
			}
		}
	}

	s.publishCreated(ctx, report, len(sub.Attachments))

	return report.ID, nil
}

func (s *IntakeService) admit(ctx context.Context, identity string) error {
	decision, err := s.limiter.Admit(ctx, identity)
	if err != nil {
		// The limiter is an availability guard; its own outage must not
		// take the intake path down with it.
		s.log.Warn("rate limiter unavailable, admitting", "error", err)
		return nil
	}
	if !decision.Allowed {
		return &RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

func (s *IntakeService) publishCreated(ctx context.Context, report *models.Report, attachments int) {
	event := ReportCreatedEvent{
		ReportID:    report.ID.String(),
		Type:        report.Type,
		IsAnonymous: report.IsAnonymous,
		Attachments: attachments,
		CreatedAt:   report.CreatedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode notification event", "report_id", report.ID, "error", err)
		return
	}

	if err := s.queue.Publish(ctx, TopicReportCreated, report.ID.String(), payload); err != nil {
		s.log.Warn("failed to publish notification event", "report_id", report.ID, "error", err)
	}
}

func toModelContact(c *validation.Contact) *models.Contact {
	if c == nil {
		return nil
	}
	return &models.Contact{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
	}
}
