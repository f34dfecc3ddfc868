package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/common/db"
)

// ErrNotFound is returned when no report exists with the given id
var ErrNotFound = errors.New("report not found")

const schema = `
	CREATE TABLE IF NOT EXISTS report (
		report_id      UUID PRIMARY KEY,
		case_type      TEXT NOT NULL,
		details        TEXT NOT NULL,
		is_anonymous   BOOLEAN NOT NULL,
		contact        JSONB,
		status         TEXT NOT NULL,
		assigned_to    TEXT,
		attachments    JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at     TIMESTAMPTZ NOT NULL,
		last_update_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_report_created_at ON report (created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_report_status ON report (status);

	CREATE TABLE IF NOT EXISTS report_update (
		update_id  UUID PRIMARY KEY,
		report_id  UUID NOT NULL REFERENCES report (report_id),
		at         TIMESTAMPTZ NOT NULL,
		actor      TEXT,
		note       TEXT,
		old_status TEXT,
		new_status TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_report_update_report ON report_update (report_id, at);
`

// InitSchema creates the report tables if they do not exist.
// Wired as the bootstrap DB init hook.
func InitSchema(database *db.DB) error {
	_, err := database.Exec(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("init report schema: %w", err)
	}
	return nil
}

// ReportRepository handles database operations for reports
type ReportRepository struct {
	db *db.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *db.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	contactJSON, err := marshalNullable(report.Contact)
	if err != nil {
		return fmt.Errorf("encode contact: %w", err)
	}

	attachmentsJSON, err := json.Marshal(attachmentsOrEmpty(report.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	query := `
		INSERT INTO report (
			report_id, case_type, details, is_anonymous, contact,
			status, assigned_to, attachments, created_at, last_update_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err = r.db.Exec(ctx, query,
		report.ID,
		report.Type,
		report.Details,
		report.IsAnonymous,
		contactJSON,
		report.Status,
		report.AssignedTo,
		string(attachmentsJSON),
		report.CreatedAt,
		report.LastUpdateAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// SetAttachments replaces the report's attachment list with the
// finalized set
func (r *ReportRepository) SetAttachments(ctx context.Context, reportID uuid.UUID, attachments []models.Attachment) error {
	attachmentsJSON, err := json.Marshal(attachmentsOrEmpty(attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE report SET attachments = $2 WHERE report_id = $1`,
		reportID, string(attachmentsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to set attachments: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const reportColumns = `
	report_id, case_type, details, is_anonymous, contact,
	status, assigned_to, attachments, created_at, last_update_at
`

// GetByID retrieves a report by its ID
func (r *ReportRepository) GetByID(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM report WHERE report_id = $1`,
		reportID,
	)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// List retrieves reports ordered by creation time descending, optionally
// filtered by status
func (r *ReportRepository) List(ctx context.Context, status *models.ReportStatus, limit int) ([]*models.Report, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if status != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+reportColumns+` FROM report WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			*status, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+reportColumns+` FROM report ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// Update applies a partial back-office update. last_update_at is bumped
// unconditionally; an update log entry is appended iff a note was
// supplied, carrying the status change when one happened.
func (r *ReportRepository) Update(ctx context.Context, reportID uuid.UUID, status *models.ReportStatus, assignedTo, note, actor *string) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var oldStatus string
		err := tx.QueryRow(ctx,
			`SELECT status FROM report WHERE report_id = $1 FOR UPDATE`,
			reportID,
		).Scan(&oldStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock report: %w", err)
		}

		now := time.Now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE report SET
				status = COALESCE($2, status),
				assigned_to = COALESCE($3, assigned_to),
				last_update_at = $4
			WHERE report_id = $1
		`, reportID, status, assignedTo, now)
		if err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		if note == nil {
			return nil
		}

		var oldPtr, newPtr *string
		if status != nil && string(*status) != oldStatus {
			newStatus := string(*status)
			oldPtr, newPtr = &oldStatus, &newStatus
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO report_update (update_id, report_id, at, actor, note, old_status, new_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), reportID, now, actor, note, oldPtr, newPtr)
		if err != nil {
			return fmt.Errorf("failed to append update log: %w", err)
		}

		return nil
	})
}

// ListUpdates retrieves the append-only update log for a report
func (r *ReportRepository) ListUpdates(ctx context.Context, reportID uuid.UUID) ([]*models.UpdateLogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT update_id, report_id, at, actor, note, old_status, new_status
		FROM report_update
		WHERE report_id = $1
		ORDER BY at ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report updates: %w", err)
	}
	defer rows.Close()

	var entries []*models.UpdateLogEntry
	for rows.Next() {
		entry := &models.UpdateLogEntry{}
		err := rows.Scan(
			&entry.UpdateID,
			&entry.ReportID,
			&entry.At,
			&entry.Actor,
			&entry.Note,
			&entry.OldStatus,
			&entry.NewStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report updates: %w", err)
	}

	return entries, nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	report := &models.Report{}
	var contactJSON *string
	var attachmentsJSON string

	err := row.Scan(
		&report.ID,
		&report.Type,
		&report.Details,
		&report.IsAnonymous,
		&contactJSON,
		&report.Status,
		&report.AssignedTo,
		&attachmentsJSON,
		&report.CreatedAt,
		&report.LastUpdateAt,
	)
	if err != nil {
		return nil, err
	}

	if contactJSON != nil {
		contact := &models.Contact{}
		if err := json.Unmarshal([]byte(*contactJSON), contact); err != nil {
			return nil, fmt.Errorf("decode contact: %w", err)
		}
		report.Contact = contact
	}

	report.Attachments = []models.Attachment{}
	if err := json.Unmarshal([]byte(attachmentsJSON), &report.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}

	return report, nil
}

func marshalNullable(contact *models.Contact) (*string, error) {
	if contact == nil {
		return nil, nil
	}
	data, err := json.Marshal(contact)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func attachmentsOrEmpty(attachments []models.Attachment) []models.Attachment {
	if attachments == nil {
		return []models.Attachment{}
	}
	return attachments
}
