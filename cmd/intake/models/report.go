package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus represents the triage status of a report
type ReportStatus string

const (
	StatusNew        ReportStatus = "new"
	StatusTriage     ReportStatus = "triage"
	StatusInProgress ReportStatus = "in_progress"
	StatusClosed     ReportStatus = "closed"
)

// Valid reports whether s is a known status
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusNew, StatusTriage, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Contact identifies a non-anonymous reporter.
// Present iff the report is not anonymous.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Attachment is verified, relocated file evidence embedded in a report.
// StoragePath always lives under the owning report's namespace.
type Attachment struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Report is the durable record of a submitted claim
// Maps to: report table
type Report struct {
	ID          uuid.UUID    `db:"report_id" json:"id"`
	Type        string       `db:"case_type" json:"type"`
	Details     string       `db:"details" json:"details"`
	IsAnonymous bool         `db:"is_anonymous" json:"isAnonymous"`
	Contact     *Contact     `db:"contact" json:"contact"`
	Status      ReportStatus `db:"status" json:"status"`
	AssignedTo  *string      `db:"assigned_to" json:"assignedTo"`

	// Empty at creation; populated only after every declared attachment
	// is verified and relocated. An empty set between creation and
	// finalization means "processing", not an error.
	Attachments []Attachment `db:"attachments" json:"attachments"`

	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	LastUpdateAt time.Time `db:"last_update_at" json:"lastUpdateAt"`
}

// UpdateLogEntry is an append-only audit record, child of a report.
// Never mutated or deleted after creation.
type UpdateLogEntry struct {
	UpdateID  uuid.UUID `db:"update_id" json:"updateId"`
	ReportID  uuid.UUID `db:"report_id" json:"reportId"`
	At        time.Time `db:"at" json:"at"`
	Actor     *string   `db:"actor" json:"actor"`
	Note      *string   `db:"note" json:"note,omitempty"`
	OldStatus *string   `db:"old_status" json:"oldStatus,omitempty"`
	NewStatus *string   `db:"new_status" json:"newStatus,omitempty"`
}
