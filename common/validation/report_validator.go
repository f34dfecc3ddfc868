package validation

import (
	"fmt"
	"strings"
)

const (
	maxNameLen    = 200
	minTypeLen    = 2
	maxTypeLen    = 100
	minDetailsLen = 10
	maxDetailsLen = 10000
	maxContactLen = 200
)

// Limits bounds the attachment declarations; values come from config so
// there is one source of truth for the intake pipeline.
type Limits struct {
	MaxAttachments    int
	MaxAttachmentSize int64
}

// FileDeclaration is a client-declared file awaiting an upload grant
type FileDeclaration struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// AttachmentDeclaration references an already-staged object at submit time
type AttachmentDeclaration struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	StoragePath string `json:"storagePath"`
}

// Contact identifies a non-anonymous reporter
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// SubmitRequest is the raw create-report body
type SubmitRequest struct {
	RecaptchaToken string                  `json:"recaptchaToken"`
	UploadID       string                  `json:"uploadId"`
	Type           string                  `json:"type"`
	Details        string                  `json:"details"`
	IsAnonymous    bool                    `json:"isAnonymous"`
	Contact        *Contact                `json:"contact,omitempty"`
	Attachments    []AttachmentDeclaration `json:"attachments"`
}

// Submission is an accepted, normalized submit request. Contact is nil
// whenever the submission is anonymous, even if the client sent one.
type Submission struct {
	UploadID    string
	Type        string
	Details     string
	IsAnonymous bool
	Contact     *Contact
	Attachments []AttachmentDeclaration
}

// ReportValidator turns loose request bodies into typed, validated
// values or a structured list of rejection reasons.
type ReportValidator struct {
	limits Limits
}

// NewReportValidator creates a new report validator
func NewReportValidator(limits Limits) *ReportValidator {
	return &ReportValidator{limits: limits}
}

// ValidateFiles validates the stage-uploads file declarations
func (v *ReportValidator) ValidateFiles(files []FileDeclaration) []string {
	var reasons []string

	if len(files) == 0 {
		reasons = append(reasons, "at least one file is required")
	}
	if len(files) > v.limits.MaxAttachments {
		reasons = append(reasons, fmt.Sprintf("at most %d files are allowed", v.limits.MaxAttachments))
	}

	for i, f := range files {
		if f.Filename == "" || len(f.Filename) > maxNameLen {
			reasons = append(reasons, fmt.Sprintf("file %d: filename must be 1-%d characters", i, maxNameLen))
		}
		if f.ContentType == "" || len(f.ContentType) > maxNameLen {
			reasons = append(reasons, fmt.Sprintf("file %d: contentType must be 1-%d characters", i, maxNameLen))
		}
		if f.Size <= 0 || f.Size > v.limits.MaxAttachmentSize {
			reasons = append(reasons, fmt.Sprintf("file %d: size must be 1-%d bytes", i, v.limits.MaxAttachmentSize))
		}
	}

	return reasons
}

// ValidateSubmit validates a create-report body. On success the returned
// Submission is normalized: whitespace trimmed, contact dropped for
// anonymous reports.
func (v *ReportValidator) ValidateSubmit(req *SubmitRequest) (*Submission, []string) {
	var reasons []string

	caseType := strings.TrimSpace(req.Type)
	if len(caseType) < minTypeLen || len(caseType) > maxTypeLen {
		reasons = append(reasons, fmt.Sprintf("type must be %d-%d characters", minTypeLen, maxTypeLen))
	}

	details := strings.TrimSpace(req.Details)
	if len(details) < minDetailsLen || len(details) > maxDetailsLen {
		reasons = append(reasons, fmt.Sprintf("details must be %d-%d characters", minDetailsLen, maxDetailsLen))
	}

	if len(req.Attachments) > v.limits.MaxAttachments {
		reasons = append(reasons, fmt.Sprintf("at most %d attachments are allowed", v.limits.MaxAttachments))
	}

	if len(req.Attachments) > 0 && req.UploadID == "" {
		reasons = append(reasons, "uploadId is required when attachments are declared")
	}

	for i, a := range req.Attachments {
		if a.Filename == "" || len(a.Filename) > maxNameLen {
			reasons = append(reasons, fmt.Sprintf("attachment %d: filename must be 1-%d characters", i, maxNameLen))
		}
		if a.ContentType == "" || len(a.ContentType) > maxNameLen {
			reasons = append(reasons, fmt.Sprintf("attachment %d: contentType must be 1-%d characters", i, maxNameLen))
		}
		if a.Size < 0 || a.Size > v.limits.MaxAttachmentSize {
			reasons = append(reasons, fmt.Sprintf("attachment %d: size must be 0-%d bytes", i, v.limits.MaxAttachmentSize))
		}
		if a.StoragePath == "" {
			reasons = append(reasons, fmt.Sprintf("attachment %d: storagePath is required", i))
		} else if req.UploadID != "" && !strings.HasPrefix(a.StoragePath, "uploads/"+req.UploadID+"/") {
			reasons = append(reasons, fmt.Sprintf("attachment %d: storagePath is outside the upload batch", i))
		}
	}

	contact := req.Contact
	if req.IsAnonymous {
		// Anonymous submissions never persist contact data, even if the
		// client erroneously supplied some.
		contact = nil
	} else if contact != nil {
		if name := strings.TrimSpace(contact.Name); name == "" || len(name) > maxContactLen {
			reasons = append(reasons, fmt.Sprintf("contact.name must be 1-%d characters", maxContactLen))
		}
		email := strings.TrimSpace(contact.Email)
		if email == "" || len(email) > maxContactLen || !strings.Contains(email, "@") {
			reasons = append(reasons, "contact.email must be a valid address")
		}
		if len(contact.Phone) > maxContactLen {
			reasons = append(reasons, fmt.Sprintf("contact.phone must be at most %d characters", maxContactLen))
		}
	} else {
		reasons = append(reasons, "contact is required unless the report is anonymous")
	}

	if len(reasons) > 0 {
		return nil, reasons
	}

	return &Submission{
		UploadID:    req.UploadID,
		Type:        caseType,
		Details:     details,
		IsAnonymous: req.IsAnonymous,
		Contact:     contact,
		Attachments: req.Attachments,
	}, nil
}
