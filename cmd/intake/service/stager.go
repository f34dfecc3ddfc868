package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/common/logger"
	"github.com/casedesk/intake/common/storage"
	"github.com/casedesk/intake/common/validation"
)

const maxFilenameLen = 200

// Stager issues write-scoped upload grants for declared files.
// Nothing is persisted; the grants alone authorize the client's direct
// upload to the staging namespace.
type Stager struct {
	store       storage.ObjectStore
	grantExpiry time.Duration
	log         *logger.Logger
}

// NewStager creates a new upload stager
func NewStager(store storage.ObjectStore, grantExpiry time.Duration, log *logger.Logger) *Stager {
	return &Stager{
		store:       store,
		grantExpiry: grantExpiry,
		log:         log,
	}
}

// StageUploads issues one grant per declared file, in input order, all
// sharing a fresh upload batch id
func (s *Stager) StageUploads(ctx context.Context, files []validation.FileDeclaration) (*models.UploadBatch, error) {
	uploadID, err := NewUploadID()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}

	batch := &models.UploadBatch{
		UploadID: uploadID,
		Grants:   make([]models.FileGrant, 0, len(files)),
	}

	for _, f := range files {
		filename := SanitizeFilename(f.Filename)
		path := StagingPath(uploadID, filename)

		grant, err := s.store.PresignPut(ctx, path, f.ContentType, s.grantExpiry)
		if err != nil {
			return nil, fmt.Errorf("issue grant for %s: %w", filename, err)
		}

		batch.Grants = append(batch.Grants, models.FileGrant{
			Filename:    filename,
			ContentType: f.ContentType,
			StoragePath: path,
			URL:         grant.URL,
			Expires:     grant.Expires,
		})
	}

	s.log.Info("staged upload batch",
		"upload_id", uploadID,
		"files", len(batch.Grants),
	)

	return batch, nil
}

// NewUploadID generates a random 128-bit hex-encoded batch id
func NewUploadID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// SanitizeFilename replaces any character outside [A-Za-z0-9._-] with
// '_' and truncates to 200 characters. Idempotent and total.
func SanitizeFilename(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < maxFilenameLen; i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		case c == '.' || c == '_' || c == '-':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// StagingPath derives the deterministic staging location for a file
func StagingPath(uploadID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", uploadID, filename)
}

// FinalPath derives the permanent location under the owning report
func FinalPath(reportID, filename string) string {
	return fmt.Sprintf("reports/%s/attachments/%s", reportID, filename)
}
