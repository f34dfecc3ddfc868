package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casedesk/intake/cmd/intake/models"
	"github.com/casedesk/intake/common/logger"
	redisclient "github.com/casedesk/intake/common/redis"
	"github.com/casedesk/intake/common/storage"
	"github.com/casedesk/intake/common/validation"
)

// UploadClaimer makes relocation exclusive per upload batch: two
// concurrent submits reusing one uploadId must not both relocate.
type UploadClaimer interface {
	Claim(ctx context.Context, uploadID string) (bool, error)
}

// RedisClaimer claims batches with SETNX. The TTL only garbage-collects
// claims for batches that never finished; a claim is never released.
type RedisClaimer struct {
	redis *redisclient.Client
	ttl   time.Duration
}

// NewRedisClaimer creates a new redis-backed claimer
func NewRedisClaimer(client *redisclient.Client) *RedisClaimer {
	return &RedisClaimer{
		redis: client,
		ttl:   time.Hour,
	}
}

// Claim attempts to take exclusive ownership of the upload batch
func (c *RedisClaimer) Claim(ctx context.Context, uploadID string) (bool, error) {
	return c.redis.SetNX(ctx, "upload_claim:"+uploadID, "1", c.ttl)
}

// MemoryClaimer is the in-process claimer for dev and tests
type MemoryClaimer struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewMemoryClaimer creates a new in-memory claimer
func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{claimed: make(map[string]struct{})}
}

// Claim attempts to take exclusive ownership of the upload batch
func (c *MemoryClaimer) Claim(ctx context.Context, uploadID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.claimed[uploadID]; exists {
		return false, nil
	}
	c.claimed[uploadID] = struct{}{}
	return true, nil
}

// Finalizer verifies staged objects against their declarations and
// relocates them into the owning report's namespace
type Finalizer struct {
	store  storage.ObjectStore
	claims UploadClaimer
	log    *logger.Logger
}

// NewFinalizer creates a new attachment finalizer
func NewFinalizer(store storage.ObjectStore, claims UploadClaimer, log *logger.Logger) *Finalizer {
	return &Finalizer{
		store:  store,
		claims: claims,
		log:    log,
	}
}

// VerifyStaged confirms every declared attachment exists at its staging
// path and matches the declared size exactly. Any miss fails the whole
// batch; partial success is not permitted.
func (f *Finalizer) VerifyStaged(ctx context.Context, declared []validation.AttachmentDeclaration) error {
	for _, att := range declared {
		info, err := f.store.Stat(ctx, att.StoragePath)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				f.log.Warn("declared attachment not staged", "path", att.StoragePath)
				return fmt.Errorf("%w: %s not staged", ErrAttachmentsMissing, att.Filename)
			}
			return fmt.Errorf("stat staged object %s: %w", att.StoragePath, err)
		}

		if att.Size > 0 && info.Size != att.Size {
			f.log.Warn("staged attachment size mismatch",
				"path", att.StoragePath,
				"declared", att.Size,
				"actual", info.Size,
			)
			return fmt.Errorf("%w: %s size mismatch", ErrAttachmentsMissing, att.Filename)
		}
	}

	return nil
}

// ClaimBatch takes exclusive ownership of the upload batch before any
// report is created, so a duplicate concurrent submit fails cleanly
// instead of leaving an attachment-less report behind.
func (f *Finalizer) ClaimBatch(ctx context.Context, uploadID string) error {
	claimed, err := f.claims.Claim(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("claim upload batch %s: %w", uploadID, err)
	}
	if !claimed {
		f.log.Warn("upload batch already consumed", "upload_id", uploadID)
		return fmt.Errorf("%w: upload batch already consumed", ErrAttachmentsMissing)
	}
	return nil
}

// Relocate moves each verified object from its staging path into the
// report's namespace. The move is the point of no return: once moved,
// the staging path no longer resolves.
//
// A mid-batch failure returns the attachments relocated so far along
// with the error; the caller owns deciding how to surface the gap.
func (f *Finalizer) Relocate(ctx context.Context, reportID uuid.UUID, declared []validation.AttachmentDeclaration) ([]models.Attachment, error) {
	relocated := make([]models.Attachment, 0, len(declared))

	for _, att := range declared {
		filename := SanitizeFilename(att.Filename)
		dst := FinalPath(reportID.String(), filename)

		if err := f.store.Move(ctx, att.StoragePath, dst); err != nil {
			return relocated, fmt.Errorf("relocate %s: %w", att.StoragePath, err)
		}

		info, err := f.store.Stat(ctx, dst)
		if err != nil {
			return relocated, fmt.Errorf("stat relocated object %s: %w", dst, err)
		}

		relocated = append(relocated, models.Attachment{
			Filename:    filename,
			StoragePath: dst,
			ContentType: att.ContentType,
			Size:        info.Size,
		})
	}

	f.log.Info("relocated attachments", "report_id", reportID, "count", len(relocated))
	return relocated, nil
}
