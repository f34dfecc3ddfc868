package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when no object exists at the given path
var ErrObjectNotFound = errors.New("object not found")

// Grant is a time-boxed, write-scoped authorization for a direct upload.
// The storage layer itself rejects writes after Expires; the service
// never re-checks it.
type Grant struct {
	URL     string
	Expires time.Time
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore abstracts the object storage backend so the intake
// pipeline can be exercised against an in-memory fake in tests.
type ObjectStore interface {
	// PresignPut issues a write-only, content-type-pinned grant for path
	PresignPut(ctx context.Context, path, contentType string, expiry time.Duration) (*Grant, error)

	// Stat returns object metadata, or ErrObjectNotFound
	Stat(ctx context.Context, path string) (*ObjectInfo, error)

	// Put writes an object directly (server-side writes, tests)
	Put(ctx context.Context, path, contentType string, data []byte) error

	// Move relocates an object; the source no longer resolves afterwards
	Move(ctx context.Context, src, dst string) error
}
