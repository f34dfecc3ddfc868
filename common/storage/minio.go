package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/casedesk/intake/common/config"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// MinioStore is the production ObjectStore backed by an S3-compatible bucket
type MinioStore struct {
	client *minio.Client
	bucket string
	logger Logger
}

// NewMinioStore creates the store and ensures the bucket exists
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, logger Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("created storage bucket", "bucket", cfg.Bucket)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// PresignPut issues a write-only grant pinned to the declared content type
func (s *MinioStore) PresignPut(ctx context.Context, path, contentType string, expiry time.Duration) (*Grant, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	signed, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, path, expiry, url.Values{}, headers)
	if err != nil {
		s.logger.Error("presign failed", "path", path, "error", err)
		return nil, fmt.Errorf("presign put for %s: %w", path, err)
	}

	return &Grant{
		URL:     signed.String(),
		Expires: time.Now().Add(expiry),
	}, nil
}

// Stat returns object metadata, or ErrObjectNotFound
func (s *MinioStore) Stat(ctx context.Context, path string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		s.logger.Error("stat failed", "path", path, "error", err)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &ObjectInfo{
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

// Put writes an object directly
func (s *MinioStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("put failed", "path", path, "error", err)
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// Move copies the object to dst then removes the source
func (s *MinioStore) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		s.logger.Error("copy failed", "src", src, "dst", dst, "error", err)
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, src, minio.RemoveObjectOptions{}); err != nil {
		// Destination already exists; the leftover staging object is
		// orphaned, not lost.
		s.logger.Warn("remove of staged object failed after copy", "src", src, "error", err)
	}

	return nil
}
