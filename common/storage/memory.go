package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore for dev and tests
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates a new in-memory object store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
	}
}

// PresignPut returns a synthetic grant URL; uploads in memory mode go
// through Put directly.
func (s *MemoryStore) PresignPut(ctx context.Context, path, contentType string, expiry time.Duration) (*Grant, error) {
	expires := time.Now().Add(expiry)
	return &Grant{
		URL:     fmt.Sprintf("memory:///%s?expires=%d", path, expires.Unix()),
		Expires: expires,
	}, nil
}

// Stat returns object metadata, or ErrObjectNotFound
func (s *MemoryStore) Stat(ctx context.Context, path string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[path]
	if !exists {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
	}, nil
}

// Put writes an object
func (s *MemoryStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = memObject{data: buf, contentType: contentType}
	return nil
}

// Move relocates an object; the source no longer resolves afterwards
func (s *MemoryStore) Move(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[src]
	if !exists {
		return ErrObjectNotFound
	}
	s.objects[dst] = obj
	delete(s.objects, src)
	return nil
}
