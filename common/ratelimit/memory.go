package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxTrackedWindows triggers eviction of expired window counters. Live
// counters are never evicted, so the map can exceed this bound within a
// single window under a many-identity flood.
const maxTrackedWindows = 4096

// MemoryLimiter is an in-process fixed-window limiter for dev and tests.
// It mirrors the Redis limiter's key semantics; the check-and-increment
// is serialized by a mutex instead of a Lua script.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter creates a new in-memory limiter
func NewMemoryLimiter(limit int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counts: make(map[string]int64),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Admit checks and increments the counter for the identity's current window
func (m *MemoryLimiter) Admit(ctx context.Context, identity string) (*Decision, error) {
	now := m.now()
	key := WindowKey(identity, now, m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.counts) > maxTrackedWindows {
		m.evictExpired(now)
	}

	count := m.counts[key] + 1
	m.counts[key] = count

	decision := &Decision{
		Allowed:      count <= m.limit,
		CurrentCount: count,
		Limit:        m.limit,
	}
	if !decision.Allowed {
		elapsed := now.UnixMilli() % m.window.Milliseconds()
		decision.RetryAfter = time.Duration(m.window.Milliseconds()-elapsed) * time.Millisecond
	}

	return decision, nil
}

// evictExpired drops counters from past windows. Keys from the current
// bucket stay; they are still being read. Caller holds the mutex.
func (m *MemoryLimiter) evictExpired(now time.Time) {
	suffix := fmt.Sprintf(":%d", now.UnixMilli()/m.window.Milliseconds())
	for key := range m.counts {
		if !strings.HasSuffix(key, suffix) {
			delete(m.counts, key)
		}
	}
}
