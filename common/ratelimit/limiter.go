package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Decision contains the result of a rate limit check
type Decision struct {
	Allowed      bool          // Whether the request is allowed
	CurrentCount int64         // Current count in the window
	Limit        int64         // The limit that was checked
	RetryAfter   time.Duration // Time until the window resets (0 if allowed)
}

// Limiter admits or denies a request for a caller identity.
// Admit must be atomic against concurrent calls sharing the same
// identity and window.
type Limiter interface {
	Admit(ctx context.Context, identity string) (*Decision, error)
}

// RedisLimiter provides per-identity fixed-window rate limiting using Redis + Lua
type RedisLimiter struct {
	redis  *redis.Client
	script *redis.Script
	limit  int64
	window time.Duration
	logger Logger
}

// NewRedisLimiter creates a new rate limiter with embedded Lua script
func NewRedisLimiter(redisClient *redis.Client, limit int64, window time.Duration, logger Logger) *RedisLimiter {
	return &RedisLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Admit checks and increments the counter for the identity's current window
func (r *RedisLimiter) Admit(ctx context.Context, identity string) (*Decision, error) {
	key := WindowKey(identity, time.Now(), r.window)

	// Run Lua script atomically
	result, err := r.script.Run(ctx, r.redis, []string{key}, r.limit, r.window.Milliseconds()).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Parse result array: {allowed, current_count, limit, retry_after_ms}
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	decision := &Decision{
		Allowed:      resultArray[0].(int64) == 1,
		CurrentCount: resultArray[1].(int64),
		Limit:        resultArray[2].(int64),
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(resultArray[3].(int64)) * time.Millisecond
	}

	if !decision.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", decision.CurrentCount,
			"limit", decision.Limit,
			"retry_after", decision.RetryAfter)
	} else {
		r.logger.Debug("rate limit check passed",
			"key", key,
			"current", decision.CurrentCount,
			"limit", decision.Limit)
	}

	return decision, nil
}

// WindowKey derives the counter key for an identity in the window containing now
func WindowKey(identity string, now time.Time, window time.Duration) string {
	bucket := now.UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("rate_limit:ip:%s:%d", SanitizeIdentity(identity), bucket)
}
