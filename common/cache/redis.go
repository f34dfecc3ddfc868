package cache

import (
	"context"
	"time"

	redisclient "github.com/casedesk/intake/common/redis"
)

// RedisCache backs the report read-through cache with Redis, so cached
// entries and invalidations are shared across replicas
type RedisCache struct {
	client *redisclient.Client
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(client *redisclient.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a value; an absent key reads as a miss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := c.client.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Set stores a value with a TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetWithExpiry(ctx, key, string(value), ttl)
}

// Delete removes a value
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, key)
}

// Close is a no-op; the container owns the connection
func (c *RedisCache) Close() error {
	return nil
}
