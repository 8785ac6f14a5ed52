// Package cache is an optional Redis-backed cache for verification results.
// The lookup service is rate-limited; caching avoids repeat calls for the
// same citation across documents. A nil *Cache is valid and disables caching.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "citecheck:verify:"

// Cache wraps a Redis client with TTL'd get/put for serialized results.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis at addr. Empty addr disables caching (returns nil).
func New(addr string, ttl time.Duration, logger *zap.Logger) *Cache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached payload for key, if present. Cache errors are
// logged and treated as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Verification cache read failed", zap.Error(err))
		return nil, false
	}
	return data, true
}

// Put stores payload under key with the configured TTL. Best effort.
func (c *Cache) Put(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Verification cache write failed", zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
