package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"veriglow-backend/internal/shared/telemetry"
)

// RedisCache implements Cache on a shared redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedis wraps client in a fail-open cache.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		telemetry.Warn("cache get failed", map[string]any{"key": key, "error": err.Error()})
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		telemetry.Warn("cache set failed", map[string]any{"key": key, "error": err.Error()})
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		telemetry.Warn("cache delete failed", map[string]any{"key": key, "error": err.Error()})
	}
}

var _ Cache = (*RedisCache)(nil)
