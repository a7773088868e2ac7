// File path: internal/ratelimit/redis.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend counts against a shared Redis instance so throttling holds
// across gateway replicas. INCR is atomic and EXPIRE NX anchors the window
// at the key's first observed request.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an already-connected client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Check implements Backend. Any Redis failure is returned to the caller,
// which degrades to the in-process counter.
func (b *RedisBackend) Check(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, fmt.Errorf("redis backend not configured")
	}
	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis check %s: %w", key, err)
	}
	count := incr.Val()
	remaining := ttl.Val()
	if remaining < 0 {
		// PTTL reports -1 for keys without expiry; treat as a full window.
		remaining = window
	}
	return Decision{
		Allowed: count <= int64(max),
		Current: count,
		Limit:   max,
		ResetAt: time.Now().Add(remaining),
	}, nil
}
