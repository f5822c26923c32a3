package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis for shared rate-limit state. An empty
// address returns nil and callers fall back to process-local limiting.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RedisLimiter implements fixed-window request counting over Redis so the
// limit holds across API replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter wraps a connected client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

// Allow increments the window counter for key and reports whether the caller
// is still under limit. The window expiry is set on first increment.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	count, err := l.client.Incr(ctx, l.prefix+key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, l.prefix+key, per).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
