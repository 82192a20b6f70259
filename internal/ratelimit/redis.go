package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts windows in Redis so multiple instances share limits.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis URL and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("incrementing window %s: %w", key, err)
	}

	count := int(incr.Val())
	remaining := ttl.Val()
	if remaining < 0 {
		// First request in the window, or the key predates its expiry
		// being set: start a fresh window.
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("setting window expiry %s: %w", key, err)
		}
		remaining = window
	}
	return count, time.Now().Add(remaining), nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
