package redis

import (
	"context"
	"fmt"
	"time"

	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implements fixed-window counting with INCR + EXPIRE.
// The expiry is set only on the first increment of a window, so the window
// boundary never slides.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) ports.CounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := fmt.Sprintf("slate:ratelimit:%s", key)

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	return count, nil
}
