package redis

import (
	"context"
	"fmt"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore checks login sessions created by the external account
// system. Sessions live under a per-identity key with their own expiry.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) ports.SessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Validate(ctx context.Context, id domain.IdentityID, token string) (bool, error) {
	key := fmt.Sprintf("slate:session:%s:%s", id, token)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}
