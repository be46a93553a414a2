package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisUserRepository is a read-through view of the externally owned account
// records. The account system writes these keys; the gateway only reads.
type RedisUserRepository struct {
	client *redis.Client
}

func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{client: client}
}

func (r *RedisUserRepository) userKey(id domain.IdentityID) string {
	return fmt.Sprintf("slate:user:%s", id)
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id domain.IdentityID) (*domain.User, error) {
	data, err := r.client.Get(ctx, r.userKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}
