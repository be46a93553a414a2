package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisRoomRepository struct {
	client *redis.Client
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{client: client}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return fmt.Sprintf("slate:room:%s", id)
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	if !ok {
		return fmt.Errorf("room already exists: %s", room.ID)
	}
	return nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := r.client.Set(ctx, r.roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	if err := r.client.Del(ctx, r.roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}
