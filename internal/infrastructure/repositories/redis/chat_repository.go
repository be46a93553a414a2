package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// maxStoredMessages bounds per-room history kept in the list.
const maxStoredMessages = 500

type RedisChatRepository struct {
	client *redis.Client
}

func NewRedisChatRepository(client *redis.Client) ports.ChatRepository {
	return &RedisChatRepository{client: client}
}

func (r *RedisChatRepository) chatKey(roomID domain.RoomID) string {
	return fmt.Sprintf("slate:chat:%s", roomID)
}

func (r *RedisChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := r.chatKey(msg.RoomID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxStoredMessages-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *RedisChatRepository) ListRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error) {
	raw, err := r.client.LRange(ctx, r.chatKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	// The list is newest-first; callers expect chronological order.
	out := make([]*domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			continue
		}
		out = append(out, &msg)
	}
	return out, nil
}
