package memory

import (
	"context"
	"sync"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
)

// maxStoredMessages bounds per-room history kept in memory.
const maxStoredMessages = 500

type MemoryChatRepository struct {
	messages map[domain.RoomID][]*domain.ChatMessage
	mu       sync.RWMutex
}

func NewMemoryChatRepository() ports.ChatRepository {
	return &MemoryChatRepository{
		messages: make(map[domain.RoomID][]*domain.ChatMessage),
	}
}

func (r *MemoryChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := append(r.messages[msg.RoomID], msg)
	if len(msgs) > maxStoredMessages {
		msgs = msgs[len(msgs)-maxStoredMessages:]
	}
	r.messages[msg.RoomID] = msgs
	return nil
}

func (r *MemoryChatRepository) ListRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[roomID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]*domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
