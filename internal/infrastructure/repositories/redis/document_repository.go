package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// applyMaxConflicts bounds optimistic retries when concurrent instances
// mutate the same document.
const applyMaxConflicts = 5

type RedisDocumentRepository struct {
	client *redis.Client
}

func NewRedisDocumentRepository(client *redis.Client) ports.DocumentRepository {
	return &RedisDocumentRepository{client: client}
}

func (r *RedisDocumentRepository) docKey(roomID domain.RoomID) string {
	return fmt.Sprintf("slate:doc:%s", roomID)
}

func (r *RedisDocumentRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.WhiteboardDocument, error) {
	data, err := r.client.Get(ctx, r.docKey(roomID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc domain.WhiteboardDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// Apply runs the read-modify-write under WATCH: when another instance writes
// the document between the read and the set, the transaction aborts and the
// mutation is reapplied against the fresh state. A mutate error aborts
// without writing and is returned unchanged.
func (r *RedisDocumentRepository) Apply(ctx context.Context, roomID domain.RoomID, mutate func(*domain.WhiteboardDocument) error) (*domain.WhiteboardDocument, error) {
	key := r.docKey(roomID)

	var result *domain.WhiteboardDocument
	txn := func(tx *redis.Tx) error {
		doc := domain.NewWhiteboardDocument(roomID)
		data, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// First write for this room.
		case err != nil:
			return fmt.Errorf("failed to get document: %w", err)
		default:
			if err := json.Unmarshal([]byte(data), doc); err != nil {
				return fmt.Errorf("failed to unmarshal document: %w", err)
			}
		}

		if err := mutate(doc); err != nil {
			return err
		}

		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = doc
		return nil
	}

	for i := 0; i < applyMaxConflicts; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("document write for room %s kept conflicting", roomID)
}

func (r *RedisDocumentRepository) Delete(ctx context.Context, roomID domain.RoomID) error {
	if err := r.client.Del(ctx, r.docKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
