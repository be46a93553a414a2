package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// removeIfConnScript deletes a presence hash field only when the stored
// record still carries the given connection id. Running it server-side keeps
// the check-and-delete atomic without any cross-key locking.
var removeIfConnScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
  return 0
end
local rec = cjson.decode(raw)
if rec['connection_id'] ~= ARGV[2] then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
return 1
`)

// RedisPresenceStore keeps one hash per room, keyed by identity, with each
// field holding the JSON presence record. The whole hash carries a TTL that
// every write refreshes, so a crashed gateway's records age out on their
// own.
type RedisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresenceStore(client *redis.Client, ttl time.Duration) ports.PresenceStore {
	return &RedisPresenceStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisPresenceStore) roomKey(roomID domain.RoomID) string {
	return fmt.Sprintf("slate:presence:%s", roomID)
}

func (s *RedisPresenceStore) Put(ctx context.Context, rec *domain.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	key := s.roomKey(rec.RoomID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, string(rec.IdentityID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write presence record: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Get(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) (*domain.PresenceRecord, error) {
	data, err := s.client.HGet(ctx, s.roomKey(roomID), string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence record: %w", err)
	}

	var rec domain.PresenceRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
	}
	return &rec, nil
}

func (s *RedisPresenceStore) List(ctx context.Context, roomID domain.RoomID) ([]*domain.PresenceRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence records: %w", err)
	}

	out := make([]*domain.PresenceRecord, 0, len(fields))
	for _, data := range fields {
		var rec domain.PresenceRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *RedisPresenceStore) Count(ctx context.Context, roomID domain.RoomID) (int, error) {
	n, err := s.client.HLen(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count presence records: %w", err)
	}
	return int(n), nil
}

func (s *RedisPresenceStore) Remove(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	if err := s.client.HDel(ctx, s.roomKey(roomID), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove presence record: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) RemoveIfConnection(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, conn domain.ConnectionID) (bool, error) {
	res, err := removeIfConnScript.Run(ctx, s.client,
		[]string{s.roomKey(roomID)}, string(id), string(conn)).Int()
	if err != nil {
		return false, fmt.Errorf("failed conditional presence removal: %w", err)
	}
	return res == 1, nil
}

func (s *RedisPresenceStore) Touch(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	rec, err := s.Get(ctx, roomID, id)
	if err != nil {
		return err
	}
	rec.Touch()
	return s.Put(ctx, rec)
}
