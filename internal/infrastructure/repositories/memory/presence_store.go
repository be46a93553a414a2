package memory

import (
	"context"
	"sync"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/pkg/utils"
)

// MemoryPresenceStore is the single-instance presence registry. It mirrors
// the shared-store semantics, including the conditional removal used by the
// disconnect path, so services behave identically against either backend.
type MemoryPresenceStore struct {
	rooms map[domain.RoomID]map[domain.IdentityID]*domain.PresenceRecord
	ttl   time.Duration
	mu    sync.RWMutex
}

func NewMemoryPresenceStore(ttl time.Duration) ports.PresenceStore {
	return &MemoryPresenceStore{
		rooms: make(map[domain.RoomID]map[domain.IdentityID]*domain.PresenceRecord),
		ttl:   ttl,
	}
}

func (s *MemoryPresenceStore) Put(ctx context.Context, rec *domain.PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rooms[rec.RoomID] == nil {
		s.rooms[rec.RoomID] = make(map[domain.IdentityID]*domain.PresenceRecord)
	}
	s.rooms[rec.RoomID][rec.IdentityID] = rec
	return nil
}

func (s *MemoryPresenceStore) Get(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) (*domain.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.rooms[roomID][id]
	if !exists || s.expired(rec) {
		return nil, domain.ErrUserNotFound
	}
	return rec, nil
}

func (s *MemoryPresenceStore) List(ctx context.Context, roomID domain.RoomID) ([]*domain.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PresenceRecord
	for _, rec := range s.rooms[roomID] {
		if !s.expired(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryPresenceStore) Count(ctx context.Context, roomID domain.RoomID) (int, error) {
	recs, _ := s.List(ctx, roomID)
	return len(recs), nil
}

func (s *MemoryPresenceStore) Remove(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms[roomID], id)
	return nil
}

func (s *MemoryPresenceStore) RemoveIfConnection(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, conn domain.ConnectionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.rooms[roomID][id]
	if !exists || rec.ConnectionID != conn {
		return false, nil
	}
	delete(s.rooms[roomID], id)
	return true, nil
}

func (s *MemoryPresenceStore) Touch(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.rooms[roomID][id]
	if !exists {
		return domain.ErrUserNotFound
	}
	rec.Touch()
	return nil
}

func (s *MemoryPresenceStore) expired(rec *domain.PresenceRecord) bool {
	return s.ttl > 0 && utils.IsExpired(rec.LastActivityAt, s.ttl)
}
