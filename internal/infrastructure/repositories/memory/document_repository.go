package memory

import (
	"context"
	"sync"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
)

type MemoryDocumentRepository struct {
	docs map[domain.RoomID]*domain.WhiteboardDocument
	mu   sync.RWMutex
}

func NewMemoryDocumentRepository() ports.DocumentRepository {
	return &MemoryDocumentRepository{
		docs: make(map[domain.RoomID]*domain.WhiteboardDocument),
	}
}

// Get hands out a detached copy; callers can read it without racing writers.
func (r *MemoryDocumentRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.WhiteboardDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.docs[roomID]
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	return doc.Clone(), nil
}

// Apply runs mutate on a copy under the write lock, so concurrent mutations
// on the same room are serialized and a failed mutate leaves the stored
// document untouched.
func (r *MemoryDocumentRepository) Apply(ctx context.Context, roomID domain.RoomID, mutate func(*domain.WhiteboardDocument) error) (*domain.WhiteboardDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.docs[roomID]
	if !exists {
		doc = domain.NewWhiteboardDocument(roomID)
	} else {
		doc = doc.Clone()
	}

	if err := mutate(doc); err != nil {
		return nil, err
	}

	r.docs[roomID] = doc
	return doc.Clone(), nil
}

func (r *MemoryDocumentRepository) Delete(ctx context.Context, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.docs, roomID)
	return nil
}
