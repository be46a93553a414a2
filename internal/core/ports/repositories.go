package ports

import (
	"context"
	"time"

	"slate/internal/core/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id domain.RoomID) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id domain.IdentityID) (*domain.User, error)
}

// DocumentRepository stores whiteboard documents. All mutations go through
// Apply so concurrent writers on the same room never lose a version
// increment; Get hands out detached copies that are safe to read without
// coordination.
type DocumentRepository interface {
	// Get returns domain.ErrDocumentNotFound when no document exists.
	Get(ctx context.Context, roomID domain.RoomID) (*domain.WhiteboardDocument, error)
	// Apply atomically loads the document (an empty version-0 document when
	// none exists yet), runs mutate on it and persists the result. A mutate
	// error aborts the write and is returned unchanged.
	Apply(ctx context.Context, roomID domain.RoomID, mutate func(*domain.WhiteboardDocument) error) (*domain.WhiteboardDocument, error)
	Delete(ctx context.Context, roomID domain.RoomID) error
}

type ChatRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	ListRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error)
}

// PresenceStore is the shared registry of who is live in which room. It must
// be externalizable (multiple gateway instances observe the same state), so
// implementations rely on single-key atomic operations only.
type PresenceStore interface {
	Put(ctx context.Context, rec *domain.PresenceRecord) error
	// Get returns domain.ErrUserNotFound when no record exists.
	Get(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) (*domain.PresenceRecord, error)
	List(ctx context.Context, roomID domain.RoomID) ([]*domain.PresenceRecord, error)
	Count(ctx context.Context, roomID domain.RoomID) (int, error)
	Remove(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error
	// RemoveIfConnection deletes the record only when the stored connection
	// id matches, so a disconnect of an old connection never wipes out the
	// record written by a newer one. Returns whether a record was removed.
	RemoveIfConnection(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, conn domain.ConnectionID) (bool, error)
	Touch(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error
}

// CounterStore backs fixed-window rate limiting. Increment bumps the counter
// for key, setting the window expiry on the first increment, and returns the
// count inside the current window.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// SessionStore holds externally created login sessions. A missing session is
// logged but must never block connectivity.
type SessionStore interface {
	Validate(ctx context.Context, id domain.IdentityID, token string) (bool, error)
}
