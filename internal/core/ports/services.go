package ports

import (
	"context"
	"encoding/json"

	"slate/internal/core/domain"
)

// Broadcaster is the room channel abstraction every realtime component fans
// out through. Implementations may relay across gateway instances.
type Broadcaster interface {
	Broadcast(roomID domain.RoomID, event string, payload any, exclude ...domain.ConnectionID)
	// SendToIdentity unicasts to the first channel member whose attached
	// identity matches. Returns domain.ErrUserNotFound when none does.
	SendToIdentity(roomID domain.RoomID, target domain.IdentityID, event string, payload any) error
	Contains(roomID domain.RoomID, conn domain.ConnectionID) bool
	ConnectionCount(roomID domain.RoomID) int
}

// JoinResult is everything the joiner gets back: the full member list, the
// current document state and whether this was a reconnect.
type JoinResult struct {
	Room        *domain.Room
	Members     []*domain.PresenceRecord
	Document    *domain.WhiteboardDocument
	Reconnected bool
}

type RoomService interface {
	Join(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*JoinResult, error)
	Leave(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) ([]*domain.PresenceRecord, error)
	Disconnect(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, rooms []domain.RoomID) error
	Heartbeat(ctx context.Context, identity domain.Identity, rooms []domain.RoomID)
	Stats(ctx context.Context, roomID domain.RoomID) (*domain.RoomStats, error)
}

// WhiteboardDelta is the broadcast form of a mutation: only what changed,
// plus the resulting version.
type WhiteboardDelta struct {
	RoomID    domain.RoomID              `json:"room_id"`
	Version   int64                      `json:"version"`
	Element   *domain.Element            `json:"element,omitempty"`
	ElementID domain.ElementID           `json:"element_id,omitempty"`
	Elements  []domain.Element           `json:"elements,omitempty"`
	ViewState map[string]json.RawMessage `json:"view_state,omitempty"`
	AuthorID  domain.IdentityID          `json:"author_id"`
}

type WhiteboardService interface {
	Load(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*domain.WhiteboardDocument, error)
	ReplaceAll(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, elements []domain.Element, viewState map[string]json.RawMessage) (*WhiteboardDelta, error)
	CreateElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, el domain.Element) (*WhiteboardDelta, error)
	UpdateElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, el domain.Element) (*WhiteboardDelta, error)
	DeleteElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, id domain.ElementID) (*WhiteboardDelta, error)
	Snapshot(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*domain.DocumentSnapshot, error)
	RestoreSnapshot(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, version int64) (*domain.WhiteboardDocument, error)
}

type ChatService interface {
	Post(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, content string) (*domain.ChatMessage, error)
	History(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error)
	Typing(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, active bool) error
}

type SignalingService interface {
	RelayOffer(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error
	RelayAnswer(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error
	RelayICECandidate(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error
	InitiateCall(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) error
}

type PlanService interface {
	LimitsFor(ctx context.Context, identity domain.Identity) (domain.PlanLimits, error)
}
