package gateway

import (
	"encoding/json"
	"time"

	"slate/internal/core/domain"
	apperrors "slate/pkg/errors"
)

// InboundEnvelope is the wire form of one client event.
type InboundEnvelope struct {
	Event   string          `json:"event"`
	RoomID  domain.RoomID   `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope is the wire form of one server event.
type OutboundEnvelope struct {
	Event     string        `json:"event"`
	RoomID    domain.RoomID `json:"room_id,omitempty"`
	Payload   any           `json:"payload,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func newOutbound(event string, roomID domain.RoomID, payload any) *OutboundEnvelope {
	return &OutboundEnvelope{
		Event:     event,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// errorEnvelope reports a typed failure to the originating connection only.
func errorEnvelope(appErr *apperrors.AppError) *OutboundEnvelope {
	return newOutbound(EventError, "", appErr.ToWire())
}
