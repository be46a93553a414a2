package ports

import (
	"context"
	"encoding/json"
	"time"

	"slate/internal/core/domain"
)

// ConnContext is the fixed, typed per-connection state, created once at
// authentication time and threaded explicitly into every event handler.
type ConnContext struct {
	ID          domain.ConnectionID
	Identity    domain.Identity
	RemoteIP    string
	ConnectedAt time.Time
}

// EventHandler handles one named event from one connection. The returned
// error, if typed, is reported to the originating connection only.
type EventHandler func(ctx context.Context, conn *ConnContext, payload json.RawMessage) error
