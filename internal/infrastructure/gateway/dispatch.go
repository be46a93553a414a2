package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"slate/internal/core/ports"
)

// Middleware decorates an event handler, typically with rate limiting.
type Middleware func(event string, next ports.EventHandler) ports.EventHandler

// Dispatcher maps event names to handlers. Handlers receive only the typed
// connection context and raw payload, so each one is testable without a live
// socket.
type Dispatcher struct {
	handlers map[string]ports.EventHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]ports.EventHandler),
	}
}

// Register binds a handler to an event name, wrapping it with the given
// middlewares outermost-first.
func (d *Dispatcher) Register(event string, handler ports.EventHandler, mws ...Middleware) {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](event, handler)
	}
	d.handlers[event] = handler
}

// Dispatch routes one inbound envelope. Unknown events are an error to the
// caller, not a disconnect.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *ports.ConnContext, env *InboundEnvelope) error {
	handler, ok := d.handlers[env.Event]
	if !ok {
		return fmt.Errorf("unknown event: %s", env.Event)
	}
	return handler(ctx, conn, d.payloadWithRoom(env))
}

// payloadWithRoom folds a top-level room_id into the payload so handlers can
// decode a single struct regardless of where the client put the field.
func (d *Dispatcher) payloadWithRoom(env *InboundEnvelope) json.RawMessage {
	if env.RoomID == "" || len(env.Payload) == 0 {
		if env.RoomID != "" {
			return json.RawMessage(fmt.Sprintf(`{"room_id":%q}`, env.RoomID))
		}
		return env.Payload
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(env.Payload, &m); err != nil {
		return env.Payload
	}
	if _, exists := m["room_id"]; !exists {
		m["room_id"] = json.RawMessage(fmt.Sprintf("%q", env.RoomID))
		merged, err := json.Marshal(m)
		if err == nil {
			return merged
		}
	}
	return env.Payload
}
