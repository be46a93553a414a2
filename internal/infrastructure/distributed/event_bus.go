package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const broadcastChannel = "slate:broadcasts"

// roomEvent is the wire form of one relayed room broadcast.
type roomEvent struct {
	InstanceID string                `json:"instance_id"`
	RoomID     domain.RoomID         `json:"room_id"`
	Event      string                `json:"event"`
	Payload    json.RawMessage       `json:"payload,omitempty"`
	Exclude    []domain.ConnectionID `json:"exclude,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// LocalBroadcaster is the in-process half the bus relays into. The gateway
// Hub satisfies it.
type LocalBroadcaster interface {
	ports.Broadcaster
}

// EventBus implements the Broadcaster port across gateway instances: every
// broadcast fans out locally and is published on a shared Redis channel so
// other instances can deliver it to their own room channels. Unicasts stay
// local because SendToIdentity must report delivery synchronously.
type EventBus struct {
	client     *redis.Client
	local      LocalBroadcaster
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

var _ ports.Broadcaster = (*EventBus)(nil)

func NewEventBus(client *redis.Client, local LocalBroadcaster, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		local:      local,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Broadcast delivers locally first, then relays. A publish failure is logged
// and swallowed: local collaborators must not lose events because a sibling
// instance is unreachable.
func (eb *EventBus) Broadcast(roomID domain.RoomID, event string, payload any, exclude ...domain.ConnectionID) {
	eb.local.Broadcast(roomID, event, payload, exclude...)

	data, err := json.Marshal(payload)
	if err != nil {
		eb.logger.Warnw("broadcast payload not serializable, relay skipped",
			"room_id", roomID,
			"event", event,
			"error", err,
		)
		return
	}

	msg, err := json.Marshal(roomEvent{
		InstanceID: eb.instanceID,
		RoomID:     roomID,
		Event:      event,
		Payload:    data,
		Exclude:    exclude,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := eb.client.Publish(ctx, broadcastChannel, msg).Err(); err != nil {
		eb.logger.Warnw("broadcast relay failed",
			"room_id", roomID,
			"event", event,
			"error", err,
		)
	}
}

func (eb *EventBus) SendToIdentity(roomID domain.RoomID, target domain.IdentityID, event string, payload any) error {
	return eb.local.SendToIdentity(roomID, target, event, payload)
}

func (eb *EventBus) Contains(roomID domain.RoomID, conn domain.ConnectionID) bool {
	return eb.local.Contains(roomID, conn)
}

func (eb *EventBus) ConnectionCount(roomID domain.RoomID) int {
	return eb.local.ConnectionCount(roomID)
}

// Run consumes relayed broadcasts from sibling instances until the context
// is cancelled. Own messages are skipped so local delivery never doubles.
func (eb *EventBus) Run(ctx context.Context) error {
	if eb.pubsub != nil {
		return fmt.Errorf("event bus already running")
	}

	eb.pubsub = eb.client.Subscribe(ctx, broadcastChannel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event roomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("malformed relayed broadcast",
					"error", err,
					"payload", utils.TruncateString(msg.Payload, 256),
				)
				continue
			}
			if event.InstanceID == eb.instanceID {
				continue
			}

			eb.local.Broadcast(event.RoomID, event.Event, event.Payload, event.Exclude...)
		}
	}
}

func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
