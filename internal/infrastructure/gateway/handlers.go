package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"
	"slate/pkg/validation"

	"github.com/pion/webrtc/v3"
	"golang.org/x/time/rate"
)

type joinPayload struct {
	RoomID domain.RoomID `json:"room_id"`
}

type replacePayload struct {
	RoomID    domain.RoomID              `json:"room_id"`
	Elements  []domain.Element           `json:"elements"`
	ViewState map[string]json.RawMessage `json:"view_state,omitempty"`
}

type elementPayload struct {
	RoomID  domain.RoomID  `json:"room_id"`
	Element domain.Element `json:"element"`
}

type deletePayload struct {
	RoomID    domain.RoomID    `json:"room_id"`
	ElementID domain.ElementID `json:"element_id"`
}

type restorePayload struct {
	RoomID  domain.RoomID `json:"room_id"`
	Version int64         `json:"version"`
}

type cursorPayload struct {
	RoomID domain.RoomID `json:"room_id"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
}

type cursorNotice struct {
	RoomID      domain.RoomID     `json:"room_id"`
	IdentityID  domain.IdentityID `json:"identity_id"`
	DisplayName string            `json:"display_name"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
}

type chatPayload struct {
	RoomID  domain.RoomID `json:"room_id"`
	Content string        `json:"content"`
}

type historyPayload struct {
	RoomID domain.RoomID `json:"room_id"`
	Limit  int           `json:"limit"`
}

type signalPayload struct {
	RoomID   domain.RoomID     `json:"room_id"`
	TargetID domain.IdentityID `json:"target_id"`
	Payload  json.RawMessage   `json:"payload"`
}

// registerHandlers binds every inbound event to its handler, with the rate
// limit class each event belongs to.
func (s *Server) registerHandlers() {
	events := s.cfg.RateLimiting.Events
	room := s.limiter.Limit(events.Room)
	chat := s.limiter.Limit(events.Chat)
	signaling := s.limiter.Limit(events.Signaling)

	s.dispatcher.Register(EventJoinRoom, s.handleJoinRoom, room)
	s.dispatcher.Register(EventLeaveRoom, s.handleLeaveRoom, room)
	s.dispatcher.Register(EventHeartbeat, s.handleHeartbeat)

	s.dispatcher.Register(EventWhiteboardLoad, s.handleWhiteboardLoad)
	s.dispatcher.Register(EventWhiteboardReplace, s.handleWhiteboardReplace)
	s.dispatcher.Register(EventElementCreate, s.handleElementCreate)
	s.dispatcher.Register(EventElementUpdate, s.handleElementUpdate)
	s.dispatcher.Register(EventElementDelete, s.handleElementDelete)
	s.dispatcher.Register(EventWhiteboardSnapshot, s.handleWhiteboardSnapshot)
	s.dispatcher.Register(EventWhiteboardRestore, s.handleWhiteboardRestore)
	s.dispatcher.Register(EventCursorMove, s.handleCursorMove)

	s.dispatcher.Register(EventChatMessage, s.handleChatMessage, chat)
	s.dispatcher.Register(EventChatHistory, s.handleChatHistory)
	s.dispatcher.Register(EventTypingStart, s.handleTyping(true))
	s.dispatcher.Register(EventTypingStop, s.handleTyping(false))

	s.dispatcher.Register(EventWebRTCOffer, s.handleWebRTCOffer, signaling)
	s.dispatcher.Register(EventWebRTCAnswer, s.handleWebRTCAnswer, signaling)
	s.dispatcher.Register(EventWebRTCICECandidate, s.handleICECandidate, signaling)
	s.dispatcher.Register(EventCallInitiate, s.handleCallInitiate, signaling)
}

func decodePayload(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return apperrors.NewInvalidInputError("missing payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("malformed payload: %v", err))
	}
	return nil
}

func (s *Server) reply(conn *ports.ConnContext, event string, roomID domain.RoomID, payload any) {
	c := s.hub.Connection(conn.ID)
	if c == nil {
		return
	}
	if err := c.Send(newOutbound(event, roomID, payload)); err != nil {
		s.logger.Debugw("reply write failed",
			"connection_id", conn.ID,
			"event", event,
			"error", err,
		)
	}
}

func (s *Server) handleJoinRoom(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if err := validation.ValidateRoomID(string(p.RoomID)); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}

	result, err := s.rooms.Join(ctx, conn.Identity, conn.ID, p.RoomID)
	if err != nil {
		return err
	}

	c := s.hub.Connection(conn.ID)
	if c == nil {
		// Socket died between read and join. Roll presence back.
		_ = s.rooms.Disconnect(ctx, conn.Identity, conn.ID, []domain.RoomID{p.RoomID})
		return nil
	}
	s.hub.Attach(p.RoomID, c)
	s.metrics.SetActiveRooms(s.hub.ActiveRooms())

	s.reply(conn, EventRoomJoined, p.RoomID, map[string]any{
		"room":        result.Room,
		"members":     result.Members,
		"document":    result.Document,
		"reconnected": result.Reconnected,
	})
	if result.Document != nil {
		s.metrics.SetDocumentVersion(string(p.RoomID), result.Document.Version)
	}
	return nil
}

func (s *Server) handleLeaveRoom(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	if _, err := s.rooms.Leave(ctx, conn.Identity, conn.ID, p.RoomID); err != nil {
		return err
	}
	s.hub.Detach(p.RoomID, conn.ID)
	s.metrics.SetActiveRooms(s.hub.ActiveRooms())

	s.reply(conn, EventRoomLeft, p.RoomID, map[string]any{
		"room_id": p.RoomID,
	})
	return nil
}

func (s *Server) handleHeartbeat(ctx context.Context, conn *ports.ConnContext, _ json.RawMessage) error {
	s.rooms.Heartbeat(ctx, conn.Identity, s.hub.RoomsOf(conn.ID))
	s.reply(conn, EventPong, "", nil)
	return nil
}

func (s *Server) handleWhiteboardLoad(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	doc, err := s.whiteboard.Load(ctx, conn.Identity, conn.ID, p.RoomID)
	if err != nil {
		return err
	}
	s.reply(conn, EventWhiteboardLoaded, p.RoomID, doc)
	return nil
}

func (s *Server) handleWhiteboardReplace(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p replacePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	delta, err := s.whiteboard.ReplaceAll(ctx, conn.Identity, conn.ID, p.RoomID, p.Elements, p.ViewState)
	if err != nil {
		return err
	}
	s.metrics.SetDocumentVersion(string(p.RoomID), delta.Version)
	return nil
}

func (s *Server) handleElementCreate(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p elementPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	delta, err := s.whiteboard.CreateElement(ctx, conn.Identity, conn.ID, p.RoomID, p.Element)
	if err != nil {
		return err
	}
	s.metrics.SetDocumentVersion(string(p.RoomID), delta.Version)
	return nil
}

func (s *Server) handleElementUpdate(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p elementPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	delta, err := s.whiteboard.UpdateElement(ctx, conn.Identity, conn.ID, p.RoomID, p.Element)
	if err != nil {
		return err
	}
	s.metrics.SetDocumentVersion(string(p.RoomID), delta.Version)
	return nil
}

func (s *Server) handleElementDelete(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p deletePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	delta, err := s.whiteboard.DeleteElement(ctx, conn.Identity, conn.ID, p.RoomID, p.ElementID)
	if err != nil {
		return err
	}
	s.metrics.SetDocumentVersion(string(p.RoomID), delta.Version)
	return nil
}

func (s *Server) handleWhiteboardSnapshot(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	snap, err := s.whiteboard.Snapshot(ctx, conn.Identity, conn.ID, p.RoomID)
	if err != nil {
		return err
	}
	s.reply(conn, EventWhiteboardSnapshoted, p.RoomID, snap)
	return nil
}

func (s *Server) handleWhiteboardRestore(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p restorePayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	doc, err := s.whiteboard.RestoreSnapshot(ctx, conn.Identity, conn.ID, p.RoomID, p.Version)
	if err != nil {
		return err
	}
	s.metrics.SetDocumentVersion(string(p.RoomID), doc.Version)
	s.reply(conn, EventWhiteboardLoaded, p.RoomID, doc)
	return nil
}

// handleCursorMove relays cursor positions to the rest of the room. Cursor
// traffic is high-frequency and disposable, so over-rate updates are dropped
// silently instead of producing error frames.
func (s *Server) handleCursorMove(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p cursorPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if !s.hub.Contains(p.RoomID, conn.ID) {
		return apperrors.NewForbiddenError("not a member of this room")
	}
	if !s.cursors.allow(string(conn.ID)) {
		return nil
	}

	s.hub.Broadcast(p.RoomID, EventCursorMoved, cursorNotice{
		RoomID:      p.RoomID,
		IdentityID:  conn.Identity.ID,
		DisplayName: conn.Identity.DisplayName,
		X:           p.X,
		Y:           p.Y,
	}, conn.ID)
	return nil
}

func (s *Server) handleChatMessage(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p chatPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	_, err := s.chat.Post(ctx, conn.Identity, conn.ID, p.RoomID, p.Content)
	return err
}

func (s *Server) handleChatHistory(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p historyPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	messages, err := s.chat.History(ctx, conn.Identity, conn.ID, p.RoomID, p.Limit)
	if err != nil {
		return err
	}
	s.reply(conn, EventChatHistoryResult, p.RoomID, map[string]any{
		"room_id":  p.RoomID,
		"messages": messages,
	})
	return nil
}

func (s *Server) handleTyping(active bool) ports.EventHandler {
	return func(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
		var p joinPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return s.chat.Typing(ctx, conn.Identity, conn.ID, p.RoomID, active)
	}
}

func (s *Server) handleWebRTCOffer(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	p, desc, err := decodeSessionDescription(payload)
	if err != nil {
		return err
	}
	return s.signaling.RelayOffer(ctx, conn.Identity, conn.ID, p.RoomID, p.TargetID, desc)
}

func (s *Server) handleWebRTCAnswer(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	p, desc, err := decodeSessionDescription(payload)
	if err != nil {
		return err
	}
	return s.signaling.RelayAnswer(ctx, conn.Identity, conn.ID, p.RoomID, p.TargetID, desc)
}

func (s *Server) handleICECandidate(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p signalPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(p.Payload, &candidate); err != nil {
		return apperrors.NewInvalidInputError("malformed ICE candidate")
	}
	return s.signaling.RelayICECandidate(ctx, conn.Identity, conn.ID, p.RoomID, p.TargetID, candidate)
}

func (s *Server) handleCallInitiate(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return s.signaling.InitiateCall(ctx, conn.Identity, conn.ID, p.RoomID)
}

// decodeSessionDescription validates an offer/answer payload against the SDP
// wire shape before it is relayed, so peers never receive junk descriptions.
func decodeSessionDescription(payload json.RawMessage) (signalPayload, webrtc.SessionDescription, error) {
	var p signalPayload
	if err := decodePayload(payload, &p); err != nil {
		return p, webrtc.SessionDescription{}, err
	}
	if p.TargetID == "" {
		return p, webrtc.SessionDescription{}, apperrors.NewInvalidInputError("target_id is required")
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(p.Payload, &desc); err != nil || desc.SDP == "" {
		return p, webrtc.SessionDescription{}, apperrors.NewInvalidInputError("malformed session description")
	}
	return p, desc, nil
}

// cursorThrottle drops cursor updates arriving faster than the configured
// interval, one limiter per connection.
type cursorThrottle struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newCursorThrottle(interval time.Duration) *cursorThrottle {
	return &cursorThrottle{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *cursorThrottle) allow(connID string) bool {
	if t.interval <= 0 {
		return true
	}

	t.mu.Lock()
	lim, ok := t.limiters[connID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[connID] = lim
	}
	t.mu.Unlock()

	return lim.Allow()
}

func (t *cursorThrottle) forget(connID string) {
	t.mu.Lock()
	delete(t.limiters, connID)
	t.mu.Unlock()
}
