package gateway

import (
	"sync"

	"slate/internal/core/domain"
	"slate/internal/core/ports"

	"go.uber.org/zap"
)

// Hub is the in-process broadcast registry: which connections sit in which
// room channel. It is the local half of the Broadcaster port; a
// cross-instance bus can wrap it to relay fan-outs to other gateways.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.ConnectionID]*Conn
	conns map[domain.ConnectionID]*Conn

	logger *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[domain.RoomID]map[domain.ConnectionID]*Conn),
		conns:  make(map[domain.ConnectionID]*Conn),
		logger: logger,
	}
}

var _ ports.Broadcaster = (*Hub)(nil)

// Register adds a connection to the hub before it joins any room.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ctx.ID] = c
}

// Unregister removes a connection and returns the rooms it was attached to,
// so the disconnect path can clean up presence per room.
func (h *Hub) Unregister(connID domain.ConnectionID) []domain.RoomID {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	var rooms []domain.RoomID
	for roomID, members := range h.rooms {
		if _, ok := members[connID]; ok {
			rooms = append(rooms, roomID)
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	return rooms
}

// Attach places a registered connection into a room channel.
func (h *Hub) Attach(roomID domain.RoomID, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[domain.ConnectionID]*Conn)
	}
	h.rooms[roomID][c.ctx.ID] = c
}

// Detach removes a connection from one room channel.
func (h *Hub) Detach(roomID domain.RoomID, connID domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members := h.rooms[roomID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Connection returns the live connection for an id, or nil.
func (h *Hub) Connection(connID domain.ConnectionID) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

// RoomsOf snapshots the rooms a connection currently sits in.
func (h *Hub) RoomsOf(connID domain.ConnectionID) []domain.RoomID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var rooms []domain.RoomID
	for roomID, members := range h.rooms {
		if _, ok := members[connID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

func (h *Hub) Broadcast(roomID domain.RoomID, event string, payload any, exclude ...domain.ConnectionID) {
	env := newOutbound(event, roomID, payload)

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for connID, c := range h.rooms[roomID] {
		if containsConn(exclude, connID) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(env); err != nil {
			h.logger.Debugw("broadcast write failed",
				"room_id", roomID,
				"connection_id", c.ctx.ID,
				"event", event,
				"error", err,
			)
		}
	}
}

// SendToIdentity unicasts to the first room channel member whose attached
// identity matches the target.
func (h *Hub) SendToIdentity(roomID domain.RoomID, target domain.IdentityID, event string, payload any) error {
	h.mu.RLock()
	var found *Conn
	for _, c := range h.rooms[roomID] {
		if c.ctx.Identity.ID == target {
			found = c
			break
		}
	}
	h.mu.RUnlock()

	if found == nil {
		return domain.ErrUserNotFound
	}
	return found.Send(newOutbound(event, roomID, payload))
}

func (h *Hub) Contains(roomID domain.RoomID, connID domain.ConnectionID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][connID]
	return ok
}

func (h *Hub) ConnectionCount(roomID domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// TotalConnections counts every registered connection on this instance.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ActiveRooms counts rooms with at least one attached connection.
func (h *Hub) ActiveRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func containsConn(ids []domain.ConnectionID, id domain.ConnectionID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
