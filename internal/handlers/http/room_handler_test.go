package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/internal/infrastructure/middleware"
	"slate/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRoomService struct {
	ports.RoomService
}

func (stubRoomService) Stats(ctx context.Context, roomID domain.RoomID) (*domain.RoomStats, error) {
	return &domain.RoomStats{
		RoomID:          roomID,
		PresenceCount:   1,
		MembershipCount: 3,
		DocumentVersion: 7,
		Timestamp:       time.Now(),
	}, nil
}

// injectIdentity stands in for the auth middleware.
func injectIdentity(identity domain.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityContextKey, identity)
		c.Next()
	}
}

func newRoomRouter(t *testing.T, identity domain.Identity) (*gin.Engine, ports.RoomRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rooms := memory.NewMemoryRoomRepository()
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	NewRoomHandler(rooms, stubRoomService{}).SetupRoutes(router, injectIdentity(identity))
	return router, rooms
}

func seedRoom(t *testing.T, rooms ports.RoomRepository, room *domain.Room) {
	t.Helper()
	require.NoError(t, rooms.Create(context.Background(), room))
}

func TestCreateRoom(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "owner-1", Plan: domain.PlanPro})

	w := postJSON(router, "/api/v1/rooms", `{"name":"Design Sync","visibility":"public"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.IdentityID("owner-1"), created.OwnerID)
	assert.Equal(t, domain.RoomPublic, created.Visibility)

	stored, err := rooms.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Design Sync", stored.Name)
}

func TestGetRoomHidesPrivateFromStrangers(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "stranger"})
	seedRoom(t, rooms, &domain.Room{ID: "room-1", OwnerID: "owner-1", Visibility: domain.RoomPrivate})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestGetRoomStats(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "owner-1"})
	seedRoom(t, rooms, &domain.Room{ID: "room-1", OwnerID: "owner-1", Visibility: domain.RoomPrivate})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room-1/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Occupancy       int   `json:"occupancy"`
		DocumentVersion int64 `json:"document_version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Occupancy, "occupancy is the max of presence and membership")
	assert.Equal(t, int64(7), stats.DocumentVersion)
}

func TestAddParticipantOwnerOnly(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "member-1"})
	seedRoom(t, rooms, &domain.Room{
		ID: "room-1", OwnerID: "owner-1",
		Participants: []domain.IdentityID{"member-1"},
		Visibility:   domain.RoomPrivate,
	})

	w := postJSON(router, "/api/v1/rooms/room-1/participants", `{"identity_id":"member-2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAddParticipant(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "owner-1"})
	seedRoom(t, rooms, &domain.Room{ID: "room-1", OwnerID: "owner-1", Visibility: domain.RoomPrivate})

	w := postJSON(router, "/api/v1/rooms/room-1/participants", `{"identity_id":"member-2"}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := rooms.GetByID(context.Background(), "room-1")
	require.NoError(t, err)
	assert.True(t, stored.IsMember("member-2"))
}

func TestDeleteRoom(t *testing.T) {
	router, rooms := newRoomRouter(t, domain.Identity{ID: "owner-1"})
	seedRoom(t, rooms, &domain.Room{ID: "room-1", OwnerID: "owner-1", Visibility: domain.RoomPublic})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/room-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := rooms.GetByID(context.Background(), "room-1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestGetRoomNotFound(t *testing.T) {
	router, _ := newRoomRouter(t, domain.Identity{ID: "owner-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ROOM_NOT_FOUND")
}
