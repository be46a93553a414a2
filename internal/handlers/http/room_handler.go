package http

import (
	"net/http"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/internal/infrastructure/middleware"
	"slate/pkg/errors"
	"slate/pkg/utils"
	"slate/pkg/validation"

	"github.com/gin-gonic/gin"
)

// RoomHandler is the management surface for rooms. Realtime membership runs
// over the websocket gateway; this API creates and inspects the rooms those
// sessions attach to.
type RoomHandler struct {
	rooms       ports.RoomRepository
	roomService ports.RoomService
}

func NewRoomHandler(rooms ports.RoomRepository, roomService ports.RoomService) *RoomHandler {
	return &RoomHandler{
		rooms:       rooms,
		roomService: roomService,
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	api := router.Group("/api/v1/rooms", auth)
	{
		api.POST("", h.CreateRoom)
		api.GET("/:id", h.GetRoom)
		api.GET("/:id/stats", h.GetRoomStats)
		api.POST("/:id/participants", h.AddParticipant)
		api.DELETE("/:id", h.DeleteRoom)
	}
}

func identityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(middleware.IdentityContextKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := v.(domain.Identity)
	return identity, ok
}

type CreateRoomRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Visibility string `json:"visibility" binding:"max=16"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "authentication required"))
		return
	}

	var req CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	visibility := domain.RoomVisibility(req.Visibility)
	if visibility != domain.RoomPublic && visibility != domain.RoomPrivate {
		visibility = domain.RoomPrivate
	}

	room := &domain.Room{
		ID:         domain.RoomID(utils.GenerateRoomID()),
		Name:       req.Name,
		OwnerID:    identity.ID,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}
	if err := h.rooms.Create(c.Request.Context(), room); err != nil {
		c.Error(errors.NewBackendUnavailableError("failed to create room"))
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "authentication required"))
		return
	}

	room, err := h.lookupRoom(c)
	if err != nil {
		c.Error(err)
		return
	}
	if room.Visibility == domain.RoomPrivate && !room.IsMember(identity.ID) {
		c.Error(errors.NewForbiddenError("not a member of this room"))
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) GetRoomStats(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "authentication required"))
		return
	}

	room, err := h.lookupRoom(c)
	if err != nil {
		c.Error(err)
		return
	}
	if room.Visibility == domain.RoomPrivate && !room.IsMember(identity.ID) {
		c.Error(errors.NewForbiddenError("not a member of this room"))
		return
	}

	stats, err := h.roomService.Stats(c.Request.Context(), room.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":          stats.RoomID,
		"presence_count":   stats.PresenceCount,
		"membership_count": stats.MembershipCount,
		"occupancy":        stats.Occupancy(),
		"document_version": stats.DocumentVersion,
		"timestamp":        stats.Timestamp,
	})
}

type AddParticipantRequest struct {
	IdentityID string `json:"identity_id" binding:"required,max=100"`
}

// AddParticipant grants a private room membership. Owner only.
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "authentication required"))
		return
	}

	room, err := h.lookupRoom(c)
	if err != nil {
		c.Error(err)
		return
	}
	if room.OwnerID != identity.ID {
		c.Error(errors.NewForbiddenError("only the room owner can add participants"))
		return
	}

	var req AddParticipantRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateIdentityID(req.IdentityID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	member := domain.IdentityID(req.IdentityID)
	if !room.IsMember(member) {
		room.Participants = append(room.Participants, member)
		if err := h.rooms.Update(c.Request.Context(), room); err != nil {
			c.Error(errors.NewBackendUnavailableError("failed to update room"))
			return
		}
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "authentication required"))
		return
	}

	room, err := h.lookupRoom(c)
	if err != nil {
		c.Error(err)
		return
	}
	if room.OwnerID != identity.ID {
		c.Error(errors.NewForbiddenError("only the room owner can delete the room"))
		return
	}

	if err := h.rooms.Delete(c.Request.Context(), room.ID); err != nil {
		c.Error(errors.NewBackendUnavailableError("failed to delete room"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) lookupRoom(c *gin.Context) (*domain.Room, error) {
	id := c.Param("id")
	if err := validation.ValidateRoomID(id); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	room, err := h.rooms.GetByID(c.Request.Context(), domain.RoomID(id))
	if err != nil {
		if err == domain.ErrRoomNotFound {
			return nil, errors.NewNotFoundError(errors.ErrCodeRoomNotFound, "room")
		}
		return nil, errors.NewBackendUnavailableError("room lookup failed")
	}
	return room, nil
}
