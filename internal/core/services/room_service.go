package services

import (
	"context"
	"errors"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"

	"go.uber.org/zap"
)

// Event names emitted on the room lifecycle path.
const (
	EventMemberJoined   = "member-joined"
	EventMemberRestored = "member-restored"
	EventMemberLeft     = "member-left"
)

type memberNotice struct {
	RoomID domain.RoomID          `json:"room_id"`
	Member *domain.PresenceRecord `json:"member"`
}

type memberLeftNotice struct {
	RoomID     domain.RoomID            `json:"room_id"`
	IdentityID domain.IdentityID        `json:"identity_id"`
	Members    []*domain.PresenceRecord `json:"members"`
}

type roomService struct {
	roomRepo    ports.RoomRepository
	userRepo    ports.UserRepository
	docRepo     ports.DocumentRepository
	presence    ports.PresenceStore
	broadcaster ports.Broadcaster
	plans       ports.PlanService
	logger      *zap.SugaredLogger
}

func NewRoomService(
	roomRepo ports.RoomRepository,
	userRepo ports.UserRepository,
	docRepo ports.DocumentRepository,
	presence ports.PresenceStore,
	broadcaster ports.Broadcaster,
	plans ports.PlanService,
	logger *zap.SugaredLogger,
) ports.RoomService {
	return &roomService{
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		docRepo:     docRepo,
		presence:    presence,
		broadcaster: broadcaster,
		plans:       plans,
		logger:      logger,
	}
}

func (s *roomService) Join(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*ports.JoinResult, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeRoomNotFound, "room")
		}
		return nil, apperrors.NewBackendUnavailableError("room lookup failed")
	}

	if room.Visibility != domain.RoomPublic && !room.IsMember(identity.ID) {
		return nil, apperrors.NewForbiddenError("not a member of this room")
	}

	// An existing record for this identity means a reconnect: the new record
	// replaces the old one and others get a restore notice instead of a
	// second join.
	existing, err := s.presence.Get(ctx, roomID, identity.ID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewBackendUnavailableError("presence store unreachable")
	}
	reconnect := existing != nil

	if !reconnect {
		if err := s.checkCapacity(ctx, room); err != nil {
			return nil, err
		}
	}

	rec := &domain.PresenceRecord{
		IdentityID:     identity.ID,
		RoomID:         roomID,
		ConnectionID:   connID,
		DisplayName:    identity.DisplayName,
		AvatarRef:      identity.AvatarRef,
		JoinedAt:       time.Now(),
		LastActivityAt: time.Now(),
	}
	if reconnect {
		rec.JoinedAt = existing.JoinedAt
	}
	if err := s.presence.Put(ctx, rec); err != nil {
		return nil, apperrors.NewBackendUnavailableError("presence store unreachable")
	}

	members, err := s.presence.List(ctx, roomID)
	if err != nil {
		s.logger.Warnw("member listing failed after join",
			"room_id", roomID,
			"error", err)
		members = []*domain.PresenceRecord{rec}
	}

	event := EventMemberJoined
	if reconnect {
		event = EventMemberRestored
	}
	s.broadcaster.Broadcast(roomID, event, memberNotice{RoomID: roomID, Member: rec}, connID)

	return &ports.JoinResult{
		Room:        room,
		Members:     members,
		Document:    s.loadDocumentBestEffort(ctx, roomID),
		Reconnected: reconnect,
	}, nil
}

// checkCapacity gates a first-time join against the room owner's plan limit.
// Occupancy is the max of live presence and authoritative membership so a
// partially failed presence store never undercounts a full room.
func (s *roomService) checkCapacity(ctx context.Context, room *domain.Room) error {
	limits, err := s.ownerLimits(ctx, room)
	if err != nil {
		return err
	}

	presenceCount, err := s.presence.Count(ctx, room.ID)
	if err != nil {
		s.logger.Warnw("presence count unavailable, falling back to membership count",
			"room_id", room.ID,
			"error", err)
		presenceCount = 0
	}

	stats := domain.RoomStats{
		RoomID:          room.ID,
		PresenceCount:   presenceCount,
		MembershipCount: room.MemberCount(),
	}
	if stats.Occupancy() >= limits.RoomParticipants {
		return apperrors.NewCapacityError(apperrors.ErrCodeParticipantLimit, "room participant limit reached").
			WithContext("limit", limits.RoomParticipants)
	}
	return nil
}

func (s *roomService) ownerLimits(ctx context.Context, room *domain.Room) (domain.PlanLimits, error) {
	owner, err := s.userRepo.GetByID(ctx, room.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.PlanLimits{}, apperrors.NewNotFoundError(apperrors.ErrCodeOwnerNotFound, "room owner")
		}
		return domain.PlanLimits{}, apperrors.WrapError(err, apperrors.ErrCodeLimitCheckFailed, "plan limit lookup failed", 503)
	}
	return s.plans.LimitsFor(ctx, domain.Identity{ID: owner.ID, Plan: owner.Plan})
}

func (s *roomService) Leave(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) ([]*domain.PresenceRecord, error) {
	// Only a live member may leave; anything else would let an outsider
	// inject departure notices into rooms it never joined.
	if _, err := s.presence.Get(ctx, roomID, identity.ID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperrors.NewForbiddenError("not a member of this room")
		}
		return nil, apperrors.NewBackendUnavailableError("presence store unreachable")
	}

	if err := s.presence.Remove(ctx, roomID, identity.ID); err != nil {
		return nil, apperrors.NewBackendUnavailableError("presence store unreachable")
	}

	members, err := s.presence.List(ctx, roomID)
	if err != nil {
		s.logger.Warnw("member listing failed after leave",
			"room_id", roomID,
			"error", err)
		members = nil
	}

	s.broadcaster.Broadcast(roomID, EventMemberLeft, memberLeftNotice{
		RoomID:     roomID,
		IdentityID: identity.ID,
		Members:    members,
	}, connID)
	return members, nil
}

// Disconnect is the implicit-leave path for a closed socket. It is
// idempotent, never fails, and removes a presence record only when the
// record still belongs to the dying connection, so a reconnect that already
// replaced the record is left alone.
func (s *roomService) Disconnect(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, rooms []domain.RoomID) error {
	for _, roomID := range rooms {
		removed, err := s.presence.RemoveIfConnection(ctx, roomID, identity.ID, connID)
		if err != nil {
			s.logger.Warnw("presence cleanup failed on disconnect",
				"room_id", roomID,
				"identity_id", identity.ID,
				"error", err)
			continue
		}
		if !removed {
			continue
		}

		members, lerr := s.presence.List(ctx, roomID)
		if lerr != nil {
			members = nil
		}
		s.broadcaster.Broadcast(roomID, EventMemberLeft, memberLeftNotice{
			RoomID:     roomID,
			IdentityID: identity.ID,
			Members:    members,
		}, connID)
	}
	return nil
}

func (s *roomService) Heartbeat(ctx context.Context, identity domain.Identity, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		if err := s.presence.Touch(ctx, roomID, identity.ID); err != nil {
			s.logger.Debugw("presence touch failed",
				"room_id", roomID,
				"identity_id", identity.ID,
				"error", err)
		}
	}
}

func (s *roomService) Stats(ctx context.Context, roomID domain.RoomID) (*domain.RoomStats, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeRoomNotFound, "room")
		}
		return nil, apperrors.NewBackendUnavailableError("room lookup failed")
	}

	presenceCount, err := s.presence.Count(ctx, roomID)
	if err != nil {
		presenceCount = 0
	}

	stats := &domain.RoomStats{
		RoomID:          roomID,
		PresenceCount:   presenceCount,
		MembershipCount: room.MemberCount(),
		Timestamp:       time.Now(),
	}
	if doc, derr := s.docRepo.Get(ctx, roomID); derr == nil {
		stats.DocumentVersion = doc.Version
	}
	return stats, nil
}

// loadDocumentBestEffort returns the room's document for the join reply. A
// missing document is the empty version-0 state; an unreachable store
// degrades to the same so the join itself still succeeds.
func (s *roomService) loadDocumentBestEffort(ctx context.Context, roomID domain.RoomID) *domain.WhiteboardDocument {
	doc, err := s.docRepo.Get(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			s.logger.Warnw("document load failed during join, replying with empty state",
				"room_id", roomID,
				"error", err)
		}
		return domain.NewWhiteboardDocument(roomID)
	}
	return doc
}
