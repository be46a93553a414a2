package services

import (
	"context"
	"errors"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"

	"go.uber.org/zap"
)

// Event names emitted on the signaling path.
const (
	EventWebRTCOffer        = "webrtc-offer"
	EventWebRTCAnswer       = "webrtc-answer"
	EventWebRTCICECandidate = "webrtc-ice-candidate"
	EventCallInitiated      = "call-initiated"
)

// signalEnvelope is the unicast form of a relayed signaling message. The
// payload passes through untouched.
type signalEnvelope struct {
	RoomID  domain.RoomID     `json:"room_id"`
	FromID  domain.IdentityID `json:"from_id"`
	Payload any               `json:"payload"`
}

type signalingService struct {
	broadcaster ports.Broadcaster
	presence    ports.PresenceStore
	plans       ports.PlanService
	logger      *zap.SugaredLogger
}

func NewSignalingService(
	broadcaster ports.Broadcaster,
	presence ports.PresenceStore,
	plans ports.PlanService,
	logger *zap.SugaredLogger,
) ports.SignalingService {
	return &signalingService{
		broadcaster: broadcaster,
		presence:    presence,
		plans:       plans,
		logger:      logger,
	}
}

func (s *signalingService) RelayOffer(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error {
	return s.relayChecked(identity, connID, roomID, target, EventWebRTCOffer, payload)
}

func (s *signalingService) RelayAnswer(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error {
	return s.relayChecked(identity, connID, roomID, target, EventWebRTCAnswer, payload)
}

// RelayICECandidate is loss-tolerant: candidates are frequent, so a target
// that cannot be located is simply dropped with no error to the sender.
func (s *signalingService) RelayICECandidate(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, payload any) error {
	err := s.broadcaster.SendToIdentity(roomID, target, EventWebRTCICECandidate, signalEnvelope{
		RoomID:  roomID,
		FromID:  identity.ID,
		Payload: payload,
	})
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Debugw("ICE candidate relay failed",
			"room_id", roomID,
			"target_id", target,
			"error", err)
	}
	return nil
}

// relayChecked forwards an offer or answer to exactly one room member. Both
// ends must be current members; the message is never broadcast.
func (s *signalingService) relayChecked(identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, target domain.IdentityID, event string, payload any) error {
	if !s.broadcaster.Contains(roomID, connID) {
		return apperrors.NewForbiddenError("not a member of this room")
	}

	err := s.broadcaster.SendToIdentity(roomID, target, event, signalEnvelope{
		RoomID:  roomID,
		FromID:  identity.ID,
		Payload: payload,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.NewNotFoundError(apperrors.ErrCodeUserNotFound, "target user")
		}
		return apperrors.NewInternalError("signaling relay failed")
	}
	return nil
}

// InitiateCall gates a new call against the caller's plan-derived call
// participant cap, which is distinct from the room-join capacity limit.
func (s *signalingService) InitiateCall(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) error {
	if !s.broadcaster.Contains(roomID, connID) {
		return apperrors.NewForbiddenError("not a member of this room")
	}

	limits, err := s.plans.LimitsFor(ctx, identity)
	if err != nil {
		return err
	}

	occupancy, cerr := s.presence.Count(ctx, roomID)
	if cerr != nil {
		// Presence unavailable: fall back to the live channel connections
		// on this instance rather than blocking the call outright.
		occupancy = s.broadcaster.ConnectionCount(roomID)
	}
	if occupancy > limits.CallParticipants {
		return apperrors.NewCapacityError(apperrors.ErrCodeCallLimit, "call participant limit reached").
			WithContext("limit", limits.CallParticipants)
	}

	s.broadcaster.Broadcast(roomID, EventCallInitiated, signalEnvelope{
		RoomID: roomID,
		FromID: identity.ID,
	}, connID)
	return nil
}
