package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"

	"go.uber.org/zap"
)

// Event names emitted on the whiteboard path.
const (
	EventWhiteboardUpdated  = "whiteboard-updated"
	EventElementCreated     = "element-created"
	EventElementUpdated     = "element-updated"
	EventElementDeleted     = "element-deleted"
	EventWhiteboardRestored = "whiteboard-restored"
)

// WhiteboardConfig carries the tunables of the sync engine.
type WhiteboardConfig struct {
	// WriteMinInterval is the minimum spacing between accepted mutations
	// from one identity in one room. Violations are reported so clients can
	// back off.
	WriteMinInterval time.Duration
}

type whiteboardService struct {
	docRepo     ports.DocumentRepository
	roomRepo    ports.RoomRepository
	broadcaster ports.Broadcaster
	writes      *intervalThrottle
	logger      *zap.SugaredLogger
}

func NewWhiteboardService(
	docRepo ports.DocumentRepository,
	roomRepo ports.RoomRepository,
	broadcaster ports.Broadcaster,
	cfg WhiteboardConfig,
	logger *zap.SugaredLogger,
) ports.WhiteboardService {
	return &whiteboardService{
		docRepo:     docRepo,
		roomRepo:    roomRepo,
		broadcaster: broadcaster,
		writes:      newIntervalThrottle(cfg.WriteMinInterval),
		logger:      logger,
	}
}

func (s *whiteboardService) Load(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*domain.WhiteboardDocument, error) {
	if err := s.requireMember(roomID, connID); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return domain.NewWhiteboardDocument(roomID), nil
		}
		return nil, apperrors.NewBackendUnavailableError("document store unreachable")
	}
	return doc, nil
}

func (s *whiteboardService) ReplaceAll(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, elements []domain.Element, viewState map[string]json.RawMessage) (*ports.WhiteboardDelta, error) {
	if err := s.checkWrite(identity, connID, roomID); err != nil {
		return nil, err
	}

	doc, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		// A replacement touching many elements, incoming or outgoing, is the
		// point where history is worth keeping: snapshot the state it
		// overwrites first.
		if len(doc.Elements) > domain.SnapshotElementThreshold ||
			len(elements) > domain.SnapshotElementThreshold {
			doc.AppendSnapshot(identity.ID)
		}
		doc.Elements = elements
		if viewState != nil {
			doc.ViewState = viewState
		}
		doc.Bump(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := &ports.WhiteboardDelta{
		RoomID:    roomID,
		Version:   doc.Version,
		Elements:  elements,
		ViewState: viewState,
		AuthorID:  identity.ID,
	}
	s.broadcaster.Broadcast(roomID, EventWhiteboardUpdated, delta, connID)
	return delta, nil
}

func (s *whiteboardService) CreateElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, el domain.Element) (*ports.WhiteboardDelta, error) {
	if err := s.checkWrite(identity, connID, roomID); err != nil {
		return nil, err
	}

	doc, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		doc.Elements = append(doc.Elements, el)
		doc.Bump(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := &ports.WhiteboardDelta{
		RoomID:   roomID,
		Version:  doc.Version,
		Element:  &el,
		AuthorID: identity.ID,
	}
	s.broadcaster.Broadcast(roomID, EventElementCreated, delta, connID)
	return delta, nil
}

func (s *whiteboardService) UpdateElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, el domain.Element) (*ports.WhiteboardDelta, error) {
	if err := s.checkWrite(identity, connID, roomID); err != nil {
		return nil, err
	}

	doc, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		idx := doc.FindElement(el.ID)
		if idx < 0 {
			return apperrors.NewNotFoundError(apperrors.ErrCodeElementNotFound, "element")
		}
		doc.Elements[idx] = el
		doc.Bump(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := &ports.WhiteboardDelta{
		RoomID:   roomID,
		Version:  doc.Version,
		Element:  &el,
		AuthorID: identity.ID,
	}
	s.broadcaster.Broadcast(roomID, EventElementUpdated, delta, connID)
	return delta, nil
}

func (s *whiteboardService) DeleteElement(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, id domain.ElementID) (*ports.WhiteboardDelta, error) {
	if err := s.checkWrite(identity, connID, roomID); err != nil {
		return nil, err
	}

	doc, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		idx := doc.FindElement(id)
		if idx < 0 {
			return apperrors.NewNotFoundError(apperrors.ErrCodeElementNotFound, "element")
		}
		doc.Elements = append(doc.Elements[:idx], doc.Elements[idx+1:]...)
		doc.Bump(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := &ports.WhiteboardDelta{
		RoomID:    roomID,
		Version:   doc.Version,
		ElementID: id,
		AuthorID:  identity.ID,
	}
	s.broadcaster.Broadcast(roomID, EventElementDeleted, delta, connID)
	return delta, nil
}

func (s *whiteboardService) Snapshot(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) (*domain.DocumentSnapshot, error) {
	if err := s.requireMember(roomID, connID); err != nil {
		return nil, err
	}

	var snap domain.DocumentSnapshot
	_, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		snap = doc.AppendSnapshot(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// RestoreSnapshot is owner-only. It replaces the mutable document fields
// from the chosen snapshot, bumps the version and announces the jump with a
// distinct event so clients do not treat it as an incremental edit.
func (s *whiteboardService) RestoreSnapshot(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, version int64) (*domain.WhiteboardDocument, error) {
	if err := s.requireMember(roomID, connID); err != nil {
		return nil, err
	}

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeRoomNotFound, "room")
		}
		return nil, apperrors.NewBackendUnavailableError("room lookup failed")
	}
	if room.OwnerID != identity.ID {
		return nil, apperrors.NewForbiddenError("only the room owner can restore a snapshot")
	}

	doc, err := s.apply(ctx, roomID, func(doc *domain.WhiteboardDocument) error {
		var snap *domain.DocumentSnapshot
		for i := range doc.Snapshots {
			if doc.Snapshots[i].Version == version {
				snap = &doc.Snapshots[i]
				break
			}
		}
		if snap == nil {
			return apperrors.NewNotFoundError(apperrors.ErrCodeSnapshotNotFound, "snapshot")
		}

		doc.Elements = append([]domain.Element(nil), snap.Elements...)
		doc.ViewState = snap.ViewState
		doc.AttachedFiles = snap.AttachedFiles
		doc.Bump(identity.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(roomID, EventWhiteboardRestored, &ports.WhiteboardDelta{
		RoomID:    roomID,
		Version:   doc.Version,
		Elements:  doc.Elements,
		ViewState: doc.ViewState,
		AuthorID:  identity.ID,
	}, connID)
	return doc, nil
}

// checkWrite runs the shared preamble of every mutation: membership check,
// then the per-identity write throttle.
func (s *whiteboardService) checkWrite(identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID) error {
	if err := s.requireMember(roomID, connID); err != nil {
		return err
	}
	if !s.writes.Allow(writeKey(identity.ID, roomID)) {
		return apperrors.NewRateLimitError(s.writes.interval)
	}
	return nil
}

func (s *whiteboardService) requireMember(roomID domain.RoomID, connID domain.ConnectionID) error {
	if !s.broadcaster.Contains(roomID, connID) {
		return apperrors.NewForbiddenError("not a member of this room")
	}
	return nil
}

// apply funnels every mutation through the repository's atomic
// read-modify-write, so concurrent writers cannot lose version increments.
// It fails closed: an unpersisted mutation is never broadcast.
func (s *whiteboardService) apply(ctx context.Context, roomID domain.RoomID, mutate func(*domain.WhiteboardDocument) error) (*domain.WhiteboardDocument, error) {
	doc, err := s.docRepo.Apply(ctx, roomID, mutate)
	if err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			return nil, appErr
		}
		s.logger.Errorw("document mutation failed",
			"room_id", roomID,
			"error", err,
		)
		return nil, apperrors.NewBackendUnavailableError("document store unreachable")
	}
	return doc, nil
}

func writeKey(id domain.IdentityID, roomID domain.RoomID) string {
	return fmt.Sprintf("%s:%s", id, roomID)
}
