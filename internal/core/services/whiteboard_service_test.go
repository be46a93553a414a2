package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"slate/internal/core/domain"
	"slate/internal/infrastructure/repositories/memory"
	apperrors "slate/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type whiteboardFixture struct {
	docRepo     *MockDocumentRepository
	roomRepo    *MockRoomRepository
	broadcaster *fakeBroadcaster
	svc         *whiteboardService
}

func newWhiteboardFixture(minInterval time.Duration) *whiteboardFixture {
	f := &whiteboardFixture{
		docRepo:     new(MockDocumentRepository),
		roomRepo:    new(MockRoomRepository),
		broadcaster: newFakeBroadcaster(),
	}
	f.svc = NewWhiteboardService(f.docRepo, f.roomRepo, f.broadcaster,
		WhiteboardConfig{WriteMinInterval: minInterval}, zap.NewNop().Sugar()).(*whiteboardService)
	f.broadcaster.attach("room-1", "conn-1", "user-1")
	return f
}

func TestLoad_NonMemberForbidden(t *testing.T) {
	f := newWhiteboardFixture(0)

	_, err := f.svc.Load(context.Background(), domain.Identity{ID: "stranger"}, "conn-x", "room-1")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestLoad_MissingDocumentIsEmptyVersionZero(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.docRepo.On("Get", mock.Anything, domain.RoomID("room-1")).
		Return(nil, domain.ErrDocumentNotFound)

	doc, err := f.svc.Load(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), doc.Version)
	assert.Empty(t, doc.Elements)
}

func TestCreateElement_BumpsVersionAndBroadcastsToOthers(t *testing.T) {
	f := newWhiteboardFixture(0)
	doc := domain.NewWhiteboardDocument("room-1")
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).Return(doc, nil)

	el := domain.Element{ID: "el-1", Type: "rectangle", X: 10, Y: 20}
	delta, err := f.svc.CreateElement(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", el)
	require.NoError(t, err)

	assert.Equal(t, int64(1), delta.Version)
	require.NotNil(t, delta.Element)
	assert.Equal(t, domain.ElementID("el-1"), delta.Element.ID)

	last := f.broadcaster.lastEvent()
	require.NotNil(t, last)
	assert.Equal(t, EventElementCreated, last.Event)
	assert.Equal(t, []domain.ConnectionID{"conn-1"}, last.Exclude)

	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, domain.IdentityID("user-1"), doc.LastModifiedBy)
	assert.Len(t, doc.Elements, 1)
}

func TestUpdateElement_MissingElementIsTypedNotice(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).
		Return(&domain.WhiteboardDocument{RoomID: "room-1", Version: 3}, nil)

	_, err := f.svc.UpdateElement(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1",
		domain.Element{ID: "ghost"})
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeElementNotFound, appErr.Code)

	// A rejected mutation never broadcasts.
	assert.Empty(t, f.broadcaster.eventNames())
}

func TestDeleteElement_RemovesAndBumps(t *testing.T) {
	f := newWhiteboardFixture(0)
	doc := &domain.WhiteboardDocument{
		RoomID:   "room-1",
		Elements: []domain.Element{{ID: "el-1"}, {ID: "el-2"}},
		Version:  5,
	}
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).Return(doc, nil)

	delta, err := f.svc.DeleteElement(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", "el-1")
	require.NoError(t, err)

	assert.Equal(t, int64(6), delta.Version)
	assert.Equal(t, domain.ElementID("el-1"), delta.ElementID)
	assert.Len(t, doc.Elements, 1)
	assert.Equal(t, domain.ElementID("el-2"), doc.Elements[0].ID)
}

func TestReplaceAll_SnapshotsLargeOutgoingState(t *testing.T) {
	f := newWhiteboardFixture(0)
	elements := make([]domain.Element, domain.SnapshotElementThreshold+1)
	for i := range elements {
		elements[i] = domain.Element{ID: domain.ElementID(fmt.Sprintf("el-%d", i))}
	}
	doc := &domain.WhiteboardDocument{RoomID: "room-1", Elements: elements, Version: 9}
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).Return(doc, nil)

	delta, err := f.svc.ReplaceAll(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1",
		[]domain.Element{{ID: "fresh"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), delta.Version)
	require.Len(t, doc.Snapshots, 1)
	assert.Equal(t, int64(9), doc.Snapshots[0].Version)
	assert.Len(t, doc.Snapshots[0].Elements, domain.SnapshotElementThreshold+1)
	assert.Equal(t, EventWhiteboardUpdated, f.broadcaster.lastEvent().Event)
}

func TestReplaceAll_SnapshotsBeforeLargeIncomingState(t *testing.T) {
	f := newWhiteboardFixture(0)
	incoming := make([]domain.Element, domain.SnapshotElementThreshold+5)
	for i := range incoming {
		incoming[i] = domain.Element{ID: domain.ElementID(fmt.Sprintf("new-%d", i))}
	}
	// The outgoing state is small; the incoming one is what makes the
	// replacement worth a snapshot.
	doc := &domain.WhiteboardDocument{
		RoomID:   "room-1",
		Elements: []domain.Element{{ID: "old-1"}, {ID: "old-2"}},
		Version:  4,
	}
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).Return(doc, nil)

	delta, err := f.svc.ReplaceAll(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1",
		incoming, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(5), delta.Version)
	require.Len(t, doc.Snapshots, 1)
	assert.Equal(t, int64(4), doc.Snapshots[0].Version)
	assert.Len(t, doc.Snapshots[0].Elements, 2)
}

func TestWrite_MinIntervalThrottle(t *testing.T) {
	f := newWhiteboardFixture(100 * time.Millisecond)
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).
		Return(domain.NewWhiteboardDocument("room-1"), nil)

	identity := domain.Identity{ID: "user-1"}
	_, err := f.svc.CreateElement(context.Background(), identity, "conn-1", "room-1", domain.Element{ID: "el-1"})
	require.NoError(t, err)

	_, err = f.svc.CreateElement(context.Background(), identity, "conn-1", "room-1", domain.Element{ID: "el-2"})
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeRateLimit, appErr.Code)
	assert.Contains(t, appErr.Context, "window")
}

func TestPersistFailure_FailsClosedWithoutBroadcast(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).
		Return(nil, domain.ErrBackendUnavailable)

	_, err := f.svc.CreateElement(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1",
		domain.Element{ID: "el-1"})
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeBackendUnavailable, appErr.Code)
	assert.Empty(t, f.broadcaster.eventNames())
}

// Concurrent writers on one room must each land their own version increment.
// This runs against the real in-memory repository, whose Apply serializes
// the read-modify-write.
func TestConcurrentCreates_OneVersionPerMutation(t *testing.T) {
	broadcaster := newFakeBroadcaster()
	docRepo := memory.NewMemoryDocumentRepository()
	svc := NewWhiteboardService(docRepo, new(MockRoomRepository), broadcaster,
		WhiteboardConfig{}, zap.NewNop().Sugar())

	const writers = 50
	for i := 0; i < writers; i++ {
		broadcaster.attach("room-1",
			domain.ConnectionID(fmt.Sprintf("conn-%d", i)),
			domain.IdentityID(fmt.Sprintf("user-%d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := domain.Identity{ID: domain.IdentityID(fmt.Sprintf("user-%d", i))}
			connID := domain.ConnectionID(fmt.Sprintf("conn-%d", i))
			el := domain.Element{ID: domain.ElementID(fmt.Sprintf("el-%d", i))}
			_, err := svc.CreateElement(context.Background(), identity, connID, "room-1", el)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := docRepo.Get(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), doc.Version)
	assert.Len(t, doc.Elements, writers)
}

func TestRestoreSnapshot_OwnerOnly(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.roomRepo.On("GetByID", mock.Anything, domain.RoomID("room-1")).
		Return(&domain.Room{ID: "room-1", OwnerID: "owner-1"}, nil)

	_, err := f.svc.RestoreSnapshot(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", 3)
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestRestoreSnapshot_ReplacesStateAndAnnouncesJump(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.broadcaster.attach("room-1", "conn-owner", "owner-1")
	f.roomRepo.On("GetByID", mock.Anything, domain.RoomID("room-1")).
		Return(&domain.Room{ID: "room-1", OwnerID: "owner-1"}, nil)

	doc := &domain.WhiteboardDocument{
		RoomID:   "room-1",
		Elements: []domain.Element{{ID: "current"}},
		Version:  12,
		Snapshots: []domain.DocumentSnapshot{
			{Version: 8, Elements: []domain.Element{{ID: "old-1"}, {ID: "old-2"}}},
		},
	}
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).Return(doc, nil)

	restored, err := f.svc.RestoreSnapshot(context.Background(), domain.Identity{ID: "owner-1"}, "conn-owner", "room-1", 8)
	require.NoError(t, err)

	// Restore jumps content back but the version still moves forward.
	assert.Equal(t, int64(13), restored.Version)
	assert.Len(t, restored.Elements, 2)
	assert.Equal(t, EventWhiteboardRestored, f.broadcaster.lastEvent().Event)
}

func TestRestoreSnapshot_UnknownVersion(t *testing.T) {
	f := newWhiteboardFixture(0)
	f.broadcaster.attach("room-1", "conn-owner", "owner-1")
	f.roomRepo.On("GetByID", mock.Anything, domain.RoomID("room-1")).
		Return(&domain.Room{ID: "room-1", OwnerID: "owner-1"}, nil)
	f.docRepo.On("Apply", mock.Anything, domain.RoomID("room-1")).
		Return(&domain.WhiteboardDocument{RoomID: "room-1", Version: 12}, nil)

	_, err := f.svc.RestoreSnapshot(context.Background(), domain.Identity{ID: "owner-1"}, "conn-owner", "room-1", 99)
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeSnapshotNotFound, appErr.Code)
}

func TestSnapshot_BoundedHistory(t *testing.T) {
	doc := domain.NewWhiteboardDocument("room-1")
	for i := 0; i < domain.MaxSnapshots+5; i++ {
		doc.Bump("user-1")
		doc.AppendSnapshot("user-1")
	}
	assert.Len(t, doc.Snapshots, domain.MaxSnapshots)
	// Oldest entries were evicted first.
	assert.Equal(t, int64(6), doc.Snapshots[0].Version)
}
