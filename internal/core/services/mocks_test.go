package services

import (
	"context"
	"sync"

	"slate/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id domain.IdentityID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.WhiteboardDocument, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WhiteboardDocument), args.Error(1)
}

// Apply runs mutate on the stubbed document, mirroring the contract of the
// real repositories: a mutate error aborts without persisting.
func (m *MockDocumentRepository) Apply(ctx context.Context, roomID domain.RoomID, mutate func(*domain.WhiteboardDocument) error) (*domain.WhiteboardDocument, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	doc := args.Get(0).(*domain.WhiteboardDocument)
	if err := mutate(doc); err != nil {
		return nil, err
	}
	return doc, args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, roomID domain.RoomID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockChatRepository) ListRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

type MockPresenceStore struct {
	mock.Mock
}

func (m *MockPresenceStore) Put(ctx context.Context, rec *domain.PresenceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPresenceStore) Get(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) (*domain.PresenceRecord, error) {
	args := m.Called(ctx, roomID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PresenceRecord), args.Error(1)
}

func (m *MockPresenceStore) List(ctx context.Context, roomID domain.RoomID) ([]*domain.PresenceRecord, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PresenceRecord), args.Error(1)
}

func (m *MockPresenceStore) Count(ctx context.Context, roomID domain.RoomID) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *MockPresenceStore) Remove(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	args := m.Called(ctx, roomID, id)
	return args.Error(0)
}

func (m *MockPresenceStore) RemoveIfConnection(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, conn domain.ConnectionID) (bool, error) {
	args := m.Called(ctx, roomID, id, conn)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresenceStore) Touch(ctx context.Context, roomID domain.RoomID, id domain.IdentityID) error {
	args := m.Called(ctx, roomID, id)
	return args.Error(0)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Validate(ctx context.Context, id domain.IdentityID, token string) (bool, error) {
	args := m.Called(ctx, id, token)
	return args.Bool(0), args.Error(1)
}

type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) LimitsFor(ctx context.Context, identity domain.Identity) (domain.PlanLimits, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(domain.PlanLimits), args.Error(1)
}

// fakeBroadcaster is an in-memory channel registry that records every fan-out
// so tests can assert on recipients and exclusions.
type fakeBroadcaster struct {
	mu       sync.Mutex
	members  map[domain.RoomID]map[domain.ConnectionID]domain.IdentityID
	events   []broadcastCall
	unicasts []unicastCall
}

type broadcastCall struct {
	RoomID  domain.RoomID
	Event   string
	Payload any
	Exclude []domain.ConnectionID
}

type unicastCall struct {
	RoomID  domain.RoomID
	Target  domain.IdentityID
	Event   string
	Payload any
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{members: make(map[domain.RoomID]map[domain.ConnectionID]domain.IdentityID)}
}

func (b *fakeBroadcaster) attach(roomID domain.RoomID, conn domain.ConnectionID, id domain.IdentityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.members[roomID] == nil {
		b.members[roomID] = make(map[domain.ConnectionID]domain.IdentityID)
	}
	b.members[roomID][conn] = id
}

func (b *fakeBroadcaster) Broadcast(roomID domain.RoomID, event string, payload any, exclude ...domain.ConnectionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastCall{RoomID: roomID, Event: event, Payload: payload, Exclude: exclude})
}

func (b *fakeBroadcaster) SendToIdentity(roomID domain.RoomID, target domain.IdentityID, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.members[roomID] {
		if id == target {
			b.unicasts = append(b.unicasts, unicastCall{RoomID: roomID, Target: target, Event: event, Payload: payload})
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (b *fakeBroadcaster) Contains(roomID domain.RoomID, conn domain.ConnectionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.members[roomID][conn]
	return ok
}

func (b *fakeBroadcaster) ConnectionCount(roomID domain.RoomID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members[roomID])
}

func (b *fakeBroadcaster) lastEvent() *broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return &b.events[len(b.events)-1]
}

func (b *fakeBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Event)
	}
	return names
}
