package services

import (
	"context"
	"strings"
	"testing"

	"slate/internal/core/domain"
	apperrors "slate/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatFixture struct {
	chatRepo    *MockChatRepository
	broadcaster *fakeBroadcaster
	svc         *chatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		chatRepo:    new(MockChatRepository),
		broadcaster: newFakeBroadcaster(),
	}
	f.svc = NewChatService(f.chatRepo, f.broadcaster, zap.NewNop().Sugar()).(*chatService)
	f.broadcaster.attach("room-1", "conn-1", "user-1")
	return f
}

func TestPost_PersistsThenBroadcastsIncludingSender(t *testing.T) {
	f := newChatFixture()
	f.chatRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

	msg, err := f.svc.Post(context.Background(), domain.Identity{ID: "user-1", DisplayName: "Alice"},
		"conn-1", "room-1", "hello")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.MessageText, msg.Kind)
	assert.Equal(t, "Alice", msg.AuthorName)

	// Unlike whiteboard deltas, chat echoes back to the author: no
	// exclusion list on the broadcast.
	last := f.broadcaster.lastEvent()
	require.NotNil(t, last)
	assert.Equal(t, EventChatMessage, last.Event)
	assert.Empty(t, last.Exclude)
	f.chatRepo.AssertCalled(t, "Append", mock.Anything, msg)
}

func TestPost_NonMemberForbidden(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.Post(context.Background(), domain.Identity{ID: "stranger"}, "conn-x", "room-1", "hi")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestPost_BlankContentRejected(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.Post(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", "   ")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, appErr.Code)
	f.chatRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestPost_OverlongContentRejected(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.Post(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1",
		strings.Repeat("x", 4001))
	require.Error(t, err)
}

func TestPost_PersistFailureNeverBroadcasts(t *testing.T) {
	f := newChatFixture()
	f.chatRepo.On("Append", mock.Anything, mock.Anything).Return(domain.ErrBackendUnavailable)

	_, err := f.svc.Post(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", "hello")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeBackendUnavailable, appErr.Code)
	assert.Empty(t, f.broadcaster.eventNames())
}

func TestHistory_ClampsLimit(t *testing.T) {
	f := newChatFixture()
	f.chatRepo.On("ListRecent", mock.Anything, domain.RoomID("room-1"), 50).
		Return([]*domain.ChatMessage{}, nil)

	_, err := f.svc.History(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", -1)
	require.NoError(t, err)
	f.chatRepo.AssertExpectations(t)
}

func TestTyping_EphemeralToOthersOnly(t *testing.T) {
	f := newChatFixture()

	err := f.svc.Typing(context.Background(), domain.Identity{ID: "user-1"}, "conn-1", "room-1", true)
	require.NoError(t, err)

	last := f.broadcaster.lastEvent()
	require.NotNil(t, last)
	assert.Equal(t, EventTyping, last.Event)
	assert.Equal(t, []domain.ConnectionID{"conn-1"}, last.Exclude)
	f.chatRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
