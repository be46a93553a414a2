package services

import (
	"context"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"
	"slate/pkg/utils"
	"slate/pkg/validation"

	"go.uber.org/zap"
)

// Event names emitted on the chat path.
const (
	EventChatMessage = "chat-message"
	EventTyping      = "typing"
)

type typingNotice struct {
	RoomID     domain.RoomID     `json:"room_id"`
	IdentityID domain.IdentityID `json:"identity_id"`
	Active     bool              `json:"active"`
}

type chatService struct {
	chatRepo    ports.ChatRepository
	broadcaster ports.Broadcaster
	logger      *zap.SugaredLogger
}

func NewChatService(chatRepo ports.ChatRepository, broadcaster ports.Broadcaster, logger *zap.SugaredLogger) ports.ChatService {
	return &chatService{
		chatRepo:    chatRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Post persists the message and then broadcasts it to the whole room,
// sender included. Chat deliberately echoes to the author so every client
// sees messages arrive in the same order through the same channel.
func (s *chatService) Post(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, content string) (*domain.ChatMessage, error) {
	if !s.broadcaster.Contains(roomID, connID) {
		return nil, apperrors.NewForbiddenError("not a member of this room")
	}
	content = utils.SanitizeString(content)
	if err := validation.ValidateChatContent(content); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	msg := &domain.ChatMessage{
		ID:         utils.GenerateMessageID(),
		RoomID:     roomID,
		AuthorID:   identity.ID,
		AuthorName: identity.DisplayName,
		Content:    content,
		Kind:       domain.MessageText,
		CreatedAt:  time.Now(),
	}

	if err := s.chatRepo.Append(ctx, msg); err != nil {
		s.logger.Errorw("chat persist failed",
			"room_id", roomID,
			"error", err)
		return nil, apperrors.NewBackendUnavailableError("chat store unreachable")
	}

	s.broadcaster.Broadcast(roomID, EventChatMessage, msg)
	return msg, nil
}

func (s *chatService) History(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, limit int) ([]*domain.ChatMessage, error) {
	if !s.broadcaster.Contains(roomID, connID) {
		return nil, apperrors.NewForbiddenError("not a member of this room")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	msgs, err := s.chatRepo.ListRecent(ctx, roomID, limit)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("chat store unreachable")
	}
	return msgs, nil
}

// Typing indicators are ephemeral: never persisted, sent to others only.
func (s *chatService) Typing(ctx context.Context, identity domain.Identity, connID domain.ConnectionID, roomID domain.RoomID, active bool) error {
	if !s.broadcaster.Contains(roomID, connID) {
		return apperrors.NewForbiddenError("not a member of this room")
	}

	s.broadcaster.Broadcast(roomID, EventTyping, typingNotice{
		RoomID:     roomID,
		IdentityID: identity.ID,
		Active:     active,
	}, connID)
	return nil
}
