package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/chat"
	"github.com/sakif/chat-directory/internal/events"
	"github.com/sakif/chat-directory/internal/repository"
)

// ChatService is the "start or reuse a one-on-one chat" boundary the
// directory calls when a user is selected.
type ChatService struct {
	users  repository.UserRepository
	chats  chat.Store
	events events.Publisher
	logger *slog.Logger
}

func NewChatService(users repository.UserRepository, chats chat.Store, pub events.Publisher, logger *slog.Logger) *ChatService {
	return &ChatService{users: users, chats: chats, events: pub, logger: logger}
}

// StartOrReuse returns the chat between callerID and targetID, creating it
// if needed. created reports whether a new chat was made.
func (s *ChatService) StartOrReuse(ctx context.Context, callerID, targetID string) (c *chat.Chat, created bool, err error) {
	switch {
	case callerID == "":
		return nil, false, apperror.ValidationFailed("caller", "caller identity is required")
	case targetID == "":
		return nil, false, apperror.ValidationFailed("userId", "userId is required")
	case targetID == callerID:
		return nil, false, apperror.ValidationFailed("userId", "cannot start a chat with yourself")
	}

	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, apperror.NotFound("user", targetID)
		}
		return nil, false, s.internal(ctx, "loading target user", err)
	}

	existing, err := s.chats.FindByMembers(ctx, callerID, targetID)
	if err != nil {
		return nil, false, s.internal(ctx, "finding chat", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	c, err = s.chats.Create(ctx, callerID, targetID)
	if errors.Is(err, chat.ErrExists) {
		return c, false, nil
	}
	if err != nil {
		return nil, false, s.internal(ctx, "creating chat", err)
	}

	s.logger.InfoContext(ctx, "chat started",
		slog.String("chatID", c.ID),
		slog.String("callerID", callerID),
		slog.String("targetID", targetID),
	)

	// Publish failure is not fatal: the chat is already stored.
	if err := s.events.Publish(ctx, events.Event{
		Topic:  events.TopicChatStarted,
		UserID: callerID,
		ChatID: c.ID,
		At:     time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "publishing chat.started failed", slog.String("error", err.Error()))
	}

	return c, true, nil
}

func (s *ChatService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "chat operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return apperror.Internal()
}
