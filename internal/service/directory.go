package service

import (
	"context"
	"log/slog"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/repository"
)

// DirectoryService answers "who else is on the platform?" queries.
type DirectoryService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewDirectoryService(users repository.UserRepository, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{users: users, logger: logger}
}

// Search lists every user except callerID whose name or email contains
// keyword (case-insensitive, unanchored). An empty keyword lists everyone.
// Result order is whatever the store returns.
func (s *DirectoryService) Search(ctx context.Context, callerID, keyword string) ([]model.PublicUser, error) {
	if callerID == "" {
		return nil, apperror.ValidationFailed("caller", "caller identity is required")
	}

	users, err := s.users.Search(ctx, callerID, keyword)
	if err != nil {
		s.logger.ErrorContext(ctx, "directory search failed",
			slog.String("callerID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal()
	}

	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		if users[i].ID == callerID {
			continue
		}
		out = append(out, users[i].Public())
	}
	return out, nil
}
