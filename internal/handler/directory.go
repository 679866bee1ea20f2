package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/model"
)

// DirectoryService is the subset of *service.DirectoryService the handler uses.
type DirectoryService interface {
	Search(ctx context.Context, callerID, keyword string) ([]model.PublicUser, error)
}

// DirectoryHandler lists the users the caller can start a chat with.
type DirectoryHandler struct {
	directory DirectoryService
	logger    *slog.Logger
}

func NewDirectoryHandler(directory DirectoryService, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, logger: logger}
}

// HandleSearch returns every user except the caller, optionally filtered by
// a case-insensitive substring of name or email.
//
// HTTP: GET /api/users?search=ali
// Auth: Required
//
// RESPONSE FORMAT:
//
//	[
//	  {"id":"...","name":"Alice","email":"a@x.com","avatar":{"contentType":"image/png","data":"..."}},
//	  {"id":"...","name":"Bob","email":"alias@x.com"}
//	]
//
// An empty result is "[]", never null.
func (h *DirectoryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	users, err := h.directory.Search(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.PublicUser{}
	}

	h.logger.Debug("directory search",
		slog.String("userID", userID),
		slog.Int("results", len(users)),
	)
	writeJSON(w, http.StatusOK, users)
}
