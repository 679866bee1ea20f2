package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/chat"
)

// ChatStarter is the subset of *service.ChatService the handler uses.
type ChatStarter interface {
	StartOrReuse(ctx context.Context, callerID, targetID string) (*chat.Chat, bool, error)
}

// ChatHandler opens one-on-one chats from the directory.
type ChatHandler struct {
	chats  ChatStarter
	logger *slog.Logger
}

func NewChatHandler(chats ChatStarter, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

type startChatRequest struct {
	UserID string `json:"userId"`
}

// HandleStart starts a chat with the selected user or returns the existing one.
//
// HTTP: POST /api/chats
// REQUEST BODY: {"userId": "..."}
// RESPONSE: 201 for a new chat, 200 when an existing chat is reused.
func (h *ChatHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req startChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, created, err := h.chats.StartOrReuse(r.Context(), callerID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, c)
}
