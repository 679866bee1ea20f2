package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/chat"
	"github.com/sakif/chat-directory/internal/handler"
	"github.com/sakif/chat-directory/internal/model"
)

type MockDirectory struct {
	CapturedCaller  string
	CapturedKeyword string
	Users           []model.PublicUser
	Err             error
}

func (m *MockDirectory) Search(_ context.Context, callerID, keyword string) ([]model.PublicUser, error) {
	m.CapturedCaller, m.CapturedKeyword = callerID, keyword
	return m.Users, m.Err
}

func TestDirectoryHandler_HandleSearch(t *testing.T) {
	t.Run("passes keyword and caller", func(t *testing.T) {
		mock := &MockDirectory{Users: []model.PublicUser{{ID: "u2", Name: "Alice"}}}
		h := handler.NewDirectoryHandler(mock, quietLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users?search=ali", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		h.HandleSearch(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", mock.CapturedCaller)
		assert.Equal(t, "ali", mock.CapturedKeyword)
		assert.JSONEq(t, `[{"id":"u2","name":"Alice","email":""}]`, rr.Body.String())
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		h := handler.NewDirectoryHandler(&MockDirectory{}, quietLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		h.HandleSearch(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("untyped error never leaks", func(t *testing.T) {
		mock := &MockDirectory{Err: errors.New("SELECT * FROM users: no such table")}
		h := handler.NewDirectoryHandler(mock, quietLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		h.HandleSearch(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "SELECT")
	})
}

type MockChats struct {
	Chat    *chat.Chat
	Created bool
	Err     error
	Target  string
}

func (m *MockChats) StartOrReuse(_ context.Context, _, targetID string) (*chat.Chat, bool, error) {
	m.Target = targetID
	return m.Chat, m.Created, m.Err
}

func TestChatHandler_HandleStart(t *testing.T) {
	c := &chat.Chat{ID: "c1", Members: chat.Members("u1", "u2"), CreatedAt: time.Now()}

	cases := []struct {
		name   string
		mock   *MockChats
		body   string
		status int
	}{
		{"new chat", &MockChats{Chat: c, Created: true}, `{"userId":"u2"}`, http.StatusCreated},
		{"reused chat", &MockChats{Chat: c}, `{"userId":"u2"}`, http.StatusOK},
		{"unknown user", &MockChats{Err: apperror.NotFound("user", "u9")}, `{"userId":"u9"}`, http.StatusNotFound},
		{"bad body", &MockChats{}, `nope`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewChatHandler(tc.mock, quietLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(tc.body))
			req = req.WithContext(auth.WithUserID(req.Context(), "u1"))
			rr := httptest.NewRecorder()

			h.HandleStart(rr, req)

			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			if tc.status < 300 {
				assert.Contains(t, rr.Body.String(), `"id":"c1"`)
				assert.Equal(t, "u2", tc.mock.Target)
			}
		})
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{}, quietLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{err: errors.New("down")}, quietLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
