package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-directory/internal/client/directory"
	"github.com/sakif/chat-directory/internal/events"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func newTestApp(t *testing.T, h http.HandlerFunc, token, input string) (*App, *bytes.Buffer) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	bus := events.NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := directory.New(directory.Options{BaseURL: ts.URL, Token: token, Publisher: bus, Logger: logger})

	var out bytes.Buffer
	return NewApp(client, bus, strings.NewReader(input), &out, logger), &out
}

func directoryHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users":
			_ = json.NewEncoder(w).Encode([]directory.Entry{
				{ID: "u2", Name: "alice", Email: "a@x.com"},
				{ID: "u3", Name: "bob", Email: "b@x.com"},
			})
		case "/api/chats":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		case "/api/users/login", "/api/users/register":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "s3cret", body["password"])
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "name": body["name"], "token": "tok-1"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestRun_Usage(t *testing.T) {
	app, _ := newTestApp(t, directoryHandler(t), "tok", "")

	assert.True(t, errors.Is(app.Run(context.Background(), nil), ErrUsage))
	assert.True(t, errors.Is(app.Run(context.Background(), []string{"dance"}), ErrUsage))
	assert.True(t, errors.Is(app.Run(context.Background(), []string{"chat"}), ErrUsage))
}

func TestRun_Users(t *testing.T) {
	app, out := newTestApp(t, directoryHandler(t), "tok", "")

	require.NoError(t, app.Run(context.Background(), []string{"users", "ALI"}))

	assert.Contains(t, out.String(), "[A]")
	assert.Contains(t, out.String(), "alice")
	assert.NotContains(t, out.String(), "bob")
}

func TestRun_UsersWithoutTokenRendersEmpty(t *testing.T) {
	app, out := newTestApp(t, directoryHandler(t), "", "")

	require.NoError(t, app.Run(context.Background(), []string{"users"}))
	assert.Contains(t, out.String(), "No users found.")
}

func TestRun_Login(t *testing.T) {
	stubPassword(t, "s3cret")
	app, out := newTestApp(t, directoryHandler(t), "", "alice\n")

	require.NoError(t, app.Run(context.Background(), []string{"login"}))
	assert.Contains(t, out.String(), "Logged in as alice")
	assert.Contains(t, out.String(), "DIRECTORY_TOKEN=tok-1")
}

func TestRun_RegisterWithFlags(t *testing.T) {
	stubPassword(t, "s3cret")
	app, out := newTestApp(t, directoryHandler(t), "", "")

	require.NoError(t, app.Run(context.Background(), []string{"register", "-name", "carol", "-email", "c@x.com"}))
	assert.Contains(t, out.String(), "Registered carol")
}

func TestRun_ChatReRenders(t *testing.T) {
	app, out := newTestApp(t, directoryHandler(t), "tok", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx, []string{"chat", "u2"}))

	assert.Contains(t, out.String(), "Chat with u2 is ready.")
	assert.Contains(t, out.String(), "alice", "directory should re-render after the refresh event")
}

func TestRun_ChatFailure(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"user not found with id u9"}`))
	}, "tok", "")

	err := app.Run(context.Background(), []string{"chat", "u9"})
	var apiErr *directory.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
