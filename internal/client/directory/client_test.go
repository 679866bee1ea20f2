package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-directory/internal/avatar"
	"github.com/sakif/chat-directory/internal/client/directory"
	"github.com/sakif/chat-directory/internal/events"
)

// =========================================================================
// Filter / Image TESTS
// =========================================================================

func TestFilter(t *testing.T) {
	entries := []directory.Entry{
		{ID: "1", Name: "Alice", Email: "a@x.com"},
		{ID: "2", Name: "Bob", Email: "alias@x.com"},
		{ID: "3", Name: "Carol", Email: "carol@x.com"},
		{ID: "4", Name: "", Email: ""},
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"ali", []string{"1", "2"}},
		{"ALI", []string{"1", "2"}},
		{"carol@", []string{"3"}},
		{"ali ", []string{}},
		{" ", []string{}},
		{"nobody", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := directory.Filter(entries, tt.query)
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEntryImage(t *testing.T) {
	withAvatar := directory.Entry{Name: "alice", Avatar: &avatar.Payload{ContentType: "image/png", Data: "iVBORw0KGgo="}}
	assert.Equal(t, directory.Image{URI: "data:image/png;base64,iVBORw0KGgo="}, withAvatar.Image())

	assert.Equal(t, "A", directory.Entry{Name: "alice"}.Image().Glyph)
	assert.Equal(t, "É", directory.Entry{Name: "éloïse"}.Image().Glyph)
	assert.Equal(t, "?", directory.Entry{}.Image().Glyph)
}

// =========================================================================
// HTTP TESTS
// =========================================================================

func newClient(t *testing.T, h http.HandlerFunc, token string, pub events.Publisher) *directory.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return directory.New(directory.Options{
		BaseURL:   ts.URL,
		Token:     token,
		Timeout:   time.Second,
		Publisher: pub,
	})
}

func TestFetch(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/users", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode([]directory.Entry{{ID: "u2", Name: "Alice"}})
		}, "tok", nil)

		got := c.Fetch(context.Background())
		require.Len(t, got, 1)
		assert.Equal(t, "Alice", got[0].Name)
	})

	t.Run("server error yields empty list", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, "tok", nil)

		got := c.Fetch(context.Background())
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("garbage body yields empty list", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}, "tok", nil)

		assert.Empty(t, c.Fetch(context.Background()))
	})

	t.Run("unreachable server yields empty list", func(t *testing.T) {
		c := directory.New(directory.Options{BaseURL: "http://127.0.0.1:1", Token: "tok", Timeout: 200 * time.Millisecond})
		assert.Empty(t, c.Fetch(context.Background()))
	})

	t.Run("no token", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected without a token")
		}, "", nil)

		assert.Empty(t, c.Fetch(context.Background()))
	})
}

func TestSearch_SendsKeyword(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b&c", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte("[]"))
	}, "tok", nil)

	got, err := c.Search(context.Background(), "a b&c")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStartChat(t *testing.T) {
	t.Run("success publishes refresh", func(t *testing.T) {
		bus := events.NewMemoryBus()
		defer bus.Close()
		ch, cancel, err := bus.Subscribe(context.Background(), events.TopicDirectoryRefresh)
		require.NoError(t, err)
		defer cancel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chats", r.URL.Path)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "u2", body["userId"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		}, "tok", bus)

		require.NoError(t, c.StartChat(context.Background(), "u2"))

		select {
		case e := <-ch:
			assert.Equal(t, events.TopicDirectoryRefresh, e.Topic)
		case <-time.After(time.Second):
			t.Fatal("expected a refresh event")
		}
	})

	t.Run("failure returns error without refresh", func(t *testing.T) {
		bus := events.NewMemoryBus()
		defer bus.Close()
		ch, cancel, err := bus.Subscribe(context.Background(), events.TopicDirectoryRefresh)
		require.NoError(t, err)
		defer cancel()

		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"user not found with id u9"}`))
		}, "tok", bus)

		err = c.StartChat(context.Background(), "u9")
		var apiErr *directory.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "not_found", apiErr.Type)

		select {
		case <-ch:
			t.Fatal("no refresh expected on failure")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestLogin_AdoptsToken(t *testing.T) {
	var seenAuth string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/login":
			_, _ = w.Write([]byte(`{"id":"u1","name":"alice","token":"fresh"}`))
		case "/api/users":
			seenAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`[]`))
		}
	}, "", nil)

	s, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.Token)

	c.Fetch(context.Background())
	assert.Equal(t, "Bearer fresh", seenAuth)
}
