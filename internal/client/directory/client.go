// Package directory is the client side of the user directory: it fetches
// the list of other users, filters it locally, renders each entry's image,
// and starts chats. It never reads the environment; cmd/directory builds it
// from config.ClientConfig.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/chat-directory/internal/avatar"
	"github.com/sakif/chat-directory/internal/events"
)

// ErrNoToken is returned by calls that need an identity when none is set.
var ErrNoToken = errors.New("directory: no token configured")

// Entry is one user as the directory shows it.
type Entry struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Avatar *avatar.Payload `json:"avatar,omitempty"`
}

// Image is what the directory draws for an entry: a data URI when the user
// has an avatar, otherwise a single-letter glyph.
type Image struct {
	URI   string
	Glyph string
}

// Image picks the entry's picture. The glyph is the first rune of the name,
// upper-cased, or "?" for an empty name.
func (e Entry) Image() Image {
	if uri := e.Avatar.DataURI(); uri != "" {
		return Image{URI: uri}
	}
	r, _ := utf8.DecodeRuneInString(e.Name)
	if r == utf8.RuneError {
		return Image{Glyph: "?"}
	}
	return Image{Glyph: string(unicode.ToUpper(r))}
}

// Filter keeps the entries whose name or email contains query, ignoring
// case. An empty query keeps everything.
func Filter(entries []Entry, query string) []Entry {
	q := strings.ToLower(query)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Email), q) {
			out = append(out, e)
		}
	}
	return out
}

// Client talks to the directory API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	events  events.Publisher
	logger  *slog.Logger
}

// Options configures a Client. BaseURL is required; the rest default.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Publisher  events.Publisher
	Logger     *slog.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.NewMemoryBus()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		token:   opts.Token,
		events:  pub,
		logger:  logger,
	}
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Fetch returns every other user. Any failure is logged and yields an empty
// list, so a directory view can always render.
func (c *Client) Fetch(ctx context.Context) []Entry {
	entries, err := c.Search(ctx, "")
	if err != nil {
		c.logger.WarnContext(ctx, "fetching directory failed", slog.String("error", err.Error()))
		return []Entry{}
	}
	return entries
}

// Search asks the server for users matching keyword and reports errors.
func (c *Client) Search(ctx context.Context, keyword string) ([]Entry, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}
	path := "/api/users"
	if keyword != "" {
		path += "?search=" + url.QueryEscape(keyword)
	}

	var entries []Entry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// StartChat opens (or reuses) a chat with targetUserID. On success it
// publishes events.TopicDirectoryRefresh so open views re-fetch.
func (c *Client) StartChat(ctx context.Context, targetUserID string) error {
	if c.token == "" {
		return ErrNoToken
	}
	body := map[string]string{"userId": targetUserID}
	if err := c.do(ctx, http.MethodPost, "/api/chats", body, nil); err != nil {
		c.logger.WarnContext(ctx, "starting chat failed",
			slog.String("targetID", targetUserID),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := c.events.Publish(ctx, events.Event{
		Topic:  events.TopicDirectoryRefresh,
		UserID: targetUserID,
		At:     time.Now().UTC(),
	}); err != nil {
		c.logger.WarnContext(ctx, "publishing directory refresh failed", slog.String("error", err.Error()))
	}
	return nil
}

// Session is returned by Register and Login.
type Session struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	IsAdmin bool            `json:"isAdmin"`
	Avatar  *avatar.Payload `json:"avatar,omitempty"`
	Token   string          `json:"token"`
}

// Register creates an account and adopts its token.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/register", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// Login authenticates and adopts the returned token.
func (c *Client) Login(ctx context.Context, name, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", body, &s); err != nil {
		return nil, err
	}
	c.token = s.Token
	return &s, nil
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Type    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory: HTTP %d", e.Status)
	}
	return fmt.Sprintf("directory: %s (HTTP %d)", e.Message, e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("directory: encoding request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("directory: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decoding response: %w", err)
	}
	return nil
}
