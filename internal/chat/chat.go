// Package chat holds the one-on-one chat records the directory creates when
// a user picks someone to talk to. Message delivery lives elsewhere; this
// package only answers "is there already a chat between these two?".
package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
)

// ErrExists is returned by Store.Create when the pair already has a chat.
var ErrExists = errors.New("chat: already exists for these members")

type Chat struct {
	ID        string    `json:"id"`
	Members   [2]string `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists chats keyed by their member pair.
type Store interface {
	// FindByMembers returns (nil, nil) when the pair has no chat.
	FindByMembers(ctx context.Context, a, b string) (*Chat, error)
	// Create stores a new chat between a and b, or returns the existing one
	// together with ErrExists.
	Create(ctx context.Context, a, b string) (*Chat, error)
}

// Members orders a pair so that (a, b) and (b, a) share one key.
func Members(a, b string) [2]string {
	pair := []string{a, b}
	sort.Strings(pair)
	return [2]string{pair[0], pair[1]}
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	byPair map[[2]string]*Chat
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPair: make(map[[2]string]*Chat)}
}

func (s *MemoryStore) FindByMembers(_ context.Context, a, b string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byPair[Members(a, b)]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) Create(_ context.Context, a, b string) (*Chat, error) {
	key := Members(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byPair[key]; ok {
		copied := *c
		return &copied, ErrExists
	}

	c := &Chat{
		ID:        xid.New().String(),
		Members:   key,
		CreatedAt: time.Now().UTC(),
	}
	s.byPair[key] = c

	copied := *c
	return &copied, nil
}
