// Package events is a small publish/subscribe layer. Components that need
// to react to each other (a chat was started, the directory should be
// re-rendered) depend on Publisher or Subscriber instead of sharing state.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Topics.
const (
	TopicDirectoryRefresh = "directory.refresh"
	TopicChatStarted      = "chat.started"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("events: bus closed")

type Event struct {
	Topic  string    `json:"topic"`
	UserID string    `json:"userId,omitempty"`
	ChatID string    `json:"chatId,omitempty"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber delivers events for one topic until cancel is called or ctx
// is done. The channel is closed afterwards.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (events <-chan Event, cancel func(), err error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls further behind misses events rather than stalling publishers.
const subscriberBuffer = 16

// MemoryBus is an in-process Bus.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

var _ Bus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*subscription]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs[e.Topic] {
		select {
		case sub.ch <- e:
		default:
		}
	}
	return ctx.Err()
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrClosed
	}

	sub := &subscription{ch: make(chan Event, subscriberBuffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	stop := make(chan struct{})
	var stopOnce sync.Once
	cancel := func() {
		stopOnce.Do(func() {
			close(stop)
			b.mu.Lock()
			delete(b.subs[topic], sub)
			b.mu.Unlock()
			sub.close()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return sub.ch, cancel, nil
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.close()
		}
	}
	b.subs = nil
	return nil
}
