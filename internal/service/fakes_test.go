package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/events"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. It enforces name
// and email uniqueness the way the real stores do, and records every call
// so tests can assert which store operations ran.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	calls  []string

	// set to a non-nil error to simulate a database failure
	createErr error
	searchErr error
	getErr    error
	existsErr error

	// skipPrecheck makes Exists* report false, simulating a concurrent
	// registration that slipped past the service's own checks.
	skipPrecheck bool
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeUserRepo) conflict(u *model.User) error {
	for _, existing := range f.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return repository.EmailTaken()
		}
		if existing.Name == u.Name {
			return repository.NameTaken()
		}
	}
	return nil
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create")
	if f.createErr != nil {
		return f.createErr
	}
	if err := f.conflict(u); err != nil {
		return err
	}
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByID")
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByName(_ context.Context, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByName")
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Name == name {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", name)
}

func (f *fakeUserRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ExistsByName")
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.skipPrecheck {
		return false, nil
	}
	for _, u := range f.users {
		if u.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ExistsByEmail")
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.skipPrecheck {
		return false, nil
	}
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Search(_ context.Context, excludeID, keyword string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Search")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	k := strings.ToLower(keyword)
	var out []model.User
	for _, u := range f.users {
		if u.ID == excludeID {
			continue
		}
		if k == "" || strings.Contains(strings.ToLower(u.Name), k) || strings.Contains(strings.ToLower(u.Email), k) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Update")
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	if err := f.conflict(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

// fakeIssuer returns predictable tokens.
type fakeIssuer struct {
	err error
}

func (f *fakeIssuer) Issue(userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID, nil
}

// countingHasher wraps a real hasher and counts Hash calls.
type countingHasher struct {
	PasswordHasher
	hashes int
}

func (c *countingHasher) Hash(p string) (string, error) {
	c.hashes++
	return c.PasswordHasher.Hash(p)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
