package users

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/2beens/exercisetracker/internal/exlog"
)

// MemoryRepo keeps users in process memory. Used for local dev and tests.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]*User
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users: make(map[string]*User),
	}
}

func (r *MemoryRepo) CreateUser(_ context.Context, username string) (*User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := &User{
		ID:       uuid.NewString(),
		Username: username,
		Log:      []exlog.Exercise{},
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)
	return u.clone(), nil
}

func (r *MemoryRepo) ListUsers(_ context.Context) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		summaries = append(summaries, r.users[id].Summary())
	}
	return summaries, nil
}

func (r *MemoryRepo) GetUser(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, userNotFound(id)
	}
	return u.clone(), nil
}

func (r *MemoryRepo) SaveAppend(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return userNotFound(user.ID)
	}

	stored.Log = append(stored.Log, user.pending...)
	stored.Count += len(user.pending)

	user.pending = nil
	user.Count = stored.Count
	user.Log = slices.Clone(stored.Log)
	return nil
}

func (r *MemoryRepo) Ping(context.Context) error {
	return nil
}
