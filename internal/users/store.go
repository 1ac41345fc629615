package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/exercisetracker/internal/exlog"
)

//go:generate mockgen -source=$GOFILE -destination=store_mocks_test.go -package=users_test

var ErrUsernameRequired = errors.New("username is required")

// Store owns user and exercise persistence.
type Store interface {
	// CreateUser assigns an id and persists a new user with an empty log.
	CreateUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]Summary, error)
	// GetUser returns an error wrapping exlog.ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (*User, error)
	// SaveAppend persists the exercises appended to user since it was loaded,
	// together with the matching count increment, as one atomic step.
	SaveAppend(ctx context.Context, user *User) error
}

func userNotFound(id string) error {
	return fmt.Errorf("user [%s]: %w", id, exlog.ErrNotFound)
}
