package users

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by Repo lookups for unknown users.
var ErrUserNotFound = errors.New("user not found")

type Repo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
