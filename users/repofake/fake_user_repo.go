package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mkaldis/go-token-service/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIds map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() users.Repo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.usernameIds[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	delete(ur.usernameIds, user.Username)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return user, nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return ur.users[id], nil
}
