package refreshrepofake

import (
	"context"
	"sync"

	"github.com/mkaldis/go-token-service/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo is an in-memory refresh token store. Replace
// holds the write lock across delete and insert, so concurrent rotations
// of the same token serialize and exactly one succeeds.
type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(_ context.Context, refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = refreshToken
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(_ context.Context, token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, refresh.ErrTokenNotFound
	}
	return rt, nil
}

func (tr *FakeRefreshTokenRepo) Delete(_ context.Context, token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token]; !ok {
		return refresh.ErrTokenNotFound
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeRefreshTokenRepo) Replace(_ context.Context, oldToken string, successor *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[oldToken]; !ok {
		return refresh.ErrTokenNotFound
	}
	delete(tr.tokens, oldToken)
	tr.tokens[successor.Token] = successor
	return nil
}
