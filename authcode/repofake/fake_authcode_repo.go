package fakeauthcoderepo

import (
	"context"
	"sync"

	"github.com/mkaldis/go-token-service/authcode"
)

var _ authcode.Repo = (*FakeAuthCodeRepo)(nil)

// FakeAuthCodeRepo is an in-memory code store. Consume holds the write
// lock across lookup and delete, so concurrent redemptions serialize and
// exactly one wins.
type FakeAuthCodeRepo struct {
	codes map[string]*authcode.AuthorizationCode
	lock  sync.Mutex
}

func NewFakeAuthCodeRepo() authcode.Repo {
	return &FakeAuthCodeRepo{
		codes: make(map[string]*authcode.AuthorizationCode),
	}
}

func (r *FakeAuthCodeRepo) Save(_ context.Context, code *authcode.AuthorizationCode) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.codes[code.Code] = code
	return nil
}

func (r *FakeAuthCodeRepo) Consume(_ context.Context, code string) (*authcode.AuthorizationCode, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.codes[code]
	if !ok {
		return nil, authcode.ErrCodeNotFound
	}
	delete(r.codes, code)
	return record, nil
}
