package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

const tokenLength = 32 // 32 bytes = 256 bits

// Manager handles refresh token creation, validation, and rotation.
type Manager struct {
	repo          Repo
	defaultExpiry time.Duration
	nowTime       func() time.Time
}

type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = now
	}
}

// NewManager creates a new refresh token manager. defaultExpiry is used
// for clients without a lifetime override.
func NewManager(repo Repo, defaultExpiry time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:          repo,
		defaultExpiry: defaultExpiry,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.defaultExpiry == 0 {
		m.defaultExpiry = 7 * 24 * time.Hour
	}
	return m
}

// Create generates a new refresh token bound to the client, subject, and
// scope, and stores it. lifetime == 0 uses the manager default.
func (m *Manager) Create(ctx context.Context, clientID, subject, scope string, lifetime time.Duration) (*StoredRefreshToken, error) {
	rt, err := m.newToken(clientID, subject, scope, lifetime)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Upsert(ctx, rt); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] repo.Upsert")
	}
	return rt, nil
}

// Redeem looks up a presented refresh token and validates its binding.
// Returns ErrTokenNotFound for unknown, expired, or foreign tokens; an
// expired token is deleted on the way out.
func (m *Manager) Redeem(ctx context.Context, token, clientID string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rt.ClientID != clientID {
		return nil, ErrTokenNotFound
	}
	if rt.Expired(m.nowTime()) {
		_ = m.repo.Delete(ctx, token)
		return nil, ErrTokenNotFound
	}
	return rt, nil
}

// Rotate atomically replaces old with a fresh successor carrying the
// given scope. The store's Replace primitive guarantees the old token is
// gone before the successor is redeemable, with no window where both are
// valid.
func (m *Manager) Rotate(ctx context.Context, old *StoredRefreshToken, scope string, lifetime time.Duration) (*StoredRefreshToken, error) {
	successor, err := m.newToken(old.ClientID, old.Subject, scope, lifetime)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Replace(ctx, old.Token, successor); err != nil {
		return nil, errors.Wrap(err, "[Manager.Rotate] repo.Replace")
	}
	return successor, nil
}

// Revoke removes a refresh token from storage.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.repo.Delete(ctx, token)
}

func (m *Manager) newToken(clientID, subject, scope string, lifetime time.Duration) (*StoredRefreshToken, error) {
	if lifetime == 0 {
		lifetime = m.defaultExpiry
	}

	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errors.Wrap(err, "[Manager.newToken] rand.Read")
	}

	now := m.nowTime()
	return &StoredRefreshToken{
		Token:     hex.EncodeToString(tokenBytes),
		ClientID:  clientID,
		Subject:   subject,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(lifetime),
	}, nil
}
