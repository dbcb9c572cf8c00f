package refresh

import (
	"context"
	"errors"
)

// ErrTokenNotFound is returned for unknown, revoked, or already-rotated
// tokens. Callers cannot tell the cases apart.
var ErrTokenNotFound = errors.New("refresh token not found")

// Repo manages server-side storage of refresh token metadata.
// Refresh tokens sent to clients are opaque random strings; this repo
// stores the associated metadata keyed by the token string.
type Repo interface {
	Upsert(ctx context.Context, refreshToken *StoredRefreshToken) error
	Get(ctx context.Context, token string) (*StoredRefreshToken, error)
	Delete(ctx context.Context, token string) error

	// Replace atomically removes oldToken and stores successor. If
	// oldToken is already gone (revoked, or lost a concurrent rotation
	// race) it returns ErrTokenNotFound and stores nothing. There is no
	// window in which both tokens are redeemable.
	Replace(ctx context.Context, oldToken string, successor *StoredRefreshToken) error
}
