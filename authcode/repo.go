package authcode

import (
	"context"
	"errors"
)

// ErrCodeNotFound is returned by Consume when the code does not exist or
// has already been redeemed. A replayed code must look exactly like an
// unknown one.
var ErrCodeNotFound = errors.New("authorization code not found")

// Repo stores pending authorization codes.
type Repo interface {
	Save(ctx context.Context, code *AuthorizationCode) error

	// Consume looks up the code and removes it in a single atomic step.
	// At most one caller ever receives the record; every other call,
	// concurrent or later, gets ErrCodeNotFound. Expiry is NOT checked
	// here - the validator checks it against the returned record so the
	// failure is deterministic rather than dependent on store GC timing.
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)
}
