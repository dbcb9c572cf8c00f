// Package authcode defines the authorization-code store contract.
// Codes are one-time-use: the store's Consume operation performs
// lookup-and-delete as a single atomic step, which is what guarantees
// that two concurrent redemptions of the same code cannot both succeed.
package authcode

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/pkg/errors"
)

const codeGenerationLength = 32

// AuthorizationCode is the stored state behind an issued code. The
// client only ever sees the Code string; everything else is server-side
// binding validated at redemption time.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	Subject             string
	SessionID           string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
	IssuedAt            time.Time
	ExpiresAt           time.Time
}

// Expired reports whether the code is past its expiry at the given time.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// NewCodeValue generates a fresh opaque code value.
func NewCodeValue() (string, error) {
	bytes := make([]byte, codeGenerationLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "[NewCodeValue] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
