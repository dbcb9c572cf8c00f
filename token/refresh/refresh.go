package refresh

import (
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token
// metadata. The client only receives the Token field (a random string);
// all other fields are server-side binding used for validation and
// rotation.
type StoredRefreshToken struct {
	Token     string    // The actual random token string (sent to client)
	ClientID  string    // Client the token is bound to
	Subject   string    // End user the token was issued on behalf of ("" for none)
	Scope     string    // Originally granted scope
	IssuedAt  time.Time // Issued at time
	ExpiresAt time.Time // Hard expiry
}

// Expired reports whether the token is past its expiry at the given time.
func (rt *StoredRefreshToken) Expired(now time.Time) bool {
	return now.After(rt.ExpiresAt)
}
