package clients

import (
	"time"

	"github.com/mkaldis/go-token-service/oauth2"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is a registered OAuth2 client. Immutable for the duration of a
// request; owned by the client store.
type Client struct {
	ID          string     `json:"id"`
	Type        ClientType `json:"type"` // public or confidential
	Description string     `json:"description"`

	// SecretHash is the bcrypt hash of the client secret. Empty for
	// public clients. The plaintext secret is never stored.
	SecretHash string `json:"-"`

	// PublicKeyPEM is the registered verification key for
	// private_key_jwt client assertions, PEM encoded. Optional.
	PublicKeyPEM string `json:"-"`

	GrantTypes   []oauth2.GrantType `json:"grantTypes"`   // Allowed grant types
	RedirectURIs []string           `json:"redirectURIs"` // Registered redirect targets
	Scopes       []string           `json:"scopes"`       // Allowed scopes for this client

	// Token lifetime overrides; zero means use the system default.
	AccessTokenLifetime  time.Duration `json:"accessTokenLifetime,omitempty"`
	RefreshTokenLifetime time.Duration `json:"refreshTokenLifetime,omitempty"`

	// RotateRefreshTokens enables one-time-use refresh tokens: each
	// redemption invalidates the presented token and issues a successor.
	RotateRefreshTokens bool `json:"rotateRefreshTokens"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// AllowsGrantType checks whether the client is registered for the grant type
func (c *Client) AllowsGrantType(gt oauth2.GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// AllowsScopes checks if all requested scopes are allowed for this client.
// An empty request is always allowed.
func (c *Client) AllowsScopes(requested []string) bool {
	return oauth2.ScopesSubset(requested, c.Scopes)
}
