package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// Returned from the /oauth2/token endpoint for all grant types.
type TokenResponse struct {
	// AccessToken is the JWT token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing user identity claims.
	// Only present when the "openid" scope was granted on a user-bound grant.
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// This is a hint - the authoritative expiry is the JWT's "exp" claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Never issued for the client_credentials grant; rotates on use when
	// the client has rotation enabled.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space-separated set of granted scopes.
	// May be narrower than requested.
	Scope string `json:"scope,omitempty"`
}
