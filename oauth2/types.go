package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, redirect_uri, code_verifier (if PKCE)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// No user context; never issues a refresh token or ID token.
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// When rotation is enabled the presented token is invalidated and a
	// successor is issued in the same store operation.
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	// Token request includes: username, password, scope
	PasswordGrant GrantType = "password"
)

// BuiltinGrantTypes is the closed set of grant types the validator
// dispatches on directly. Anything else goes through the extension
// registry.
var BuiltinGrantTypes = []GrantType{
	AuthorizationCodeGrant,
	ClientCredentialsGrant,
	RefreshTokenGrant,
	PasswordGrant,
}

// IsBuiltin reports whether gt is one of the built-in grant types.
func (gt GrantType) IsBuiltin() bool {
	for _, b := range BuiltinGrantTypes {
		if gt == b {
			return true
		}
	}
	return false
}

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Server validates: BASE64URL(SHA256(code_verifier)) == stored code_challenge
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypePlain means no hashing, the verifier is compared directly.
	// Only protects against passive attacks; S256 is preferred.
	CodeMethodTypePlain CodeMethodType = "plain"
)

// ClientAuthMethod identifies how a client authenticated at the token endpoint.
type ClientAuthMethod string

const (
	// AuthMethodBasic - credentials in the Authorization header (client_secret_basic).
	AuthMethodBasic ClientAuthMethod = "client_secret_basic"

	// AuthMethodSecretPost - client_id/client_secret in the form body (client_secret_post).
	AuthMethodSecretPost ClientAuthMethod = "client_secret_post"

	// AuthMethodPrivateKeyJWT - signed client assertion (private_key_jwt).
	AuthMethodPrivateKeyJWT ClientAuthMethod = "private_key_jwt"

	// AuthMethodNone - no credential presented; allowed only for public clients.
	AuthMethodNone ClientAuthMethod = "none"
)

// ClientAssertionTypeJWT is the only client_assertion_type value accepted
// at the token endpoint (RFC 7523).
const ClientAssertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TokenTypeBearer is the token_type value for every token this server issues.
const TokenTypeBearer = "bearer"

// ScopeOpenID marks a request for an OIDC ID token.
const ScopeOpenID = "openid"
