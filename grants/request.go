package grants

import (
	"net/url"

	"github.com/mkaldis/go-token-service/clients"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/token/refresh"
)

// CodeGrant holds the authorization_code redemption parameters.
type CodeGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// PasswordGrant holds resource-owner credentials.
type PasswordGrant struct {
	Username string
	Password string
	Scope    string
}

// RefreshTokenGrant holds the presented refresh token and optional
// scope narrowing.
type RefreshTokenGrant struct {
	RefreshToken string
	Scope        string
}

// ClientCredentialsGrant carries only the requested scope.
type ClientCredentialsGrant struct {
	Scope string
}

// ExtensionGrant carries the raw parameters for a registered extension
// grant type.
type ExtensionGrant struct {
	GrantType  string
	Parameters url.Values
}

// Request is the parsed token request: a grant type tag plus exactly one
// populated variant, consistent with the tag.
type Request struct {
	GrantType oauth2.GrantType

	Code              *CodeGrant
	Password          *PasswordGrant
	RefreshToken      *RefreshTokenGrant
	ClientCredentials *ClientCredentialsGrant
	Extension         *ExtensionGrant
}

// ParseRequest builds a Request from the decoded form body. A missing
// grant_type, or a recognized grant type missing its required
// parameters, fails with invalid_request.
func ParseRequest(form url.Values) (*Request, error) {
	grantType := oauth2.GrantType(form.Get("grant_type"))
	if grantType == "" {
		return nil, oauth2.InvalidRequestError()
	}

	req := &Request{GrantType: grantType}

	switch grantType {
	case oauth2.AuthorizationCodeGrant:
		if form.Get("code") == "" {
			return nil, oauth2.InvalidRequestError()
		}
		req.Code = &CodeGrant{
			Code:         form.Get("code"),
			RedirectURI:  form.Get("redirect_uri"),
			CodeVerifier: form.Get("code_verifier"),
		}

	case oauth2.PasswordGrant:
		if form.Get("username") == "" || form.Get("password") == "" {
			return nil, oauth2.InvalidRequestError()
		}
		req.Password = &PasswordGrant{
			Username: form.Get("username"),
			Password: form.Get("password"),
			Scope:    form.Get("scope"),
		}

	case oauth2.RefreshTokenGrant:
		if form.Get("refresh_token") == "" {
			return nil, oauth2.InvalidRequestError()
		}
		req.RefreshToken = &RefreshTokenGrant{
			RefreshToken: form.Get("refresh_token"),
			Scope:        form.Get("scope"),
		}

	case oauth2.ClientCredentialsGrant:
		req.ClientCredentials = &ClientCredentialsGrant{
			Scope: form.Get("scope"),
		}

	default:
		req.Extension = &ExtensionGrant{
			GrantType:  string(grantType),
			Parameters: form,
		}
	}

	return req, nil
}

// ValidatedRequest is the normalized output of grant validation: the
// authenticated client, the grant that was redeemed, and the final
// granted scope set. Subject is non-empty iff the grant is user-bound.
type ValidatedRequest struct {
	Client    *clients.Client
	GrantType oauth2.GrantType
	Scopes    []string
	Subject   string
	SessionID string
	Nonce     string

	// RefreshToken is the presented token for the refresh_token grant;
	// the issuer rotates or reuses it per client policy.
	RefreshToken *refresh.StoredRefreshToken
}

// UserBound reports whether the validated grant carries an end-user subject.
func (vr *ValidatedRequest) UserBound() bool {
	return vr.Subject != ""
}
