// Package grants validates token requests against protocol rules and
// stored grant state, producing a normalized ValidatedRequest for the
// issuer or a precise protocol error.
package grants

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/mkaldis/go-token-service/authcode"
	"github.com/mkaldis/go-token-service/clients"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/token/refresh"
	"github.com/mkaldis/go-token-service/users"
)

// ExtensionHandler validates a token request for a non-built-in grant
// type. Handlers return protocol errors (oauth2.Error) for anything the
// client did wrong.
type ExtensionHandler interface {
	ValidateGrant(ctx context.Context, client *clients.Client, params url.Values) (*ValidatedRequest, error)
}

// ExtensionHandlerFunc adapts a function to the ExtensionHandler interface.
type ExtensionHandlerFunc func(ctx context.Context, client *clients.Client, params url.Values) (*ValidatedRequest, error)

func (f ExtensionHandlerFunc) ValidateGrant(ctx context.Context, client *clients.Client, params url.Values) (*ValidatedRequest, error) {
	return f(ctx, client, params)
}

// Validator dispatches on the declared grant type and validates
// grant-specific preconditions. Built-in grants are a closed switch;
// extension grants go through an explicit registry.
type Validator struct {
	codes      authcode.Repo
	refreshMgr *refresh.Manager
	verifier   users.CredentialVerifier
	extensions map[string]ExtensionHandler
	nowTime    func() time.Time
}

type ValidatorOption func(*Validator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowTime = now
	}
}

// NewValidator creates a grant validator over the given stores and
// collaborators.
func NewValidator(codes authcode.Repo, refreshMgr *refresh.Manager, verifier users.CredentialVerifier, options ...ValidatorOption) (*Validator, error) {
	if codes == nil {
		return nil, errors.New("[NewValidator] authorization code repo is required")
	}
	if refreshMgr == nil {
		return nil, errors.New("[NewValidator] refresh token manager is required")
	}
	if verifier == nil {
		return nil, errors.New("[NewValidator] credential verifier is required")
	}

	v := &Validator{
		codes:      codes,
		refreshMgr: refreshMgr,
		verifier:   verifier,
		extensions: make(map[string]ExtensionHandler),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Register adds an extension grant handler keyed by its grant-type name.
// Built-in grant type names cannot be overridden.
func (v *Validator) Register(grantType string, handler ExtensionHandler) error {
	if oauth2.GrantType(grantType).IsBuiltin() {
		return errors.Errorf("[Validator.Register] %q is a built-in grant type", grantType)
	}
	if handler == nil {
		return errors.New("[Validator.Register] handler is required")
	}
	v.extensions[grantType] = handler
	return nil
}

// Validate checks the parsed request against the authenticated client
// and stored grant state. The allowed-grant-types check runs before any
// store access so a disallowed client learns nothing about store state.
func (v *Validator) Validate(ctx context.Context, client *clients.Client, req *Request) (*ValidatedRequest, error) {
	if !client.AllowsGrantType(req.GrantType) {
		return nil, oauth2.UnsupportedGrantTypeError()
	}

	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		return v.validateAuthorizationCode(ctx, client, req.Code)
	case oauth2.RefreshTokenGrant:
		return v.validateRefreshToken(ctx, client, req.RefreshToken)
	case oauth2.ClientCredentialsGrant:
		return v.validateClientCredentials(client, req.ClientCredentials)
	case oauth2.PasswordGrant:
		return v.validatePassword(ctx, client, req.Password)
	}

	handler, ok := v.extensions[string(req.GrantType)]
	if !ok {
		return nil, oauth2.UnsupportedGrantTypeError()
	}
	return handler.ValidateGrant(ctx, client, req.Extension.Parameters)
}

// validateAuthorizationCode redeems a one-time code. The store's Consume
// is atomic, so of two concurrent redemptions exactly one reaches the
// checks below; the other already failed with invalid_grant.
func (v *Validator) validateAuthorizationCode(ctx context.Context, client *clients.Client, grant *CodeGrant) (*ValidatedRequest, error) {
	record, err := v.codes.Consume(ctx, grant.Code)
	if err != nil {
		if errors.Is(err, authcode.ErrCodeNotFound) {
			return nil, oauth2.InvalidGrantError()
		}
		return nil, errors.Wrap(err, "[Validator.validateAuthorizationCode] codes.Consume")
	}

	if record.Expired(v.nowTime()) {
		return nil, oauth2.InvalidGrantError()
	}
	if record.ClientID != client.ID {
		return nil, oauth2.InvalidGrantError()
	}
	if record.RedirectURI != grant.RedirectURI {
		return nil, oauth2.InvalidGrantError()
	}
	if !verifyCodeChallenge(record.CodeChallenge, grant.CodeVerifier, record.CodeChallengeMethod) {
		return nil, oauth2.InvalidGrantError()
	}

	return &ValidatedRequest{
		Client:    client,
		GrantType: oauth2.AuthorizationCodeGrant,
		Scopes:    oauth2.ParseScopes(record.Scope),
		Subject:   record.Subject,
		SessionID: record.SessionID,
		Nonce:     record.Nonce,
	}, nil
}

func (v *Validator) validateRefreshToken(ctx context.Context, client *clients.Client, grant *RefreshTokenGrant) (*ValidatedRequest, error) {
	rt, err := v.refreshMgr.Redeem(ctx, grant.RefreshToken, client.ID)
	if err != nil {
		if errors.Is(err, refresh.ErrTokenNotFound) {
			return nil, oauth2.InvalidGrantError()
		}
		return nil, errors.Wrap(err, "[Validator.validateRefreshToken] refreshMgr.Redeem")
	}

	// Scope narrowing: a requested scope must be a subset of the
	// originally granted one; no request reuses the original.
	grantedScopes := oauth2.ParseScopes(rt.Scope)
	if grant.Scope != "" {
		requested := oauth2.ParseScopes(grant.Scope)
		if !oauth2.ScopesSubset(requested, grantedScopes) {
			return nil, oauth2.InvalidScopeError()
		}
		grantedScopes = requested
	}

	return &ValidatedRequest{
		Client:       client,
		GrantType:    oauth2.RefreshTokenGrant,
		Scopes:       grantedScopes,
		Subject:      rt.Subject,
		RefreshToken: rt,
	}, nil
}

func (v *Validator) validateClientCredentials(client *clients.Client, grant *ClientCredentialsGrant) (*ValidatedRequest, error) {
	if client.IsPublic() {
		return nil, oauth2.UnauthorizedClientError()
	}

	scopes, err := v.resolveRequestedScopes(client, grant.Scope)
	if err != nil {
		return nil, err
	}

	return &ValidatedRequest{
		Client:    client,
		GrantType: oauth2.ClientCredentialsGrant,
		Scopes:    scopes,
	}, nil
}

func (v *Validator) validatePassword(ctx context.Context, client *clients.Client, grant *PasswordGrant) (*ValidatedRequest, error) {
	user, err := v.verifier.Verify(ctx, grant.Username, grant.Password)
	if err != nil {
		if errors.Is(err, users.ErrBadCredentials) {
			return nil, oauth2.InvalidGrantError()
		}
		return nil, errors.Wrap(err, "[Validator.validatePassword] verifier.Verify")
	}

	scopes, err := v.resolveRequestedScopes(client, grant.Scope)
	if err != nil {
		return nil, err
	}

	return &ValidatedRequest{
		Client:    client,
		GrantType: oauth2.PasswordGrant,
		Scopes:    scopes,
		Subject:   user.ID,
	}, nil
}

// resolveRequestedScopes grants the requested scopes when they are a
// subset of the client's allowed set, or the full allowed set when the
// request names none.
func (v *Validator) resolveRequestedScopes(client *clients.Client, scope string) ([]string, error) {
	if scope == "" {
		return client.Scopes, nil
	}
	requested := oauth2.ParseScopes(scope)
	if !client.AllowsScopes(requested) {
		return nil, oauth2.InvalidScopeError()
	}
	return requested, nil
}
