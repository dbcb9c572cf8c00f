package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkaldis/go-token-service/grants"
	"github.com/mkaldis/go-token-service/internal/utils"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/token/refresh"
	"github.com/mkaldis/go-token-service/users"
)

// Issuer mints access, refresh, and identity tokens from a validated
// request. It is stateless; all durable state lives behind the refresh
// manager and the signing collaborator.
type Issuer struct {
	signer            Signer
	refreshMgr        *refresh.Manager
	claimsProvider    users.ClaimsProvider
	revokedCache      RevokedTokenCache
	issuer            string
	audience          string
	accessTokenExpiry time.Duration
	idTokenExpiry     time.Duration
	nowTime           func() time.Time
}

type IssuerOption func(*Issuer)

// WithTokenExpiry sets the default access and ID token lifetimes.
// Per-client access lifetime overrides still win.
func WithTokenExpiry(accessTokenExpiry, idTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.idTokenExpiry = idTokenExpiry
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = now
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) IssuerOption {
	return func(i *Issuer) {
		i.revokedCache = cache
	}
}

// NewIssuer creates a token issuer. issuer and audience are the values
// stamped into every access token's iss and aud claims.
func NewIssuer(signer Signer, refreshMgr *refresh.Manager, claimsProvider users.ClaimsProvider, issuer, audience string, options ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}
	if refreshMgr == nil {
		return nil, errors.New("[NewIssuer] refresh token manager is required")
	}
	if claimsProvider == nil {
		return nil, errors.New("[NewIssuer] claims provider is required")
	}

	i := &Issuer{
		signer:         signer,
		refreshMgr:     refreshMgr,
		claimsProvider: claimsProvider,
		revokedCache:   NewInMemoryRevokedTokenCache(),
		issuer:         issuer,
		audience:       audience,
		nowTime:        time.Now,
	}
	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry == 0 {
		i.accessTokenExpiry = 15 * time.Minute
	}
	if i.idTokenExpiry == 0 {
		i.idTokenExpiry = time.Hour
	}
	return i, nil
}

// Issue produces the token response for a validated request. Refresh
// tokens are only issued when the client is allowed the refresh_token
// grant and the redeemed grant permits refresh issuance; identity tokens
// only when the grant is user-bound and the openid scope was granted.
func (i *Issuer) Issue(ctx context.Context, vr *grants.ValidatedRequest) (*oauth2.TokenResponse, error) {
	accessExpiry := vr.Client.AccessTokenLifetime
	if accessExpiry == 0 {
		accessExpiry = i.accessTokenExpiry
	}
	scope := oauth2.JoinScopes(vr.Scopes)

	accessToken, err := i.createAccessToken(vr, scope, accessExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] createAccessToken")
	}

	var idToken *string
	if vr.UserBound() && oauth2.ContainsScope(vr.Scopes, oauth2.ScopeOpenID) {
		idToken, err = i.createIDToken(ctx, vr)
		if err != nil {
			return nil, errors.Wrap(err, "[Issuer.Issue] createIDToken")
		}
	}

	refreshToken, err := i.resolveRefreshToken(ctx, vr, scope)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] resolveRefreshToken")
	}

	return &oauth2.TokenResponse{
		AccessToken:  utils.Ptr(accessToken),
		IdToken:      idToken,
		TokenType:    oauth2.TokenTypeBearer,
		ExpiresIn:    int(accessExpiry.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	}, nil
}

func (i *Issuer) createAccessToken(vr *grants.ValidatedRequest, scope string, expiry time.Duration) (string, error) {
	sub := vr.Client.ID
	if vr.UserBound() {
		sub = vr.Subject
	}

	claims := jwt.MapClaims{
		"iss":       i.issuer,
		"sub":       sub,
		"aud":       i.audience,
		"client_id": vr.Client.ID,
		"scope":     scope,
		"iat":       i.nowTime().Unix(),
		"exp":       i.nowTime().Add(expiry).Unix(),
		"jti":       uuid.New().String(),
	}
	if vr.SessionID != "" {
		claims["sid"] = vr.SessionID
	}

	return i.signer.Sign(claims)
}

func (i *Issuer) createIDToken(ctx context.Context, vr *grants.ValidatedRequest) (*string, error) {
	profile, err := i.claimsProvider.Claims(ctx, vr.Subject, vr.Scopes)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.createIDToken] claimsProvider.Claims")
	}

	claims := jwt.MapClaims{
		"iss": i.issuer,
		"sub": vr.Subject,
		"aud": vr.Client.ID,
		"iat": i.nowTime().Unix(),
		"exp": i.nowTime().Add(i.idTokenExpiry).Unix(),
		"jti": uuid.New().String(),
	}
	for k, v := range profile {
		claims[k] = v
	}
	if vr.Nonce != "" {
		claims["nonce"] = vr.Nonce
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return nil, err
	}
	return utils.Ptr(signed), nil
}

// resolveRefreshToken decides whether a refresh token accompanies the
// response, and whether the presented one rotates. Rotation and creation
// both persist through the store before the response is returned.
func (i *Issuer) resolveRefreshToken(ctx context.Context, vr *grants.ValidatedRequest, scope string) (*string, error) {
	if !vr.Client.AllowsGrantType(oauth2.RefreshTokenGrant) {
		return nil, nil
	}
	if vr.GrantType == oauth2.ClientCredentialsGrant {
		return nil, nil
	}

	lifetime := vr.Client.RefreshTokenLifetime

	// Redeeming a refresh token: rotate when the client policy says so,
	// otherwise the presented token stays valid and is returned as-is.
	if vr.RefreshToken != nil {
		if !vr.Client.RotateRefreshTokens {
			return utils.Ptr(vr.RefreshToken.Token), nil
		}
		successor, err := i.refreshMgr.Rotate(ctx, vr.RefreshToken, scope, lifetime)
		if errors.Is(err, refresh.ErrTokenNotFound) {
			// A concurrent redemption already rotated this token away.
			return nil, oauth2.InvalidGrantError()
		}
		if err != nil {
			return nil, err
		}
		return utils.Ptr(successor.Token), nil
	}

	rt, err := i.refreshMgr.Create(ctx, vr.Client.ID, vr.Subject, scope, lifetime)
	if err != nil {
		return nil, err
	}
	return utils.Ptr(rt.Token), nil
}

// GetJWKS returns the JSON Web Key Set for public key distribution.
// Only asymmetric signers carry a publishable key set.
func (i *Issuer) GetJWKS() (*JWKS, error) {
	keyPairSigner, ok := i.signer.(*KeyPairSigner)
	if !ok {
		return nil, errors.New("JWKS only supported for asymmetric signing (RSA/ECDSA)")
	}
	return keyPairSigner.GetJWKS()
}
