// Package clientauth verifies that the caller of the token endpoint is
// the client it claims to be. Every failure path, whatever its cause,
// funnels through the same invalid_client error value so the endpoint
// cannot be used to probe which client ids exist or which secrets are
// close.
package clientauth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkaldis/go-token-service/clients"
	"github.com/mkaldis/go-token-service/oauth2"
)

// Result is the outcome of client authentication: the resolved client
// and the credential-presentation method that matched.
type Result struct {
	Client *clients.Client
	Method oauth2.ClientAuthMethod
}

// Authenticator resolves and verifies client credentials. Supported
// methods are tried in a fixed priority order; the first one presenting
// a credential wins.
type Authenticator struct {
	clientRepo clients.Repo

	// assertionAudience is this token endpoint's identifier; client
	// assertions must name it in aud.
	assertionAudience string

	// clockSkew is the tolerated drift when checking assertion freshness.
	clockSkew time.Duration

	nowTime func() time.Time
}

type AuthenticatorOption func(*Authenticator)

// WithClockSkew sets the accepted clock-skew window for client
// assertion freshness checks.
func WithClockSkew(skew time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		a.clockSkew = skew
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.nowTime = now
	}
}

// NewAuthenticator creates a client authenticator. assertionAudience is
// the absolute URL of the token endpoint.
func NewAuthenticator(clientRepo clients.Repo, assertionAudience string, options ...AuthenticatorOption) (*Authenticator, error) {
	if clientRepo == nil {
		return nil, errors.New("[NewAuthenticator] client repo is required")
	}

	a := &Authenticator{
		clientRepo:        clientRepo,
		assertionAudience: assertionAudience,
		clockSkew:         30 * time.Second,
		nowTime:           time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Authenticate resolves the requesting client from the Authorization
// header and form body. Priority: Basic header, body secret, signed
// assertion, then no credential (public clients only). Protocol failures
// are always the identical invalid_client error; only store breakage
// surfaces differently, as a wrapped internal error.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, form url.Values) (*Result, error) {
	if id, secret, ok := basicCredentials(r); ok {
		return a.authenticateSecret(ctx, id, secret, oauth2.AuthMethodBasic)
	}

	if form.Get("client_secret") != "" {
		return a.authenticateSecret(ctx, form.Get("client_id"), form.Get("client_secret"), oauth2.AuthMethodSecretPost)
	}

	if form.Get("client_assertion") != "" {
		return a.authenticateAssertion(ctx, form.Get("client_assertion_type"), form.Get("client_assertion"))
	}

	return a.authenticateNone(ctx, form.Get("client_id"))
}

// dummySecretHash is compared against when the client id is unknown or
// carries no stored secret, so those paths cost the same bcrypt work as
// a wrong secret on a known client.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (a *Authenticator) authenticateSecret(ctx context.Context, clientID, secret string, method oauth2.ClientAuthMethod) (*Result, error) {
	if clientID == "" || secret == "" {
		return nil, failure()
	}

	client, err := a.clientRepo.Get(ctx, clientID)
	if err != nil {
		if !errors.Is(err, clients.ErrClientNotFound) {
			return nil, errors.Wrap(err, "[Authenticator.authenticateSecret] clientRepo.Get")
		}
		bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(secret))
		return nil, failure()
	}

	// Public clients have no stored hash and can never pass this branch;
	// they still pay for the comparison.
	hash := client.SecretHash
	if hash == "" {
		hash = dummySecretHash
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return nil, failure()
	}
	if client.SecretHash == "" {
		return nil, failure()
	}

	return &Result{Client: client, Method: method}, nil
}

// authenticateAssertion verifies a private_key_jwt client assertion: a
// short-lived token signed with the client's registered key, issued by
// and about the client (iss == sub == client_id), addressed to this
// endpoint, and fresh within the configured skew window.
func (a *Authenticator) authenticateAssertion(ctx context.Context, assertionType, assertion string) (*Result, error) {
	if assertionType != oauth2.ClientAssertionTypeJWT {
		return nil, failure()
	}

	// The client id comes from the unverified subject; verification
	// against the registered key happens right after lookup.
	claimedID, err := unverifiedSubject(assertion)
	if err != nil || claimedID == "" {
		return nil, failure()
	}

	client, err := a.lookup(ctx, claimedID)
	if err != nil {
		return nil, err
	}
	if client.PublicKeyPEM == "" {
		return nil, failure()
	}

	key, err := parsePublicKey(client.PublicKeyPEM)
	if err != nil {
		return nil, failure()
	}

	parsed, err := jwt.ParseWithClaims(assertion, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
		jwt.WithIssuer(client.ID),
		jwt.WithSubject(client.ID),
		jwt.WithAudience(a.assertionAudience),
		jwt.WithLeeway(a.clockSkew),
		jwt.WithTimeFunc(a.nowTime),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, failure()
	}

	return &Result{Client: client, Method: oauth2.AuthMethodPrivateKeyJWT}, nil
}

// authenticateNone permits credential-less requests for registered
// public clients only.
func (a *Authenticator) authenticateNone(ctx context.Context, clientID string) (*Result, error) {
	if clientID == "" {
		return nil, failure()
	}

	client, err := a.lookup(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.IsPublic() {
		return nil, failure()
	}

	return &Result{Client: client, Method: oauth2.AuthMethodNone}, nil
}

// lookup fetches the client, mapping unknown ids to the uniform failure
// and anything else to a store error for the transport layer.
func (a *Authenticator) lookup(ctx context.Context, clientID string) (*clients.Client, error) {
	client, err := a.clientRepo.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, clients.ErrClientNotFound) {
			return nil, failure()
		}
		return nil, errors.Wrap(err, "[Authenticator.lookup] clientRepo.Get")
	}
	return client, nil
}

// failure is the single construction point for authentication failures.
func failure() error {
	return oauth2.InvalidClientError()
}

// basicCredentials extracts the client credential pair from an HTTP
// Basic Authorization header. Per RFC 6749 §2.3.1 both values are
// form-urlencoded inside the header.
func basicCredentials(r *http.Request) (clientID, secret string, ok bool) {
	id, pw, ok := r.BasicAuth()
	if !ok {
		return "", "", false
	}
	decodedID, err := url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	decodedPw, err := url.QueryUnescape(pw)
	if err != nil {
		return "", "", false
	}
	return decodedID, decodedPw, true
}

// unverifiedSubject pulls the sub claim out of an assertion without
// verifying the signature. Used only to find the client record to
// verify against.
func unverifiedSubject(assertion string) (string, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(assertion, &claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// parsePublicKey loads a registered PEM verification key, RSA or ECDSA.
func parsePublicKey(pemData string) (any, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData)); err == nil {
		return key, nil
	}
	return jwt.ParseECPublicKeyFromPEM([]byte(pemData))
}
