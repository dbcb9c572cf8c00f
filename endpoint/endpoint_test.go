package endpoint_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkaldis/go-token-service/authcode"
	fakeauthcoderepo "github.com/mkaldis/go-token-service/authcode/repofake"
	"github.com/mkaldis/go-token-service/clientauth"
	"github.com/mkaldis/go-token-service/clients"
	fakeclientrepo "github.com/mkaldis/go-token-service/clients/fakerepo"
	"github.com/mkaldis/go-token-service/endpoint"
	"github.com/mkaldis/go-token-service/grants"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/token"
	"github.com/mkaldis/go-token-service/token/refresh"
	refreshrepofake "github.com/mkaldis/go-token-service/token/refresh/repofake"
	"github.com/mkaldis/go-token-service/users"
	fakeuserrepo "github.com/mkaldis/go-token-service/users/repofake"
)

const (
	testIssuerURL    = "https://auth.example.com"
	testTokenURL     = testIssuerURL + "/oauth2/token"
	testAudience     = "api"
	testClientID     = "web-app"
	testClientSecret = "web-app-secret"
	testPublicClient = "spa-app"
	testRedirectURI  = "https://app.example.com/callback"
	testCodeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testUsername     = "alice"
	testPassword     = "Password123"
)

// countingCodeRepo wraps a code store and counts every access, so tests
// can assert that rejected requests never reached storage.
type countingCodeRepo struct {
	inner    authcode.Repo
	accesses atomic.Int64
}

func (c *countingCodeRepo) Save(ctx context.Context, code *authcode.AuthorizationCode) error {
	c.accesses.Add(1)
	return c.inner.Save(ctx, code)
}

func (c *countingCodeRepo) Consume(ctx context.Context, code string) (*authcode.AuthorizationCode, error) {
	c.accesses.Add(1)
	return c.inner.Consume(ctx, code)
}

type testFixture struct {
	endpoint    *endpoint.Endpoint
	clientRepo  clients.Repo
	codeRepo    *countingCodeRepo
	refreshMgr  *refresh.Manager
	refreshRepo refresh.Repo
	userRepo    users.Repo
	nowTime     time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	codeRepo := &countingCodeRepo{inner: fakeauthcoderepo.NewFakeAuthCodeRepo()}
	refreshRepo := refreshrepofake.NewFakeRefreshTokenRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	now := time.Now()
	nowFn := func() time.Time { return now }

	refreshMgr := refresh.NewManager(refreshRepo, 7*24*time.Hour, refresh.WithNowTime(nowFn))

	authenticator, err := clientauth.NewAuthenticator(clientRepo, testTokenURL,
		clientauth.WithNowTime(nowFn))
	require.NoError(t, err)

	validator, err := grants.NewValidator(codeRepo, refreshMgr, users.NewRepoVerifier(userRepo),
		grants.WithNowTime(nowFn))
	require.NoError(t, err)

	issuer, err := token.NewIssuer(token.NewHMACSigner("endpoint-test-secret"), refreshMgr,
		users.NewRepoClaimsProvider(userRepo), testIssuerURL, testAudience,
		token.WithNowTime(nowFn))
	require.NoError(t, err)

	ep, err := endpoint.New(authenticator, validator, issuer)
	require.NoError(t, err)

	f := &testFixture{
		endpoint:    ep,
		clientRepo:  clientRepo,
		codeRepo:    codeRepo,
		refreshMgr:  refreshMgr,
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		nowTime:     now,
	}
	f.seed(t)
	return f
}

func (f *testFixture) seed(t *testing.T) {
	t.Helper()

	secretHash, err := users.HashPassword(testClientSecret)
	require.NoError(t, err)

	err = f.clientRepo.Upsert(context.Background(), &clients.Client{
		ID:         testClientID,
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.ClientCredentialsGrant,
			oauth2.RefreshTokenGrant,
			oauth2.PasswordGrant,
		},
		RedirectURIs:        []string{testRedirectURI},
		Scopes:              []string{"openid", "profile", "email", "api:read"},
		RotateRefreshTokens: true,
	})
	require.NoError(t, err)

	err = f.clientRepo.Upsert(context.Background(), &clients.Client{
		ID:           testPublicClient,
		Type:         clients.ClientTypePublic,
		GrantTypes:   []oauth2.GrantType{oauth2.AuthorizationCodeGrant},
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "profile"},
	})
	require.NoError(t, err)

	passwordHash, err := users.HashPassword(testPassword)
	require.NoError(t, err)

	err = f.userRepo.Upsert(context.Background(), &users.User{
		ID:           "user-1",
		Username:     testUsername,
		Email:        "alice@example.com",
		PasswordHash: passwordHash,
		FirstName:    "Alice",
		Verified:     true,
	})
	require.NoError(t, err)
}

func (f *testFixture) saveCode(t *testing.T, clientID string, challenge string) string {
	t.Helper()

	value, err := authcode.NewCodeValue()
	require.NoError(t, err)

	code := &authcode.AuthorizationCode{
		Code:        value,
		ClientID:    clientID,
		RedirectURI: testRedirectURI,
		Scope:       "openid profile",
		Subject:     "user-1",
		SessionID:   "session-1",
		Nonce:       "nonce-1",
		IssuedAt:    f.nowTime,
		ExpiresAt:   f.nowTime.Add(10 * time.Minute),
	}
	if challenge != "" {
		code.CodeChallenge = challenge
		code.CodeChallengeMethod = oauth2.CodeMethodTypeS256
	}
	require.NoError(t, f.codeRepo.Save(context.Background(), code))
	return value
}

// post runs a form request through the HTTP handler and records the result.
func (f *testFixture) post(t *testing.T, form url.Values, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, testTokenURL, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range configure {
		c(r)
	}

	w := httptest.NewRecorder()
	f.endpoint.Handler()(w, r)
	return w
}

func withBasicAuth(clientID, secret string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(clientID, secret) }
}

func decodeTokenResponse(t *testing.T, w *httptest.ResponseRecorder) *oauth2.TokenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response oauth2.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return &response
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) *oauth2.Error {
	t.Helper()
	var protoErr oauth2.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &protoErr))
	return &protoErr
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestTokenEndpoint_RejectsNonPOST(t *testing.T) {
	f := setupTestFixture(t)

	r := httptest.NewRequest(http.MethodGet, testTokenURL, nil)
	w := httptest.NewRecorder()
	f.endpoint.Handler()(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, oauth2.ErrCodeInvalidRequest, decodeErrorResponse(t, w).Code)
	require.Zero(t, f.codeRepo.accesses.Load())
}

func TestTokenEndpoint_RejectsWrongContentType(t *testing.T) {
	f := setupTestFixture(t)

	body := `{"grant_type":"client_credentials"}`
	r := httptest.NewRequest(http.MethodPost, testTokenURL, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.SetBasicAuth(testClientID, testClientSecret)

	w := httptest.NewRecorder()
	f.endpoint.Handler()(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, oauth2.ErrCodeInvalidRequest, decodeErrorResponse(t, w).Code)
	require.Zero(t, f.codeRepo.accesses.Load())
}

func TestTokenEndpoint_FormContentTypeWithCharset(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	w := f.post(t, form, withBasicAuth(testClientID, testClientSecret), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	})

	require.Equal(t, http.StatusOK, w.Code)
}

func TestTokenEndpoint_InvalidClientGets401(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	w := f.post(t, form, withBasicAuth(testClientID, "wrong-secret"))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `Basic realm="token endpoint"`, w.Header().Get("WWW-Authenticate"))
	require.Equal(t, oauth2.ErrCodeInvalidClient, decodeErrorResponse(t, w).Code)
}

// TestTokenEndpoint_InvalidClientIsUniform asserts the oracle property on
// the wire: unknown client id and wrong secret for a known id produce
// byte-identical response bodies and identical status codes.
func TestTokenEndpoint_InvalidClientIsUniform(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	unknownID := f.post(t, form, withBasicAuth("no-such-client", "whatever"))
	wrongSecret := f.post(t, form, withBasicAuth(testClientID, "wrong-secret"))

	require.Equal(t, http.StatusUnauthorized, unknownID.Code)
	require.Equal(t, unknownID.Code, wrongSecret.Code)
	require.Equal(t, unknownID.Body.String(), wrongSecret.Body.String())
}

func TestTokenEndpoint_AuthorizationCodeFlow(t *testing.T) {
	f := setupTestFixture(t)
	code := f.saveCode(t, testClientID, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", testRedirectURI)

	response := decodeTokenResponse(t, f.post(t, form, withBasicAuth(testClientID, testClientSecret)))

	require.NotNil(t, response.AccessToken)
	require.NotNil(t, response.IdToken)
	require.NotNil(t, response.RefreshToken)
	require.Equal(t, oauth2.TokenTypeBearer, response.TokenType)
	require.Equal(t, "openid profile", response.Scope)
}

func TestTokenEndpoint_PublicClientPKCEFlow(t *testing.T) {
	f := setupTestFixture(t)
	code := f.saveCode(t, testPublicClient, s256Challenge(testCodeVerifier))

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", testPublicClient)
	form.Set("code", code)
	form.Set("redirect_uri", testRedirectURI)
	form.Set("code_verifier", testCodeVerifier)

	response := decodeTokenResponse(t, f.post(t, form))

	require.NotNil(t, response.AccessToken)
	require.NotNil(t, response.IdToken)
	// Public client without refresh_token grant gets no refresh token.
	require.Nil(t, response.RefreshToken)
}

func TestTokenEndpoint_CodeDoubleRedemption(t *testing.T) {
	f := setupTestFixture(t)
	code := f.saveCode(t, testClientID, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", testRedirectURI)

	first := f.post(t, form, withBasicAuth(testClientID, testClientSecret))
	require.Equal(t, http.StatusOK, first.Code)

	second := f.post(t, form, withBasicAuth(testClientID, testClientSecret))
	require.Equal(t, http.StatusBadRequest, second.Code)
	require.Equal(t, oauth2.ErrCodeInvalidGrant, decodeErrorResponse(t, second).Code)
}

func TestTokenEndpoint_CodeConcurrentRedemption(t *testing.T) {
	f := setupTestFixture(t)
	code := f.saveCode(t, testClientID, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", testRedirectURI)

	const attempts = 8
	var wg sync.WaitGroup
	statuses := make(chan int, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.post(t, form, withBasicAuth(testClientID, testClientSecret))
			statuses <- w.Code
		}()
	}
	wg.Wait()
	close(statuses)

	var succeeded int
	for status := range statuses {
		if status == http.StatusOK {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestTokenEndpoint_ClientCredentials(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "api:read")

	response := decodeTokenResponse(t, f.post(t, form, withBasicAuth(testClientID, testClientSecret)))

	require.NotNil(t, response.AccessToken)
	require.Nil(t, response.IdToken)
	require.Nil(t, response.RefreshToken)
	require.Equal(t, "api:read", response.Scope)
}

func TestTokenEndpoint_Password(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", testUsername)
	form.Set("password", testPassword)
	form.Set("scope", "openid profile")

	response := decodeTokenResponse(t, f.post(t, form, withBasicAuth(testClientID, testClientSecret)))

	require.NotNil(t, response.AccessToken)
	require.NotNil(t, response.IdToken)
	require.NotNil(t, response.RefreshToken)
}

func TestTokenEndpoint_PasswordBadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", testUsername)
	form.Set("password", "wrong")

	w := f.post(t, form, withBasicAuth(testClientID, testClientSecret))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, oauth2.ErrCodeInvalidGrant, decodeErrorResponse(t, w).Code)
}

func TestTokenEndpoint_RefreshRotation(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.refreshMgr.Create(context.Background(), testClientID, "user-1", "openid profile", 0)
	require.NoError(t, err)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", first.Token)

	response := decodeTokenResponse(t, f.post(t, form, withBasicAuth(testClientID, testClientSecret)))
	require.NotNil(t, response.RefreshToken)
	require.NotEqual(t, first.Token, *response.RefreshToken)

	// The consumed token must be dead on the wire as well.
	replay := f.post(t, form, withBasicAuth(testClientID, testClientSecret))
	require.Equal(t, http.StatusBadRequest, replay.Code)
	require.Equal(t, oauth2.ErrCodeInvalidGrant, decodeErrorResponse(t, replay).Code)

	// Its successor still works.
	form.Set("refresh_token", *response.RefreshToken)
	next := f.post(t, form, withBasicAuth(testClientID, testClientSecret))
	require.Equal(t, http.StatusOK, next.Code)
}

func TestTokenEndpoint_MissingGrantType(t *testing.T) {
	f := setupTestFixture(t)

	w := f.post(t, url.Values{}, withBasicAuth(testClientID, testClientSecret))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, oauth2.ErrCodeInvalidRequest, decodeErrorResponse(t, w).Code)
}

func TestTokenEndpoint_UnsupportedGrantType(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "urn:example:unregistered")

	w := f.post(t, form, withBasicAuth(testClientID, testClientSecret))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, oauth2.ErrCodeUnsupportedGrantType, decodeErrorResponse(t, w).Code)
}

func TestTokenEndpoint_SuccessHeaders(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	w := f.post(t, form, withBasicAuth(testClientID, testClientSecret))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", w.Header().Get("Pragma"))
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

// failingCodeRepo simulates storage breakage.
type failingCodeRepo struct{}

func (failingCodeRepo) Save(context.Context, *authcode.AuthorizationCode) error {
	return context.DeadlineExceeded
}

func (failingCodeRepo) Consume(context.Context, string) (*authcode.AuthorizationCode, error) {
	return nil, context.DeadlineExceeded
}

func TestTokenEndpoint_StoreFailureIs500(t *testing.T) {
	f := setupTestFixture(t)

	clientRepo := f.clientRepo
	refreshMgr := f.refreshMgr

	authenticator, err := clientauth.NewAuthenticator(clientRepo, testTokenURL)
	require.NoError(t, err)
	validator, err := grants.NewValidator(failingCodeRepo{}, refreshMgr, users.NewRepoVerifier(f.userRepo))
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.NewHMACSigner("x"), refreshMgr,
		users.NewRepoClaimsProvider(f.userRepo), testIssuerURL, testAudience)
	require.NoError(t, err)
	ep, err := endpoint.New(authenticator, validator, issuer)
	require.NoError(t, err)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "any-code")
	form.Set("redirect_uri", testRedirectURI)

	r := httptest.NewRequest(http.MethodPost, testTokenURL, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.SetBasicAuth(testClientID, testClientSecret)

	w := httptest.NewRecorder()
	ep.Handler()(w, r)

	// A broken store is a server failure, never a protocol error.
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "invalid_grant")
}
