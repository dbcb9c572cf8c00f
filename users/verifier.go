package users

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mkaldis/go-token-service/oauth2"
)

// ErrBadCredentials is the single failure value for credential
// verification. Unknown user, wrong password, and blocked/unverified
// accounts all collapse into it so callers cannot tell them apart.
var ErrBadCredentials = errors.New("bad credentials")

// CredentialVerifier checks resource-owner credentials for the password
// grant. Implementations must fail uniformly: nothing about the failure
// may reveal whether the username exists.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*User, error)
}

// ClaimsProvider returns the identity claims for a subject, filtered to
// the granted scope set. Used when building ID tokens.
type ClaimsProvider interface {
	Claims(ctx context.Context, subject string, scopes []string) (map[string]any, error)
}

// RepoVerifier verifies credentials against a user Repo with bcrypt.
type RepoVerifier struct {
	repo Repo
}

var _ CredentialVerifier = (*RepoVerifier)(nil)

func NewRepoVerifier(repo Repo) *RepoVerifier {
	return &RepoVerifier{repo: repo}
}

func (v *RepoVerifier) Verify(ctx context.Context, username, password string) (*User, error) {
	user, err := v.repo.GetByUsername(ctx, username)
	if err != nil {
		// Burn a hash comparison anyway so unknown-user and
		// wrong-password take the same time.
		CheckPasswordHash(password, "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
		return nil, ErrBadCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	if user.Blocked || !user.Verified {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// RepoClaimsProvider builds OIDC profile claims from a user Repo.
type RepoClaimsProvider struct {
	repo Repo
}

var _ ClaimsProvider = (*RepoClaimsProvider)(nil)

func NewRepoClaimsProvider(repo Repo) *RepoClaimsProvider {
	return &RepoClaimsProvider{repo: repo}
}

// Claims returns the subject's profile claims filtered to the granted
// scopes: "profile" releases name claims, "email" releases email claims.
// The bare "sub" claim is always present.
func (p *RepoClaimsProvider) Claims(ctx context.Context, subject string, scopes []string) (map[string]any, error) {
	user, err := p.repo.GetByID(ctx, subject)
	if err != nil {
		return nil, errors.Wrap(err, "[RepoClaimsProvider.Claims] GetByID")
	}

	claims := map[string]any{
		"sub": user.ID,
	}

	if oauth2.ContainsScope(scopes, "profile") {
		claims["name"] = user.Name()
		claims["given_name"] = user.FirstName
		claims["family_name"] = user.LastName
		claims["preferred_username"] = user.Username
	}

	if oauth2.ContainsScope(scopes, "email") {
		claims["email"] = user.Email
		claims["email_verified"] = user.Verified
	}

	return claims, nil
}
