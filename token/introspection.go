package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/mkaldis/go-token-service/internal/utils"
)

// TokenIntrospection represents the metadata information of an OAuth 2.0
// token, shaped for the introspection endpoint. If Active is false no
// other field is meaningful.
type TokenIntrospection struct {
	Active   bool    `json:"active"`              // Is the token valid
	Scope    string  `json:"scope,omitempty"`     // Granted scope
	ClientID string  `json:"client_id,omitempty"` // Client the token was issued to
	Aud      *string `json:"aud,omitempty"`       // Audience
	Exp      *int64  `json:"exp,omitempty"`       // Expiration
	Iat      *int64  `json:"iat,omitempty"`       // Issued at time
	Iss      *string `json:"iss,omitempty"`       // Issuer of the token
	Sub      *string `json:"sub,omitempty"`       // Subject
}

// Introspect validates an access token this issuer signed and returns
// its metadata. Invalid, expired, and revoked tokens all come back as
// Active=false rather than as errors.
func (i *Issuer) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	parsed, err := jwt.Parse(rawToken, i.signer.GetVerificationKey,
		jwt.WithTimeFunc(i.nowTime),
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	)
	if err != nil || !parsed.Valid {
		return &TokenIntrospection{Active: false}, nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	aud, _ := claims["aud"].(string)
	scope, _ := claims["scope"].(string)
	clientID, _ := claims["client_id"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	jti, _ := claims["jti"].(string)

	active := i.nowTime().Unix() <= int64(exp)
	if jti != "" && i.revokedCache.IsRevoked(jti) {
		active = false
	}

	return &TokenIntrospection{
		Active:   active,
		Scope:    scope,
		ClientID: clientID,
		Aud:      utils.Ptr(aud),
		Exp:      utils.Ptr(int64(exp)),
		Iat:      utils.Ptr(int64(iat)),
		Iss:      utils.Ptr(iss),
		Sub:      utils.Ptr(sub),
	}, nil
}

// RevokeAccessToken revokes a verified access token by its jti.
func (i *Issuer) RevokeAccessToken(rawToken string) error {
	parsed, err := jwt.Parse(rawToken, i.signer.GetVerificationKey,
		jwt.WithTimeFunc(i.nowTime),
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	)
	if err != nil || !parsed.Valid {
		return errors.Wrap(err, "invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("error extracting claims from token")
	}

	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return errors.New("token missing jti claim")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return errors.New("token missing exp claim")
	}

	return i.revokedCache.Add(jti, time.Unix(int64(exp), 0))
}

// CleanupRevokedTokens removes expired entries from the revocation cache.
func (i *Issuer) CleanupRevokedTokens() {
	if i.revokedCache != nil {
		i.revokedCache.Cleanup()
	}
}
