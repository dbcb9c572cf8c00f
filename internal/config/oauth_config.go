package config

import "time"

type OAuthConfig interface {
	GetIssuer() string
	GetAudience() string
	GetClockSkew() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultIDTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetSigningSecret() string
	GetSigningKeyPEM() string
	GetSigningKeyID() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "http://localhost:8080")
}

func (OAuth) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "api")
}

// GetClockSkew is the tolerated drift when checking client-assertion
// freshness. A policy parameter, never hard-coded at call sites.
func (OAuth) GetClockSkew() time.Duration {
	return GetDurationEnv("CLOCK_SKEW", 30*time.Second)
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return GetDurationEnv("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (OAuth) GetDefaultIDTokenExpiry() time.Duration {
	return GetDurationEnv("ID_TOKEN_EXPIRY", time.Hour)
}

func (OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return GetDurationEnv("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

// GetSigningSecret selects HMAC signing when non-empty.
func (OAuth) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}

// GetSigningKeyPEM selects asymmetric signing from a PEM private key
// when non-empty. When both secret and key are empty an ephemeral RSA
// key is generated at startup.
func (OAuth) GetSigningKeyPEM() string {
	return GetEnv("SIGNING_KEY_PEM", "")
}

func (OAuth) GetSigningKeyID() string {
	return GetEnv("SIGNING_KEY_ID", "default")
}

func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
