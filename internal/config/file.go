package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as Go
// duration strings ("30m", "168h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "[config.Duration.UnmarshalYAML] %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// FileSettings mirrors the optional YAML configuration file. Any field
// left zero falls back to the environment-variable configuration.
type FileSettings struct {
	Port      string `yaml:"port"`
	AppName   string `yaml:"app_name"`
	Env       string `yaml:"env"`
	RedisAddr string `yaml:"redis_addr"`

	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	ClockSkew          Duration `yaml:"clock_skew"`
	AccessTokenExpiry  Duration `yaml:"access_token_expiry"`
	IDTokenExpiry      Duration `yaml:"id_token_expiry"`
	RefreshTokenExpiry Duration `yaml:"refresh_token_expiry"`

	SigningSecret string `yaml:"signing_secret"`
	SigningKeyPEM string `yaml:"signing_key_pem"`
	SigningKeyID  string `yaml:"signing_key_id"`
}

type fileConfig struct {
	mainConfig
	settings FileSettings
}

var _ Config = fileConfig{}

// LoadFile reads a YAML configuration file layered over the environment
// configuration: file values win, unset file values fall through.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[config.LoadFile] read")
	}

	var settings FileSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, errors.Wrap(err, "[config.LoadFile] unmarshal")
	}

	return fileConfig{settings: settings}, nil
}

func (c fileConfig) GetPort() string {
	if c.settings.Port != "" {
		port := c.settings.Port
		if port[0] != ':' {
			port = ":" + port
		}
		return port
	}
	return c.mainConfig.GetPort()
}

func (c fileConfig) GetAppName() string {
	return stringOr(c.settings.AppName, c.mainConfig.GetAppName)
}

func (c fileConfig) GetEnv() string {
	return stringOr(c.settings.Env, c.mainConfig.GetEnv)
}

func (c fileConfig) GetRedisAddr() string {
	return stringOr(c.settings.RedisAddr, c.mainConfig.GetRedisAddr)
}

func (c fileConfig) GetIssuer() string {
	return stringOr(c.settings.Issuer, c.mainConfig.GetIssuer)
}

func (c fileConfig) GetAudience() string {
	return stringOr(c.settings.Audience, c.mainConfig.GetAudience)
}

func (c fileConfig) GetClockSkew() time.Duration {
	return durationOr(c.settings.ClockSkew, c.mainConfig.GetClockSkew)
}

func (c fileConfig) GetDefaultAccessTokenExpiry() time.Duration {
	return durationOr(c.settings.AccessTokenExpiry, c.mainConfig.GetDefaultAccessTokenExpiry)
}

func (c fileConfig) GetDefaultIDTokenExpiry() time.Duration {
	return durationOr(c.settings.IDTokenExpiry, c.mainConfig.GetDefaultIDTokenExpiry)
}

func (c fileConfig) GetDefaultRefreshTokenExpiry() time.Duration {
	return durationOr(c.settings.RefreshTokenExpiry, c.mainConfig.GetDefaultRefreshTokenExpiry)
}

func (c fileConfig) GetSigningSecret() string {
	return stringOr(c.settings.SigningSecret, c.mainConfig.GetSigningSecret)
}

func (c fileConfig) GetSigningKeyPEM() string {
	return stringOr(c.settings.SigningKeyPEM, c.mainConfig.GetSigningKeyPEM)
}

func (c fileConfig) GetSigningKeyID() string {
	return stringOr(c.settings.SigningKeyID, c.mainConfig.GetSigningKeyID)
}

func stringOr(value string, fallback func() string) string {
	if value != "" {
		return value
	}
	return fallback()
}

func durationOr(value Duration, fallback func() time.Duration) time.Duration {
	if value != 0 {
		return time.Duration(value)
	}
	return fallback()
}
