package config

type Config interface {
	EnvConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetRedisAddr() string
}

type mainConfig struct {
	EnvVars
	OAuth
}

// New returns the environment-variable backed configuration.
func New() Config {
	return mainConfig{}
}
