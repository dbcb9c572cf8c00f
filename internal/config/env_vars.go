package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	redisAddrVar   = "REDIS_ADDR"
	environmentVar = "ENV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Token Service")
}

func (EnvVars) GetEnv() string {
	return GetEnv(environmentVar, "DEV")
}

// GetRedisAddr returns the Redis address for the code and refresh token
// stores. Empty means the in-memory stores are used.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
