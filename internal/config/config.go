package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	GatewayAPI     string
	GatewayAddress string
	GatewayAuthKey string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PolicyBundlePath string
	PolicyBundleID   string

	ProverCmd            string
	ProverTimeoutSeconds int

	ArtifactDir string

	AnchorEnabled        bool
	AnchorTimeoutSeconds int

	CacheTTLSeconds int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:             addr,
		LogLevel:             envDefault("LOG_LEVEL", "info"),
		GatewayAPI:           envDefault("GATEWAY_API", "http://localhost:4005"),
		GatewayAddress:       os.Getenv("GATEWAY_ADDR"),
		GatewayAuthKey:       envDefault("GATEWAY_AUTH_KEY", "demo"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envIntDefault("REDIS_DB", 0),
		PolicyBundlePath:     os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:       envDefault("POLICY_BUNDLE_ID", "default"),
		ProverCmd:            os.Getenv("PROVER_CMD"),
		ProverTimeoutSeconds: envIntDefault("PROVER_TIMEOUT_SECONDS", 120),
		ArtifactDir:          envDefault("ARTIFACT_DIR", "artifacts"),
		AnchorEnabled:        envBoolDefault("ANCHOR_ENABLED", false),
		AnchorTimeoutSeconds: envIntDefault("ANCHOR_TIMEOUT_SECONDS", 2),
		CacheTTLSeconds:      envIntDefault("CACHE_TTL_SECONDS", 300),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
