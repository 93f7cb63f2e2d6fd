// Package app assembles the HTTP server around the routing engine:
// environment configuration, handlers, middleware, metrics, and the
// observability sinks.
package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	// ConfigPath points at the routing configuration document.
	ConfigPath  string
	Environment string

	// DBDSN is the SQLite DSN for the event store. Empty disables
	// persistence; events still feed metrics and rolling stats.
	DBDSN string

	ProviderTimeoutSecs int

	CORSOrigins []string // allowed CORS origins; empty = ["*"]

	// OpenTelemetry tracing.
	OTelEnabled  bool
	OTelEndpoint string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr:  getEnv("PROMPTROUTE_LISTEN_ADDR", ":8080"),
		LogLevel:    getEnv("PROMPTROUTE_LOG_LEVEL", "info"),
		ConfigPath:  getEnv("PROMPTROUTE_CONFIG", "promptroute.json"),
		Environment: getEnv("PROMPTROUTE_ENVIRONMENT", ""),
		DBDSN:       getEnv("PROMPTROUTE_DB_DSN", ""),

		ProviderTimeoutSecs: getEnvInt("PROMPTROUTE_PROVIDER_TIMEOUT_SECS", 30),

		CORSOrigins: getEnvStringSlice("PROMPTROUTE_CORS_ORIGINS", nil),

		OTelEnabled:  getEnvBool("PROMPTROUTE_OTEL_ENABLED", false),
		OTelEndpoint: getEnv("PROMPTROUTE_OTEL_ENDPOINT", "localhost:4318"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("PROMPTROUTE_CONFIG must not be empty")
	}
	if c.ProviderTimeoutSecs <= 0 {
		return fmt.Errorf("PROMPTROUTE_PROVIDER_TIMEOUT_SECS must be > 0, got %d", c.ProviderTimeoutSecs)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
