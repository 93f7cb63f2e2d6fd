package app

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	envVars := []string{
		"PROMPTROUTE_LISTEN_ADDR",
		"PROMPTROUTE_LOG_LEVEL",
		"PROMPTROUTE_CONFIG",
		"PROMPTROUTE_ENVIRONMENT",
		"PROMPTROUTE_DB_DSN",
		"PROMPTROUTE_PROVIDER_TIMEOUT_SECS",
		"PROMPTROUTE_CORS_ORIGINS",
		"PROMPTROUTE_OTEL_ENABLED",
	}
	for _, key := range envVars {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ConfigPath != "promptroute.json" {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
	if cfg.DBDSN != "" {
		t.Errorf("DBDSN = %q", cfg.DBDSN)
	}
	if cfg.ProviderTimeoutSecs != 30 {
		t.Errorf("ProviderTimeoutSecs = %d", cfg.ProviderTimeoutSecs)
	}
	if cfg.OTelEnabled {
		t.Error("OTelEnabled should default false")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PROMPTROUTE_LISTEN_ADDR", ":9000")
	t.Setenv("PROMPTROUTE_CONFIG", "/etc/promptroute/routes.json")
	t.Setenv("PROMPTROUTE_PROVIDER_TIMEOUT_SECS", "60")
	t.Setenv("PROMPTROUTE_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ConfigPath != "/etc/promptroute/routes.json" {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
	if cfg.ProviderTimeoutSecs != 60 {
		t.Errorf("ProviderTimeoutSecs = %d", cfg.ProviderTimeoutSecs)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	t.Setenv("PROMPTROUTE_PROVIDER_TIMEOUT_SECS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}
