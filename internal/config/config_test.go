package config

import (
	"testing"
	"time"
)

// TestLoadDefaults verifies the defaults used when no environment variables
// are set.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DatabasePath != "parley.db" {
		t.Errorf("database path = %q, want parley.db", cfg.DatabasePath)
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("session ttl = %s, want 168h", cfg.SessionTTL)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("max message size = %d, want 4096", cfg.MaxMessageSize)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:8080" {
		t.Errorf("allowed origins = %v", cfg.AllowedOrigins)
	}
	if cfg.GitHub.ClientID != "" {
		t.Errorf("github client id = %q, want empty", cfg.GitHub.ClientID)
	}
}

// TestLoadFromEnv verifies that environment variables override defaults.
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PARLEY_ADDR", ":9999")
	t.Setenv("PARLEY_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PARLEY_SESSION_TTL", "30m")
	t.Setenv("PARLEY_GITHUB_CLIENT_ID", "client-id")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("allowed origins = %v, want 2 entries", cfg.AllowedOrigins)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %s, want 30m", cfg.SessionTTL)
	}
	if cfg.GitHub.ClientID != "client-id" {
		t.Errorf("github client id = %q", cfg.GitHub.ClientID)
	}
}

// TestLoadRejectsBadValues verifies validation of nonsensical settings.
func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PARLEY_SESSION_TTL", "-1h")
	if _, err := Load(); err == nil {
		t.Error("negative session ttl accepted")
	}

	t.Setenv("PARLEY_SESSION_TTL", "1h")
	t.Setenv("PARLEY_MAX_MESSAGE_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Error("zero max message size accepted")
	}
}
