// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration.
type Config struct {
	Addr           string        `env:"PARLEY_ADDR" envDefault:":8080"`
	DatabasePath   string        `env:"PARLEY_DB_PATH" envDefault:"parley.db"`
	AllowedOrigins []string      `env:"PARLEY_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`
	SessionTTL     time.Duration `env:"PARLEY_SESSION_TTL" envDefault:"168h"`
	MaxMessageSize int64         `env:"PARLEY_MAX_MESSAGE_SIZE" envDefault:"4096"`
	LogLevel       string        `env:"PARLEY_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"PARLEY_LOG_FORMAT" envDefault:"text"`
	SeedUsersFile  string        `env:"PARLEY_SEED_USERS_FILE"`

	GitHub GitHubConfig `envPrefix:"PARLEY_GITHUB_"`
}

// GitHubConfig holds OAuth client credentials for the GitHub identity
// provider. Leaving ClientID empty disables provider login.
type GitHubConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Load parses configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("session TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.MaxMessageSize <= 0 {
		return Config{}, fmt.Errorf("max message size must be positive, got %d", cfg.MaxMessageSize)
	}
	return cfg, nil
}
