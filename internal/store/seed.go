package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// UserYAML is a local account entry in a seed file. Passwords are plaintext
// in the file and hashed on import.
type UserYAML struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name,omitempty"`
	Email    string `yaml:"email,omitempty"`
}

// UsersConfig is the top-level YAML seed file format.
type UsersConfig struct {
	Users []UserYAML `yaml:"users"`
}

// SeedUsersFromYAML reads a YAML file of local accounts and creates any that
// do not already exist. Existing usernames are left untouched.
func (s *Store) SeedUsersFromYAML(ctx context.Context, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read users seed file: %w", err)
	}
	return s.ImportUsersFromYAML(ctx, data)
}

// ImportUsersFromYAML parses YAML data and creates missing local accounts.
func (s *Store) ImportUsersFromYAML(ctx context.Context, data []byte) error {
	var cfg UsersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse users seed file: %w", err)
	}

	for _, u := range cfg.Users {
		if err := s.ensureUser(ctx, u); err != nil {
			slog.Error("failed to seed user", "username", u.Username, "err", err)
		}
	}
	return nil
}

func (s *Store) ensureUser(ctx context.Context, u UserYAML) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	created, err := s.CreateUser(ctx, u.Username, string(hash))
	if errors.Is(err, ErrUsernameTaken) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.Name != "" || u.Email != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET name = CASE WHEN ? != '' THEN ? ELSE name END,
			                  email = CASE WHEN ? != '' THEN ? ELSE email END
			 WHERE id = ?`,
			u.Name, u.Name, u.Email, u.Email, created.ID)
		if err != nil {
			return unavailable("seed user details", err)
		}
	}
	slog.Info("seeded local user", "username", u.Username)
	return nil
}
