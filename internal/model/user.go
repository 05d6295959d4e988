// Package model defines the shared domain types for Parley: user identities,
// session records, and the validation rules that apply to them.
package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxUsernameLength = 32

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")

// User is an authenticated identity. It is created at registration (local
// password) or on first identity-provider login, and is never mutated by the
// realtime layer; connections reference it by ID and carry an immutable copy
// for their lifetime.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url"`
	Email      string    `json:"email"`
	Provider   string    `json:"provider"`
	CreatedOn  time.Time `json:"created_on"`
	LastLogin  time.Time `json:"last_login"`
	LoginCount int64     `json:"login_count"`
}

// Profile is a normalized identity-provider profile, produced by the OAuth
// exchange and consumed by the user store's upsert.
type Profile struct {
	ProviderID string
	Username   string
	Name       string
	AvatarURL  string
	Email      string
	Provider   string
}

// ValidateUsername checks that a username is 1-32 ASCII alphanumeric,
// underscore, or hyphen characters. Returns nil on success or a descriptive
// error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
