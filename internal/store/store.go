// Package store provides durable persistence for users and login sessions.
//
// All lookups distinguish a missing record (ErrNotFound) from a failing
// backend (ErrUnavailable) so that callers can tell "no session" apart from
// "store down" and pick the right client-facing failure.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the requested record does not exist (or has
// expired, for sessions).
var ErrNotFound = errors.New("store: not found")

// ErrUnavailable reports that the storage backend failed. Callers should
// treat it as transient and retryable.
var ErrUnavailable = errors.New("store: unavailable")

// ErrUsernameTaken reports a uniqueness conflict on local registration.
var ErrUsernameTaken = errors.New("store: username already taken")

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
