package model

import "time"

// Session is a durable login session shared between the HTTP layer and the
// realtime handshake. The key is opaque; it is the value carried by the
// session cookie. Sessions are created at login, read (never mutated) by the
// connection authorizer, and destroyed by logout or expiry.
type Session struct {
	Key       string
	UserID    int64
	ExpiresAt time.Time
}

// Expired reports whether the session's absolute expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
