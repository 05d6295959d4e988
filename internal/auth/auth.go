// Package auth implements login, session issuance, and the connection
// authorizer that gates every realtime handshake.
//
// Failures are split into two kinds: ErrUnauthorized (no, invalid, or
// expired credentials; the client must log in again) and the store's
// ErrUnavailable (backend down; the client may retry with backoff). Callers
// must not conflate the two.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/store"
)

// ErrUnauthorized reports missing, invalid, or expired credentials.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Store is the narrow persistence surface the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, string, error)
	UserByID(ctx context.Context, id int64) (model.User, error)
	UpsertProviderUser(ctx context.Context, p model.Profile) (model.User, error)
	TouchLogin(ctx context.Context, userID int64) error
	CreateSession(ctx context.Context, sess model.Session) error
	SessionByKey(ctx context.Context, key string) (model.Session, error)
	DeleteSession(ctx context.Context, key string) error
}

// Service verifies credentials and manages sessions.
type Service struct {
	store      Store
	sessionTTL time.Duration
}

// NewService creates an auth service backed by st, issuing sessions that
// expire after ttl.
func NewService(st Store, ttl time.Duration) *Service {
	return &Service{store: st, sessionTTL: ttl}
}

// Login verifies a local username/password pair and, on success, issues a
// session. A bad username and a bad password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, model.Session, error) {
	slog.Info("login attempt", "username", username)

	user, hash, err := s.store.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, model.Session{}, ErrUnauthorized
	}
	if err != nil {
		return model.User{}, model.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return model.User{}, model.Session{}, ErrUnauthorized
	}
	if err := s.store.TouchLogin(ctx, user.ID); err != nil {
		return model.User{}, model.Session{}, err
	}

	sess, err := s.createSession(ctx, user.ID)
	if err != nil {
		return model.User{}, model.Session{}, err
	}
	return user, sess, nil
}

// Register creates a local account and logs it in.
func (s *Service) Register(ctx context.Context, username, password string) (model.User, model.Session, error) {
	if password == "" {
		return model.User{}, model.Session{}, fmt.Errorf("%w: empty password", ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, model.Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return model.User{}, model.Session{}, err
	}

	sess, err := s.createSession(ctx, user.ID)
	if err != nil {
		return model.User{}, model.Session{}, err
	}
	return user, sess, nil
}

// LoginProfile resolves an identity-provider profile to a user record,
// creating it on first login, and issues a session.
func (s *Service) LoginProfile(ctx context.Context, p model.Profile) (model.User, model.Session, error) {
	user, err := s.store.UpsertProviderUser(ctx, p)
	if err != nil {
		return model.User{}, model.Session{}, err
	}

	sess, err := s.createSession(ctx, user.ID)
	if err != nil {
		return model.User{}, model.Session{}, err
	}
	return user, sess, nil
}

// Logout destroys the session behind the given key.
func (s *Service) Logout(ctx context.Context, sessionKey string) error {
	return s.store.DeleteSession(ctx, sessionKey)
}

func (s *Service) createSession(ctx context.Context, userID int64) (model.Session, error) {
	sess := model.Session{
		Key:       uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Authorize gates a realtime connection attempt. It extracts the session key
// from the handshake request's cookie, resolves it to a session and then to
// a full user identity, and returns that identity. It returns
// ErrUnauthorized when there is no usable session and store.ErrUnavailable
// when a backend lookup failed; in both cases the connection must be refused
// before any registration occurs.
func (s *Service) Authorize(r *http.Request) (model.User, error) {
	key, ok := ReadCookie(r)
	if !ok {
		return model.User{}, fmt.Errorf("%w: no session cookie", ErrUnauthorized)
	}

	ctx := r.Context()
	sess, err := s.store.SessionByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: unknown or expired session", ErrUnauthorized)
	}
	if err != nil {
		return model.User{}, err
	}

	user, err := s.store.UserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// Session outlived its user record.
		return model.User{}, fmt.Errorf("%w: session user no longer exists", ErrUnauthorized)
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}
