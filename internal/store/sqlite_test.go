package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestCreateAndLookupUser verifies local account creation, lookup by
// username and id, and the uniqueness constraint.
func TestCreateAndLookupUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Username != "alice" || created.ID == 0 {
		t.Errorf("created user = %+v", created)
	}
	if created.Provider != "local" {
		t.Errorf("provider = %q, want local", created.Provider)
	}

	byName, hash, err := s.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("user by username: %v", err)
	}
	if byName.ID != created.ID || hash != "hash-1" {
		t.Errorf("lookup = %+v / %q", byName, hash)
	}

	if _, err := s.CreateUser(ctx, "alice", "hash-2"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate create error = %v, want ErrUsernameTaken", err)
	}

	if _, _, err := s.UserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
	if _, err := s.UserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}

	if _, err := s.CreateUser(ctx, "bad name!", "hash"); err == nil {
		t.Error("create with invalid username succeeded")
	}
}

// TestUpsertProviderUser verifies upsert-on-conflict semantics: profile
// fields stick from the first login, while last_login and login_count move
// on every login.
func TestUpsertProviderUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	profile := model.Profile{
		ProviderID: "42",
		Username:   "octo",
		Name:       "Octo Cat",
		AvatarURL:  "https://example.com/octo.png",
		Email:      "octo@example.com",
		Provider:   "github",
	}

	first, err := s.UpsertProviderUser(ctx, profile)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.LoginCount != 1 {
		t.Errorf("first login count = %d, want 1", first.LoginCount)
	}
	if first.Name != "Octo Cat" || first.Provider != "github" {
		t.Errorf("first upsert user = %+v", first)
	}

	// A later login with a changed display name must not overwrite the
	// stored profile.
	changed := profile
	changed.Name = "Different Name"
	second, err := s.UpsertProviderUser(ctx, changed)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new user: %d then %d", first.ID, second.ID)
	}
	if second.LoginCount != 2 {
		t.Errorf("second login count = %d, want 2", second.LoginCount)
	}
	if second.Name != "Octo Cat" {
		t.Errorf("name after second login = %q, want original", second.Name)
	}
	if !second.LastLogin.Before(time.Now().Add(time.Minute)) {
		t.Errorf("implausible last_login %v", second.LastLogin)
	}
}

// TestTouchLogin verifies that a local login bumps login_count.
func TestTouchLogin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.TouchLogin(ctx, u.ID); err != nil {
		t.Fatalf("touch login: %v", err)
	}

	got, err := s.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("user by id: %v", err)
	}
	if got.LoginCount != 1 {
		t.Errorf("login count = %d, want 1", got.LoginCount)
	}
}

// TestSessionLifecycle verifies create, lookup, and delete of session
// records, including that expiry surfaces as not-found.
func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess := model.Session{Key: "key-1", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := s.SessionByKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("session by key: %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("session user = %d, want %d", got.UserID, u.ID)
	}

	if _, err := s.SessionByKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteSession(ctx, "key-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.SessionByKey(ctx, "key-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session error = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	if err := s.DeleteSession(ctx, "key-1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

// TestExpiredSessionNotFound verifies that an expired session is reported as
// not-found and removed.
func TestExpiredSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess := model.Session{Key: "stale", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute)}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := s.SessionByKey(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session error = %v, want ErrNotFound", err)
	}
	// The lazy delete means a second lookup also misses.
	if _, err := s.SessionByKey(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session still present: %v", err)
	}
}
