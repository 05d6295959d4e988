package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// Store is a SQLite-backed user and session store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		password_hash TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		avatar_url    TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		provider      TEXT NOT NULL DEFAULT 'local',
		provider_id   TEXT NOT NULL DEFAULT '',
		created_on    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_login    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		login_count   INTEGER NOT NULL DEFAULT 0
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider
		ON users(provider, provider_id) WHERE provider_id != '';

	CREATE TABLE IF NOT EXISTS sessions (
		key        TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const userColumns = "id, username, password_hash, name, avatar_url, email, provider, created_on, last_login, login_count"

func scanUser(row *sql.Row) (model.User, string, error) {
	var u model.User
	var hash, createdOn, lastLogin string
	err := row.Scan(&u.ID, &u.Username, &hash, &u.Name, &u.AvatarURL, &u.Email,
		&u.Provider, &createdOn, &lastLogin, &u.LoginCount)
	if err != nil {
		return model.User{}, "", err
	}
	if u.CreatedOn, err = parseDBTime(createdOn); err != nil {
		return model.User{}, "", fmt.Errorf("parse created_on: %w", err)
	}
	if u.LastLogin, err = parseDBTime(lastLogin); err != nil {
		return model.User{}, "", fmt.Errorf("parse last_login: %w", err)
	}
	return u, hash, nil
}

// CreateUser inserts a local account with the given bcrypt hash.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return model.User{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, name) VALUES (?, ?, ?)`,
		username, passwordHash, username)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return model.User{}, ErrUsernameTaken
		}
		return model.User{}, unavailable("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, unavailable("create user id", err)
	}
	return s.UserByID(ctx, id)
}

// UserByID returns the user with the given id.
func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, _, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, unavailable("user by id", err)
	}
	return u, nil
}

// UserByUsername returns the user with the given username plus its password
// hash, for credential verification.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, hash, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, "", ErrNotFound
	}
	if err != nil {
		return model.User{}, "", unavailable("user by username", err)
	}
	return u, hash, nil
}

// UpsertProviderUser resolves an identity-provider profile to a user record,
// creating it on first login. Profile fields are written only on insert;
// last_login is always refreshed and login_count incremented, matching
// upsert-on-conflict semantics.
func (s *Store) UpsertProviderUser(ctx context.Context, p model.Profile) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, name, avatar_url, email, provider, provider_id, login_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(provider, provider_id) WHERE provider_id != '' DO UPDATE SET
			last_login = CURRENT_TIMESTAMP,
			login_count = login_count + 1
		RETURNING `+userColumns,
		p.Username, p.Name, p.AvatarURL, p.Email, p.Provider, p.ProviderID)
	u, _, err := scanUser(row)
	if err != nil {
		return model.User{}, unavailable("upsert provider user", err)
	}
	return u, nil
}

// TouchLogin refreshes last_login and bumps login_count for a local login.
func (s *Store) TouchLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = CURRENT_TIMESTAMP, login_count = login_count + 1 WHERE id = ?`,
		userID)
	if err != nil {
		return unavailable("touch login", err)
	}
	return nil
}

// CreateSession persists a session record.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, user_id, expires_at) VALUES (?, ?, ?)`,
		sess.Key, sess.UserID, formatDBTime(sess.ExpiresAt))
	if err != nil {
		return unavailable("create session", err)
	}
	return nil
}

// SessionByKey returns the session for key. An expired session is reported
// as ErrNotFound and lazily deleted.
func (s *Store) SessionByKey(ctx context.Context, key string) (model.Session, error) {
	var sess model.Session
	var expiresAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT key, user_id, expires_at FROM sessions WHERE key = ?`, key)
	err := row.Scan(&sess.Key, &sess.UserID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, unavailable("session by key", err)
	}
	if sess.ExpiresAt, err = parseDBTime(expiresAt); err != nil {
		return model.Session{}, unavailable("parse session expiry", err)
	}
	if sess.Expired(time.Now()) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
		return model.Session{}, ErrNotFound
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an
// error.
func (s *Store) DeleteSession(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	if err != nil {
		return unavailable("delete session", err)
	}
	return nil
}
