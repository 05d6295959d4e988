package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/store"
)

// Authorizer gates realtime connection attempts, resolving the handshake
// request to a full user identity or refusing it.
type Authorizer interface {
	Authorize(r *http.Request) (model.User, error)
}

// Handler bundles the hub with its collaborators behind HTTP endpoints.
type Handler struct {
	hub        *Hub
	authorizer Authorizer
	sessions   *auth.Service
	github     *auth.GitHubProvider
	upgrader   websocket.Upgrader

	maxMessageSize int64
}

// NewHandler wires the hub, auth service, and optional identity provider
// into an HTTP handler set.
func NewHandler(hub *Hub, sessions *auth.Service, github *auth.GitHubProvider, allowedOrigins []string, maxMessageSize int64) *Handler {
	origins := newOriginPolicy(allowedOrigins)
	return &Handler{
		hub:        hub,
		authorizer: sessions,
		sessions:   sessions,
		github:     github,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		maxMessageSize: maxMessageSize,
	}
}

// ServeWS authorizes and upgrades a realtime connection attempt. The session
// cookie from the HTTP login must accompany the handshake; a request without
// a resolvable identity is refused before any registration occurs, so no
// connection is ever counted in presence anonymously.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.Authorize(r)
	if err != nil {
		h.refuseWS(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "username", user.Username, "err", err)
		return
	}

	client := NewClient(conn, h.hub, user, h.maxMessageSize)
	h.hub.Register(client)
}

// refuseWS maps an authorization failure to the handshake response. An
// unauthorized client must log in again; a store outage is transient and
// worth retrying with backoff.
func (h *Handler) refuseWS(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		slog.Info("refused realtime connection", "reason", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, store.ErrUnavailable):
		slog.Error("refused realtime connection: store unavailable", "err", err)
		http.Error(w, "service unavailable, retry later", http.StatusServiceUnavailable)
	default:
		slog.Error("refused realtime connection", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Login verifies a local username/password form and issues a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	_, sess, err := h.sessions.Login(r.Context(), username, password)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}

	auth.WriteCookie(w, r, sess.Key)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Register creates a local account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if err := model.ValidateUsername(username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, sess, err := h.sessions.Register(r.Context(), username, password)
	if errors.Is(err, store.ErrUsernameTaken) {
		http.Error(w, "username already taken", http.StatusConflict)
		return
	}
	if err != nil {
		h.authFailure(w, r, err)
		return
	}

	auth.WriteCookie(w, r, sess.Key)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout destroys the current session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if key, ok := auth.ReadCookie(r); ok {
		if err := h.sessions.Logout(r.Context(), key); err != nil {
			slog.Warn("failed to delete session on logout", "err", err)
		}
	}
	auth.ClearCookie(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GitHubBegin starts the identity-provider flow.
func (h *Handler) GitHubBegin(w http.ResponseWriter, r *http.Request) {
	h.github.Begin(w, r)
}

// GitHubCallback completes the identity-provider flow: it exchanges the
// code for a profile, resolves or creates the user record, and issues a
// session cookie.
func (h *Handler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	profile, err := h.github.Callback(r)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}

	_, sess, err := h.sessions.LoginProfile(r.Context(), profile)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}

	auth.WriteCookie(w, r, sess.Key)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) authFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		slog.Info("login refused", "reason", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, store.ErrUnavailable):
		slog.Error("login failed: store unavailable", "err", err)
		http.Error(w, "service unavailable, retry later", http.StatusServiceUnavailable)
	default:
		slog.Error("login failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Health reports server liveness and the current user count.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ok, %d users connected\n", h.hub.CurrentUsers())
}
