package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

// newFullServer wires the real auth service and SQLite store behind the
// handler, mirroring production wiring.
func newFullServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sessions := auth.NewService(st, time.Hour)

	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	h := NewHandler(hub, sessions, nil, []string{"*"}, 4096)
	ts := httptest.NewServer(h.Routes())
	t.Cleanup(ts.Close)
	return ts, hub
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", resp.StatusCode)
	return nil
}

// TestLoginThenConnect walks the full control flow: HTTP registration writes
// a session, the WebSocket handshake carries the same cookie, and the
// connection is counted in presence under the registered identity.
func TestLoginThenConnect(t *testing.T) {
	ts, hub := newFullServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"alice"}, "password": {"wonderland"}}
	resp, err := client.PostForm(ts.URL+"/register", form)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("register status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	cookie := sessionCookie(t, resp)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Cookie": {cookie.Name + "=" + cookie.Value}}
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial with session cookie failed: %v", err)
	}
	if wsResp != nil && wsResp.Body != nil {
		_ = wsResp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	expectUserCount(t, conn, 1)
	expectUserEvent(t, conn, UserEvent{Username: "alice", CurrentUsers: 1, Connected: true})
	waitForCount(t, hub, 1)
}

// TestConnectWithoutSessionRefused verifies the handshake is refused before
// any registration when no session cookie accompanies it.
func TestConnectWithoutSessionRefused(t *testing.T) {
	ts, hub := newFullServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial without session succeeded")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("dial error = %v, want bad handshake", err)
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v, want 401", resp)
	}
	_ = resp.Body.Close()

	if got := hub.CurrentUsers(); got != 0 {
		t.Errorf("user count = %d, want 0", got)
	}
}

// TestLogoutInvalidatesRealtimeAccess verifies that a logged-out session no
// longer authorizes the handshake.
func TestLogoutInvalidatesRealtimeAccess(t *testing.T) {
	ts, _ := newFullServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"bob"}, "password": {"hunter2"}}
	resp, err := client.PostForm(ts.URL+"/register", form)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = resp.Body.Close()
	cookie := sessionCookie(t, resp)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/logout", nil)
	if err != nil {
		t.Fatalf("logout request: %v", err)
	}
	req.AddCookie(cookie)
	logoutResp, err := client.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	_ = logoutResp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Cookie": {cookie.Name + "=" + cookie.Value}}
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial with logged-out session succeeded")
	}
	if wsResp == nil || wsResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v, want 401", wsResp)
	}
	_ = wsResp.Body.Close()
}

// TestWrongPasswordRefused verifies the login endpoint's refusal path.
func TestWrongPasswordRefused(t *testing.T) {
	ts, _ := newFullServer(t)
	client := noRedirectClient()

	resp, err := client.PostForm(ts.URL+"/register", url.Values{"username": {"carol"}, "password": {"pw"}})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = resp.Body.Close()

	resp, err = client.PostForm(ts.URL+"/login", url.Values{"username": {"carol"}, "password": {"nope"}})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login status = %d, want 401", resp.StatusCode)
	}
}

// TestDuplicateRegistrationConflict verifies that a taken username is
// reported as a conflict.
func TestDuplicateRegistrationConflict(t *testing.T) {
	ts, _ := newFullServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"dave"}, "password": {"pw"}}
	resp, err := client.PostForm(ts.URL+"/register", form)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = resp.Body.Close()

	resp, err = client.PostForm(ts.URL+"/register", form)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second register status = %d, want 409", resp.StatusCode)
	}
}
