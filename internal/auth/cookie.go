package auth

import (
	"net/http"
	"strings"
)

// CookieName is the canonical session cookie name, shared by the HTTP layer
// and the realtime handshake.
const CookieName = "parley_session"

// ReadCookie returns the trimmed session key from the request cookie when
// present.
func ReadCookie(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie == nil {
		return "", false
	}
	key := strings.TrimSpace(cookie.Value)
	if key == "" {
		return "", false
	}
	return key, true
}

// WriteCookie sets the session cookie for the current response.
func WriteCookie(w http.ResponseWriter, r *http.Request, sessionKey string) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    strings.TrimSpace(sessionKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie for the current response.
func ClearCookie(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
