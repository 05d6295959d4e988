package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/parleyhq/parley/internal/model"
)

const stateCookieName = "parley_oauth_state"

// GitHubProvider exchanges an OAuth authorization code for a normalized
// profile. It is request/response glue: the realtime core only ever sees the
// resulting user identity.
type GitHubProvider struct {
	cfg oauth2.Config
	// userURL is overridable in tests; defaults to the GitHub API.
	userURL string
}

// NewGitHubProvider builds a provider from client credentials. An empty
// client ID yields a nil provider, which disables provider login.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	if clientID == "" {
		return nil
	}
	return &GitHubProvider{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
	}
}

// Begin redirects the client to the provider's consent page, binding the
// round trip with a random state cookie.
func (p *GitHubProvider) Begin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   300,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.cfg.AuthCodeURL(state), http.StatusFound)
}

// Callback validates the state cookie, exchanges the code, and fetches the
// provider profile.
func (p *GitHubProvider) Callback(r *http.Request) (model.Profile, error) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		return model.Profile{}, fmt.Errorf("%w: oauth state mismatch", ErrUnauthorized)
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return model.Profile{}, fmt.Errorf("%w: missing oauth code", ErrUnauthorized)
	}

	token, err := p.cfg.Exchange(r.Context(), code)
	if err != nil {
		return model.Profile{}, fmt.Errorf("%w: code exchange failed: %v", ErrUnauthorized, err)
	}
	return p.fetchProfile(r.Context(), token)
}

func (p *GitHubProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (model.Profile, error) {
	client := p.cfg.Client(ctx, token)
	resp, err := client.Get(p.userURL)
	if err != nil {
		return model.Profile{}, fmt.Errorf("fetch provider profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.Profile{}, fmt.Errorf("provider profile request returned %d", resp.StatusCode)
	}

	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return model.Profile{}, fmt.Errorf("decode provider profile: %w", err)
	}

	profile := model.Profile{
		ProviderID: fmt.Sprintf("%d", raw.ID),
		Username:   raw.Login,
		Name:       raw.Name,
		AvatarURL:  raw.AvatarURL,
		Email:      raw.Email,
		Provider:   "github",
	}
	if profile.Name == "" {
		profile.Name = raw.Login
	}
	if profile.Email == "" {
		profile.Email = "no public email"
	}
	return profile, nil
}
