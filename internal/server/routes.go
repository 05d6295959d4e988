package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes configures and returns the application router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.ChatPage)
	r.Get("/healthz", h.Health)
	r.Get("/ws", h.ServeWS)

	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)

	if h.github != nil {
		r.Get("/auth/github", h.GitHubBegin)
		r.Get("/auth/github/callback", h.GitHubCallback)
	}

	return r
}
