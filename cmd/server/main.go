package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/server"
	"github.com/parleyhq/parley/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		slog.Error("failed to configure logging", "err", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	if cfg.SeedUsersFile != "" {
		if err := st.SeedUsersFromYAML(context.Background(), cfg.SeedUsersFile); err != nil {
			slog.Error("failed to seed users", "path", cfg.SeedUsersFile, "err", err)
			os.Exit(1)
		}
	}

	sessions := auth.NewService(st, cfg.SessionTTL)
	github := auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)
	if github == nil {
		slog.Info("github login disabled; no client id configured")
	}

	hub := server.NewHub()
	go hub.Run()

	handler := server.NewHandler(hub, sessions, github, cfg.AllowedOrigins, cfg.MaxMessageSize)
	httpServer := server.CreateServer(cfg.Addr, handler.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
		}
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		slog.Warn("http shutdown incomplete", "err", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		slog.Warn("hub shutdown incomplete", "err", err)
	}
}
