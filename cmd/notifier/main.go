package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"workshop_notifier/internal/config"
	"workshop_notifier/internal/delivery"
	"workshop_notifier/internal/ledger"
	"workshop_notifier/internal/runner"
	"workshop_notifier/internal/steam"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	var store ledger.Store
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err = ledger.NewSQLite(cfg.Storage.Path)
		if err != nil {
			log.Error("open ledger database", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
	default:
		store = ledger.NewFile(cfg.Storage.Path, log)
	}
	defer func() { _ = store.Close() }()

	catalog := steam.New(http.DefaultClient, cfg.APIKey, cfg.FetchWindow)
	sender := delivery.NewWebhookSender(http.DefaultClient)

	r := runner.New(store, catalog, sender, cfg.ChannelList(), cfg.FetchWindow, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
