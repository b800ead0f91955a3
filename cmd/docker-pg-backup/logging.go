package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shyim/docker-pg-backup/internal/notification"
)

func setupLogging(mgr *notification.Manager) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	// Errors are forwarded to every notification provider
	if mgr != nil && mgr.NotifierCount() > 0 {
		handler = notification.NewLogHandler(handler, mgr, nil)
	}

	slog.SetDefault(slog.New(handler))
}
