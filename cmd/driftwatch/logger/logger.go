// Package logger provides structured logging configuration for driftwatch.
//
// It creates slog.Logger instances configured according to the CLI's Config,
// supporting both text and JSON output formats, and configurable log levels
// (debug, info, warn, error).
package logger

import (
	"log/slog"
	"os"

	"github.com/driftwatch/driftwatch/cmd/driftwatch/config"
)

func New(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so stdout stays clean for reports and JSON output.
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
