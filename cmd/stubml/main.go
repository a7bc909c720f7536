// Command stubml serves a stub ML inference backend for local driftwatch
// development. It speaks the same /v1/{service} API as the real backend
// but needs no models or GPUs.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwatch/driftwatch/cmd/stubml/config"
	"github.com/driftwatch/driftwatch/pkg/fakeml"
	"github.com/driftwatch/driftwatch/pkg/httpx"
)

func main() {
	cfg := config.ParseFlags()
	log := newLogger(cfg)

	log.Info("starting stubml",
		"listen", cfg.Listen,
		"reference_size", cfg.ReferenceSize,
		"min_samples", cfg.MinSamples,
		"drift_threshold", cfg.DriftThreshold,
	)

	backend := fakeml.New(fakeml.Config{
		ReferenceSize:  cfg.ReferenceSize,
		MinSamples:     cfg.MinSamples,
		DriftThreshold: cfg.DriftThreshold,
	}, log)

	server := httpx.NewServer(cfg.Listen, backend.Handler(), log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig)

	if err := server.Stop(10 * time.Second); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	log.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
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
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
