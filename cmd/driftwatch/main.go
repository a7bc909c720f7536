package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftwatch/driftwatch/cmd/driftwatch/config"
	"github.com/driftwatch/driftwatch/cmd/driftwatch/logger"
	"github.com/driftwatch/driftwatch/cmd/driftwatch/metrics"
	"github.com/driftwatch/driftwatch/cmd/driftwatch/router"
	"github.com/driftwatch/driftwatch/pkg/httpx"
)

func main() {
	cfg := config.ParseFlags()
	log := logger.New(cfg)
	m := metrics.New()

	log.Info("starting driftwatch",
		"backend_url", cfg.BackendURL,
		"prometheus_url", cfg.PrometheusURL,
		"args", cfg.Args,
	)

	// Optional auxiliary server so long runs expose /healthz and /metrics.
	var aux *httpx.Server
	if cfg.Listen != "" {
		mux := router.SetupRoutes(log)
		aux = httpx.NewServer(cfg.Listen, mux, log)
		go func() {
			log.Info("auxiliary server listening", "address", cfg.Listen)
			if err := aux.Start(); err != nil {
				log.Error("auxiliary server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, log, m)
	stop()

	if aux != nil {
		log.Info("shutting down auxiliary server")
		if err := aux.Stop(5 * time.Second); err != nil {
			log.Error("auxiliary server shutdown error", "error", err)
		}
	}

	os.Exit(code)
}
