// Package router configures HTTP routes for driftwatch's auxiliary server.
//
// When the CLI runs with -listen, it serves health checks and Prometheus
// metrics so long-running load scenarios can be scraped and supervised.
//
// Routes configured:
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
package router

import (
	"log/slog"
	"net/http"

	"github.com/driftwatch/driftwatch/pkg/httpx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures HTTP routes for the auxiliary server
func SetupRoutes(logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
