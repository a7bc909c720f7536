// Command driftwatch-validate verifies that a driftwatch environment is
// ready: backend services healthy, suite file parseable, output directory
// writable, and the optional monitoring stack reachable. It exits non-zero
// when any check fails, so it slots into CI and compose healthchecks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	opts := options{}
	flag.StringVar(&opts.BackendURL, "url", getEnv("BACKEND_URL", "http://localhost:8000"), "ML backend base URL")
	flag.StringVar(&opts.PrometheusURL, "prom-url", getEnv("PROMETHEUS_URL", ""), "Prometheus base URL (optional)")
	flag.StringVar(&opts.GrafanaURL, "grafana-url", getEnv("GRAFANA_URL", ""), "Grafana base URL (optional)")
	flag.StringVar(&opts.SuitePath, "suite", getEnv("SUITE_FILE", ""), "Suite file to validate (optional)")
	flag.StringVar(&opts.OutputDir, "output-dir", getEnv("OUTPUT_DIR", ""), "Directory test results are written to (optional)")
	flag.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Per-check timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	checks := runChecks(ctx, opts)

	failed := 0
	for _, c := range checks {
		if c.Err != nil {
			failed++
			fmt.Printf("FAIL  %-12s %v\n", c.Name, c.Err)
		} else {
			fmt.Printf("ok    %s\n", c.Name)
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d checks failed\n", failed, len(checks))
		os.Exit(1)
	}
	fmt.Printf("\nall %d checks passed\n", len(checks))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
