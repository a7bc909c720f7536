package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/driftwatch/driftwatch/pkg/adapters"
	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/suite"
)

// options are the environment facts the validator verifies before a test
// run is attempted.
type options struct {
	BackendURL    string
	PrometheusURL string
	GrafanaURL    string
	SuitePath     string
	OutputDir     string
	Timeout       time.Duration
}

// check is one named validation outcome. Err is nil on success.
type check struct {
	Name string
	Err  error
}

// runChecks verifies the configured environment. Optional targets (suite,
// output dir, Prometheus, Grafana) are only checked when set; the backend
// services are always checked.
func runChecks(ctx context.Context, opts options) []check {
	var checks []check

	if opts.SuitePath != "" {
		checks = append(checks, check{"suite file", checkSuite(opts.SuitePath)})
	}
	if opts.OutputDir != "" {
		checks = append(checks, check{"output dir", checkWritable(opts.OutputDir)})
	}

	for _, service := range []client.Service{client.ServiceYOLO, client.ServiceVQA} {
		name := fmt.Sprintf("backend %s", service)
		checks = append(checks, check{name, checkBackend(ctx, opts, service)})
	}

	if opts.PrometheusURL != "" {
		prom := &adapters.PrometheusAdapter{ServerURL: opts.PrometheusURL}
		checks = append(checks, check{"prometheus", prom.Healthy(ctx)})
	}
	if opts.GrafanaURL != "" {
		checks = append(checks, check{"grafana", checkGrafana(ctx, opts)})
	}

	return checks
}

func checkSuite(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("suite file missing: %w", err)
	}
	if _, err := suite.Load(path); err != nil {
		return err
	}
	return nil
}

// checkWritable probes the directory with a scratch file.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output dir missing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".driftwatch-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	return os.Remove(probe)
}

func checkBackend(ctx context.Context, opts options, service client.Service) error {
	cli := client.NewMLClientWithTimeout(opts.BackendURL, service, opts.Timeout)
	health, err := cli.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("status %q", health.Status)
	}
	return nil
}

func checkGrafana(ctx context.Context, opts options) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.GrafanaURL+"/api/health", nil)
	if err != nil {
		return err
	}

	cli := &http.Client{Timeout: opts.Timeout}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grafana unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
