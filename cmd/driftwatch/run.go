package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/driftwatch/driftwatch/cmd/driftwatch/config"
	"github.com/driftwatch/driftwatch/cmd/driftwatch/metrics"
	"github.com/driftwatch/driftwatch/pkg/adapters"
	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/history"
	"github.com/driftwatch/driftwatch/pkg/scenario"
	"github.com/driftwatch/driftwatch/pkg/suite"
)

const usage = `Usage: driftwatch [flags] <test_type> [service] [count]

Test types:
  baseline          normal images, rebuilds the drift reference
  drift-brightness  dark images (yolo, vqa)
  drift-confidence  noisy images (yolo only)
  drift-density     crowded images (yolo only)
  drift-complexity  long questions (vqa only)
  load-identical    one repeated image
  load-similar      near-identical images
  load-repeat       cycled image set, default 200 requests
  all               baseline plus every drift test for the service
  health            check both backend services
  help              show this message

Services: yolo (default), vqa

Run 'driftwatch -h' for flags.
`

// request is the parsed positional command.
type request struct {
	kind    string // "help", "health", "all", "suite", "scenario"
	preset  scenario.Preset
	service client.Service
	count   int
}

// parseArgs interprets the positional arguments. A configured suite file
// replaces the positional test type.
func parseArgs(args []string, suitePath string) (request, error) {
	if suitePath != "" {
		if len(args) > 0 {
			return request{}, fmt.Errorf("cannot combine -suite with a test type argument")
		}
		return request{kind: "suite"}, nil
	}

	if len(args) == 0 {
		return request{}, fmt.Errorf("test type is required")
	}

	testType := args[0]
	switch testType {
	case "help":
		return request{kind: "help"}, nil
	case "health":
		return request{kind: "health"}, nil
	}

	service := client.ServiceYOLO
	if len(args) > 1 {
		service = client.Service(args[1])
		if !service.Valid() {
			return request{}, fmt.Errorf("unknown service %q (valid: yolo, vqa)", args[1])
		}
	}

	count := 0
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return request{}, fmt.Errorf("count must be a positive integer, got %q", args[2])
		}
		count = n
	}

	if testType == "all" {
		return request{kind: "all", service: service, count: count}, nil
	}

	preset, ok := scenario.GetPreset(testType)
	if !ok {
		return request{}, fmt.Errorf("unknown test type %q, see 'driftwatch help'", testType)
	}
	if !preset.Supports(service) {
		return request{}, fmt.Errorf("test %q does not support service %q (valid: %s)",
			testType, service, preset.ServiceNames())
	}

	return request{kind: "scenario", preset: preset, service: service, count: count}, nil
}

// runner holds the wiring shared by all commands.
type runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	prom    *adapters.PrometheusAdapter
	store   history.Store
	results []*scenario.Result
}

// run executes the parsed command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) int {
	req, err := parseArgs(cfg.Args, cfg.SuitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	if req.kind == "help" {
		fmt.Print(usage)
		return 0
	}

	store, err := openHistory(cfg)
	if err != nil {
		logger.Error("failed to open run history", "error", err)
		return 1
	}
	defer store.Close()

	r := &runner{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   store,
	}
	if cfg.PrometheusURL != "" {
		r.prom = &adapters.PrometheusAdapter{ServerURL: cfg.PrometheusURL}
	}

	var failed bool
	switch req.kind {
	case "health":
		failed = !r.runHealth(ctx)
	case "suite":
		failed = !r.runSuite(ctx)
	case "all":
		failed = !r.runAll(ctx, req.service)
	case "scenario":
		cfg, err := req.preset.Config(req.service, req.count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		_, err = r.runScenario(ctx, cfg)
		failed = err != nil
	}

	if err := r.writeOutput(); err != nil {
		r.logger.Error("failed to write results", "error", err)
		failed = true
	}

	if failed {
		return 1
	}
	return 0
}

func openHistory(cfg *config.Config) (history.Store, error) {
	if cfg.HistoryPath == "" {
		return history.NewMemoryStore(), nil
	}
	return history.NewSQLiteStore(cfg.HistoryPath)
}

// runHealth checks both backend services and reports their state.
func (r *runner) runHealth(ctx context.Context) bool {
	ok := true
	for _, service := range []client.Service{client.ServiceYOLO, client.ServiceVQA} {
		cli := client.NewMLClientWithTimeout(r.cfg.BackendURL, service, r.cfg.Timeout)
		health, err := cli.Health(ctx)
		if err != nil {
			fmt.Printf("%-5s unhealthy: %v\n", service, err)
			r.logger.Error("health check failed", "service", service, "error", err)
			ok = false
			continue
		}
		fmt.Printf("%-5s %s (model %s, reference %d, current %d)\n",
			service, health.Status, health.Model.Name,
			health.DriftDetector.ReferenceSamples, health.DriftDetector.CurrentSamples)

		if info, err := cli.ModelInfo(ctx); err == nil {
			r.logger.Info("model info", "service", service, "info", info)
		}
	}
	return ok
}

// runAll executes the baseline and every drift scenario for the service,
// stopping at the first failure.
func (r *runner) runAll(ctx context.Context, service client.Service) bool {
	for _, name := range scenario.DriftSuite(service) {
		preset, ok := scenario.GetPreset(name)
		if !ok {
			r.logger.Error("unknown scenario in suite", "scenario", name)
			return false
		}
		cfg, err := preset.Config(service, 0)
		if err != nil {
			r.logger.Error("cannot build scenario", "scenario", name, "error", err)
			return false
		}
		if _, err := r.runScenario(ctx, cfg); err != nil {
			return false
		}
	}
	return true
}

// runSuite executes the configured YAML plan in order, stopping at the
// first failure.
func (r *runner) runSuite(ctx context.Context) bool {
	s, err := suite.Load(r.cfg.SuitePath)
	if err != nil {
		r.logger.Error("failed to load suite", "path", r.cfg.SuitePath, "error", err)
		return false
	}
	configs, err := s.Resolve()
	if err != nil {
		r.logger.Error("failed to resolve suite", "path", r.cfg.SuitePath, "error", err)
		return false
	}

	r.logger.Info("running suite", "path", r.cfg.SuitePath, "runs", len(configs))
	for _, cfg := range configs {
		if _, err := r.runScenario(ctx, cfg); err != nil {
			return false
		}
	}
	return true
}

// runScenario executes one scenario, records the outcome, and prints the
// report.
func (r *runner) runScenario(ctx context.Context, cfg scenario.Config) (*scenario.Result, error) {
	// CLI pacing flags override the scenario defaults.
	if r.cfg.Delay > 0 {
		cfg.Delay = r.cfg.Delay
	}
	if r.cfg.CheckDrift > 0 {
		cfg.CheckDriftEvery = r.cfg.CheckDrift
	}

	cli := client.NewMLClientWithTimeout(r.cfg.BackendURL, cfg.Service, r.cfg.Timeout)
	engine := scenario.New(cfg, cli, r.prom, r.metrics, r.logger)

	result, runErr := engine.Run(ctx)
	if result != nil {
		r.results = append(r.results, result)
		r.metrics.RecordScenarioRun(cfg.Name, runErr == nil)
		if err := r.store.Put(ctx, history.FromResult(result, runErr)); err != nil {
			r.logger.Error("failed to record run", "run_id", result.RunID, "error", err)
		}
		fmt.Print(result.Report())
	}

	if runErr != nil {
		r.logger.Error("scenario failed", "scenario", cfg.Name, "error", runErr)
		return result, runErr
	}
	return result, nil
}

// writeOutput dumps the collected results as JSON when -output is set.
func (r *runner) writeOutput() error {
	if r.cfg.OutputPath == "" || len(r.results) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(r.cfg.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", r.cfg.OutputPath, err)
	}
	r.logger.Info("results written", "path", r.cfg.OutputPath, "runs", len(r.results))
	return nil
}
