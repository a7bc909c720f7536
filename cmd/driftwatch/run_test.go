package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/cmd/driftwatch/config"
	"github.com/driftwatch/driftwatch/cmd/driftwatch/metrics"
	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/fakeml"
	"github.com/driftwatch/driftwatch/pkg/scenario"
)

// Shared metrics instance; promauto registers into the default registry
// and duplicate registration panics.
var testMetrics = metrics.New()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		suite   string
		kind    string
		service client.Service
		count   int
		wantErr string
	}{
		{
			name:    "no arguments",
			args:    nil,
			wantErr: "test type is required",
		},
		{
			name: "help",
			args: []string{"help"},
			kind: "help",
		},
		{
			name: "health",
			args: []string{"health"},
			kind: "health",
		},
		{
			name:    "baseline defaults to yolo",
			args:    []string{"baseline"},
			kind:    "scenario",
			service: client.ServiceYOLO,
		},
		{
			name:    "explicit vqa service",
			args:    []string{"drift-brightness", "vqa"},
			kind:    "scenario",
			service: client.ServiceVQA,
		},
		{
			name:    "load-repeat with count",
			args:    []string{"load-repeat", "yolo", "500"},
			kind:    "scenario",
			service: client.ServiceYOLO,
			count:   500,
		},
		{
			name:    "all for vqa",
			args:    []string{"all", "vqa"},
			kind:    "all",
			service: client.ServiceVQA,
		},
		{
			name:    "unknown test type",
			args:    []string{"drift-everything"},
			wantErr: "unknown test type",
		},
		{
			name:    "unknown service",
			args:    []string{"baseline", "bert"},
			wantErr: "unknown service",
		},
		{
			name:    "confidence test rejects vqa and names yolo",
			args:    []string{"drift-confidence", "vqa"},
			wantErr: "yolo",
		},
		{
			name:    "complexity test rejects yolo and names vqa",
			args:    []string{"drift-complexity", "yolo"},
			wantErr: "vqa",
		},
		{
			name:    "bad count",
			args:    []string{"load-repeat", "yolo", "many"},
			wantErr: "count must be a positive integer",
		},
		{
			name:  "suite file replaces test type",
			args:  nil,
			suite: "suite.yaml",
			kind:  "suite",
		},
		{
			name:    "suite plus test type conflicts",
			args:    []string{"baseline"},
			suite:   "suite.yaml",
			wantErr: "cannot combine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseArgs(tt.args, tt.suite)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if req.kind != tt.kind {
				t.Errorf("kind = %q, want %q", req.kind, tt.kind)
			}
			if tt.service != "" && req.service != tt.service {
				t.Errorf("service = %q, want %q", req.service, tt.service)
			}
			if req.count != tt.count {
				t.Errorf("count = %d, want %d", req.count, tt.count)
			}
		})
	}
}

func TestParseArgs_LoadRepeatDefaultCount(t *testing.T) {
	req, err := parseArgs([]string{"load-repeat", "yolo"}, "")
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}
	cfg, err := req.preset.Config(req.service, req.count)
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.Count != 200 {
		t.Errorf("count = %d, want default 200", cfg.Count)
	}
}

// stubBackend runs a fakeml server with tiny windows and a drift threshold
// high enough that seed variance across a handful of samples never trips it.
func stubBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := fakeml.New(fakeml.Config{ReferenceSize: 4, MinSamples: 2, DriftThreshold: 5}, testLogger())
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)
	return server
}

func TestRun_BaselineAgainstStub(t *testing.T) {
	server := stubBackend(t)
	output := filepath.Join(t.TempDir(), "results.json")
	history := filepath.Join(t.TempDir(), "runs.db")

	cfg := &config.Config{
		BackendURL:  server.URL,
		Delay:       time.Millisecond,
		OutputPath:  output,
		HistoryPath: history,
		Args:        []string{"baseline", "yolo", "8"},
	}

	if code := run(context.Background(), cfg, testLogger(), testMetrics); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("results file not written: %v", err)
	}
	var results []scenario.Result
	if err := json.Unmarshal(data, &results); err != nil {
		t.Fatalf("results file is not valid JSON: %v", err)
	}
	if len(results) != 1 || results[0].Successful != 8 {
		t.Errorf("results = %+v, want one run with 8 successes", results)
	}
}

func TestRun_HealthAgainstStub(t *testing.T) {
	server := stubBackend(t)
	cfg := &config.Config{
		BackendURL: server.URL,
		Args:       []string{"health"},
	}
	if code := run(context.Background(), cfg, testLogger(), testMetrics); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
}

func TestRun_HealthAgainstDeadBackend(t *testing.T) {
	cfg := &config.Config{
		BackendURL: "http://127.0.0.1:1",
		Args:       []string{"health"},
	}
	if code := run(context.Background(), cfg, testLogger(), testMetrics); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

func TestRun_InvalidArgsExitCode(t *testing.T) {
	cfg := &config.Config{
		BackendURL: "http://localhost:8000",
		Args:       []string{"drift-confidence", "vqa"},
	}
	if code := run(context.Background(), cfg, testLogger(), testMetrics); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

func TestRun_SuiteAgainstStub(t *testing.T) {
	server := stubBackend(t)

	suitePath := filepath.Join(t.TempDir(), "suite.yaml")
	plan := `
version: 1
defaults:
  service: yolo
  delay_ms: 1
runs:
  - scenario: baseline
    count: 6
  - scenario: load-identical
    count: 4
`
	if err := os.WriteFile(suitePath, []byte(plan), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		BackendURL: server.URL,
		SuitePath:  suitePath,
	}
	if code := run(context.Background(), cfg, testLogger(), testMetrics); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
}
