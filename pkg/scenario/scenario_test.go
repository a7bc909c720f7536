package scenario

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/fakeml"
	"github.com/driftwatch/driftwatch/pkg/imagegen"
)

// startStub runs a fakeml backend with small detector windows so scenarios
// need only a handful of samples.
func startStub(t *testing.T) *httptest.Server {
	t.Helper()
	backend := fakeml.New(fakeml.Config{ReferenceSize: 5, MinSamples: 3}, nil)
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)
	return server
}

// baselineConfig submits a byte-identical image so the tiny test windows
// see zero feature variance.
func baselineConfig(service client.Service, count int) Config {
	return Config{
		Name:            "baseline",
		Service:         service,
		Count:           count,
		CheckDriftEvery: 5,
		ResetReference:  true,
		Images:          func(i int) imagegen.Options { return imagegen.Baseline(0) },
		Questions:       SimpleQuestions[:2],
		Expect:          ExpectNoDrift,
	}
}

type recordingMetrics struct {
	requests    int
	failures    int
	durations   int
	driftChecks int
	driftSet    bool
	detected    bool
}

func (m *recordingMetrics) RecordRequest(service string, ok bool) {
	m.requests++
	if !ok {
		m.failures++
	}
}
func (m *recordingMetrics) ObserveRequestDuration(service string, seconds float64) { m.durations++ }
func (m *recordingMetrics) RecordDriftCheck(service string)                        { m.driftChecks++ }
func (m *recordingMetrics) SetDriftDetected(service string, detected bool) {
	m.driftSet = true
	m.detected = detected
}

func TestEngine_BaselineRun(t *testing.T) {
	server := startStub(t)
	cli := client.NewMLClient(server.URL, client.ServiceYOLO)
	metrics := &recordingMetrics{}

	engine := New(baselineConfig(client.ServiceYOLO, 10), cli, nil, metrics, nil)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Successful != 10 || result.Failed != 0 {
		t.Errorf("successful=%d failed=%d, want 10/0", result.Successful, result.Failed)
	}
	if result.DriftDetected {
		t.Error("baseline run flagged drift")
	}
	if result.RunID == "" {
		t.Error("missing run id")
	}
	if result.FinalStatus == nil || !result.FinalStatus.Sufficient() {
		t.Error("expected sufficient final drift status")
	}
	if result.MeanObjects <= 0 {
		t.Errorf("MeanObjects = %v, want > 0", result.MeanObjects)
	}
	if len(result.Requests) != 10 {
		t.Errorf("recorded %d requests, want 10", len(result.Requests))
	}

	if metrics.requests != 10 || metrics.failures != 0 {
		t.Errorf("metrics requests=%d failures=%d, want 10/0", metrics.requests, metrics.failures)
	}
	if metrics.driftChecks != 2 {
		t.Errorf("drift checks = %d, want 2", metrics.driftChecks)
	}
	if !metrics.driftSet || metrics.detected {
		t.Errorf("drift gauge set=%v detected=%v, want set, not detected", metrics.driftSet, metrics.detected)
	}
}

func TestEngine_DetectsBrightnessDrift(t *testing.T) {
	server := startStub(t)
	cli := client.NewMLClient(server.URL, client.ServiceYOLO)

	// Build the reference with a normal batch first.
	warm := New(baselineConfig(client.ServiceYOLO, 10), cli, nil, nil, nil)
	if _, err := warm.Run(context.Background()); err != nil {
		t.Fatalf("warmup Run() error = %v", err)
	}

	drift := New(Config{
		Name:    "drift-brightness",
		Service: client.ServiceYOLO,
		Count:   5,
		Images:  func(i int) imagegen.Options { return imagegen.Dark(int64(i)) },
		Expect:  ExpectDrift,
	}, cli, nil, nil, nil)

	result, err := drift.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.DriftDetected {
		t.Fatal("dark batch did not trigger drift")
	}
	if result.DriftShare <= 0 {
		t.Errorf("DriftShare = %v, want > 0", result.DriftShare)
	}
}

func TestEngine_VQARun(t *testing.T) {
	server := startStub(t)
	cli := client.NewMLClient(server.URL, client.ServiceVQA)

	engine := New(baselineConfig(client.ServiceVQA, 8), cli, nil, nil, nil)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Successful != 8 {
		t.Errorf("successful = %d, want 8", result.Successful)
	}
	// Questions cycle round-robin through the configured list.
	if result.Requests[0].Question != SimpleQuestions[0] {
		t.Errorf("question[0] = %q, want %q", result.Requests[0].Question, SimpleQuestions[0])
	}
	if result.Requests[1].Question != SimpleQuestions[1] {
		t.Errorf("question[1] = %q, want %q", result.Requests[1].Question, SimpleQuestions[1])
	}
	if result.Requests[0].Answer == "" {
		t.Error("empty answer recorded")
	}
	if result.MeanInference <= 0 {
		t.Errorf("MeanInference = %v, want > 0", result.MeanInference)
	}
}

func TestEngine_ExpectationFailure(t *testing.T) {
	server := startStub(t)
	cli := client.NewMLClient(server.URL, client.ServiceYOLO)

	cfg := baselineConfig(client.ServiceYOLO, 10)
	cfg.Expect = ExpectDrift

	engine := New(cfg, cli, nil, nil, nil)
	result, err := engine.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when drift expectation fails")
	}
	if !strings.Contains(err.Error(), "expected dataset drift") {
		t.Errorf("error = %v, want drift expectation message", err)
	}
	if result == nil {
		t.Fatal("result should be returned alongside the expectation error")
	}
	if result.Successful != 10 {
		t.Errorf("successful = %d, want 10", result.Successful)
	}
}

func TestEngine_FailsFastOnBackendError(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/health"):
			w.Write([]byte(`{"status":"healthy","model":{"name":"yolov8n"},"drift_detector":{}}`))
		case strings.HasSuffix(r.URL.Path, "/detect/"):
			requests++
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	cli := client.NewMLClient(server.URL, client.ServiceYOLO)
	cfg := baselineConfig(client.ServiceYOLO, 10)
	cfg.ResetReference = false

	engine := New(cfg, cli, nil, nil, nil)
	if _, err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing backend")
	}
	// No retries: the first failure aborts the batch.
	if requests != 1 {
		t.Errorf("backend saw %d detect requests, want 1", requests)
	}
}

func TestEngine_HonorsContextCancellation(t *testing.T) {
	server := startStub(t)
	cli := client.NewMLClient(server.URL, client.ServiceYOLO)

	cfg := baselineConfig(client.ServiceYOLO, 50)
	cfg.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	engine := New(cfg, cli, nil, nil, nil)
	if _, err := engine.Run(ctx); err == nil {
		t.Fatal("expected error after context timeout")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := baselineConfig(client.ServiceYOLO, 10)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"invalid service", func(c *Config) { c.Service = "bert" }},
		{"zero count", func(c *Config) { c.Count = 0 }},
		{"no workload", func(c *Config) { c.Images = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	vqaNoQuestions := baselineConfig(client.ServiceVQA, 10)
	vqaNoQuestions.Questions = nil
	if err := vqaNoQuestions.Validate(); err == nil {
		t.Error("vqa config without questions should be rejected")
	}
}

func TestConfig_DriftGauge(t *testing.T) {
	yolo := Config{Service: client.ServiceYOLO}
	if got := yolo.DriftGauge(); got != "evidently_dataset_drift" {
		t.Errorf("yolo gauge = %q", got)
	}
	vqa := Config{Service: client.ServiceVQA}
	if got := vqa.DriftGauge(); got != "vqa_evidently_dataset_drift" {
		t.Errorf("vqa gauge = %q", got)
	}
}
