// Package scenario implements the drift test scenarios driftwatch runs
// against the ML inference backend.
//
// A scenario is an ordered, single-threaded sequence of HTTP calls: health
// check, optional reference reset, then an image batch submitted with a
// fixed delay and periodic drift status polls, finishing with a final drift
// status and optional Prometheus assertion. There is no retry or backoff;
// the first failure aborts the run.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/pkg/adapters"
	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/imagegen"
)

// Expectation states what the scenario asserts about the final drift status.
type Expectation int

const (
	// ExpectIgnore skips the drift assertion (pure load scenarios).
	ExpectIgnore Expectation = iota
	// ExpectNoDrift fails the run if dataset drift is flagged.
	ExpectNoDrift
	// ExpectDrift fails the run unless dataset drift is flagged.
	ExpectDrift
)

func (e Expectation) String() string {
	switch e {
	case ExpectNoDrift:
		return "no-drift"
	case ExpectDrift:
		return "drift"
	default:
		return "ignore"
	}
}

// Config describes one scenario run.
type Config struct {
	Name        string
	Description string
	Service     client.Service

	// Count is the number of images to submit.
	Count int
	// Delay is the fixed sleep between requests.
	Delay time.Duration
	// CheckDriftEvery polls drift status after every N requests. <= 0
	// disables the periodic poll.
	CheckDriftEvery int
	// ResetReference resets the detector baseline before submitting.
	ResetReference bool

	// Images shapes the image submitted at index i.
	Images func(i int) imagegen.Options
	// Questions are cycled round-robin for VQA submissions.
	Questions []string

	Expect Expectation
}

// Validate checks the config before a run.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if !c.Service.Valid() {
		return fmt.Errorf("unknown service %q", c.Service)
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.Images == nil {
		return fmt.Errorf("scenario %q has no image workload", c.Name)
	}
	if c.Service == client.ServiceVQA && len(c.Questions) == 0 {
		return fmt.Errorf("vqa scenario %q has no questions", c.Name)
	}
	return nil
}

// DriftGauge returns the backend's dataset drift gauge name for the service.
func (c Config) DriftGauge() string {
	if c.Service == client.ServiceVQA {
		return "vqa_evidently_dataset_drift"
	}
	return "evidently_dataset_drift"
}

// RequestResult records one submitted image.
type RequestResult struct {
	Index     int           `json:"index"`
	Image     string        `json:"image"`
	Latency   time.Duration `json:"latency"`
	Objects   int           `json:"objects,omitempty"`
	Answer    string        `json:"answer,omitempty"`
	Question  string        `json:"question,omitempty"`
	DriftSeen bool          `json:"drift_seen"`
}

// Result is the outcome of a scenario run.
type Result struct {
	RunID     string        `json:"run_id"`
	Scenario  string        `json:"scenario"`
	Service   string        `json:"service"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	AvgLatency time.Duration `json:"avg_latency"`
	MaxLatency time.Duration `json:"max_latency"`

	// Workload feature summary as reported by the backend.
	MeanBrightness float64 `json:"mean_brightness"`
	MeanObjects    float64 `json:"mean_objects,omitempty"`
	MeanConfidence float64 `json:"mean_confidence,omitempty"`
	MeanInference  float64 `json:"mean_inference_time,omitempty"`

	DriftDetected bool     `json:"drift_detected"`
	DriftShare    float64  `json:"drift_share"`
	GaugeValue    *float64 `json:"gauge_value,omitempty"`

	FinalStatus *client.DriftStatus `json:"final_status,omitempty"`
	Requests    []RequestResult     `json:"requests"`
}

// Metrics is the subset of runner instrumentation the engine records into.
// A nil Metrics is valid and records nothing.
type Metrics interface {
	RecordRequest(service string, ok bool)
	ObserveRequestDuration(service string, seconds float64)
	RecordDriftCheck(service string)
	SetDriftDetected(service string, detected bool)
}

// Engine executes one scenario against one backend service.
type Engine struct {
	cfg     Config
	client  *client.MLClient
	prom    *adapters.PrometheusAdapter
	metrics Metrics
	logger  *slog.Logger
}

// New creates an Engine. prom and metrics are optional; a nil prom skips
// the Prometheus assertion, a nil metrics skips instrumentation.
func New(cfg Config, mlClient *client.MLClient, prom *adapters.PrometheusAdapter, metrics Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		client:  mlClient,
		prom:    prom,
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes the scenario. It returns a non-nil Result together with an
// error when the run itself completed but an expectation failed.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("starting scenario",
		"scenario", e.cfg.Name,
		"service", e.cfg.Service,
		"count", e.cfg.Count,
		"delay", e.cfg.Delay,
		"expect", e.cfg.Expect.String(),
	)

	result := &Result{
		RunID:     uuid.NewString(),
		Scenario:  e.cfg.Name,
		Service:   string(e.cfg.Service),
		StartTime: time.Now(),
		Total:     e.cfg.Count,
	}

	if err := e.setup(ctx); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	if err := e.submitBatch(ctx, result); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	if err := e.finish(ctx, result); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	err := e.checkExpectation(result)

	e.logger.Info("scenario complete",
		"scenario", e.cfg.Name,
		"successful", result.Successful,
		"failed", result.Failed,
		"drift_detected", result.DriftDetected,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, err
}

// setup verifies the backend is healthy and optionally resets the detector
// reference baseline.
func (e *Engine) setup(ctx context.Context) error {
	health, err := e.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	e.logger.Info("backend healthy",
		"service", e.cfg.Service,
		"model", health.Model.Name,
		"reference_samples", health.DriftDetector.ReferenceSamples,
		"current_samples", health.DriftDetector.CurrentSamples,
	)

	if e.cfg.ResetReference {
		if err := e.client.ResetReference(ctx); err != nil {
			return fmt.Errorf("reset reference: %w", err)
		}
		e.logger.Info("reference baseline reset", "service", e.cfg.Service)
	}
	return nil
}

// submitBatch drives the image loop: generate, submit, poll, sleep.
func (e *Engine) submitBatch(ctx context.Context, result *Result) error {
	var (
		sumLatency   time.Duration
		sumBright    float64
		sumObjects   float64
		sumConf      float64
		sumInference float64
	)

	for i := 0; i < e.cfg.Count; i++ {
		opts := e.cfg.Images(i)
		image, err := imagegen.Generate(opts)
		if err != nil {
			return fmt.Errorf("generate image %d: %w", i, err)
		}
		filename := fmt.Sprintf("%s-%04d.jpg", e.cfg.Name, i)

		req, err := e.submitOne(ctx, i, filename, image)
		if e.metrics != nil {
			e.metrics.RecordRequest(string(e.cfg.Service), err == nil)
		}
		if err != nil {
			result.Failed++
			return fmt.Errorf("request %d/%d: %w", i+1, e.cfg.Count, err)
		}
		result.Successful++
		result.Requests = append(result.Requests, req.RequestResult)

		sumLatency += req.Latency
		if req.Latency > result.MaxLatency {
			result.MaxLatency = req.Latency
		}
		if e.metrics != nil {
			e.metrics.ObserveRequestDuration(string(e.cfg.Service), req.Latency.Seconds())
		}

		switch e.cfg.Service {
		case client.ServiceYOLO:
			sumObjects += float64(req.Objects)
			sumBright += req.brightness
			sumConf += req.confidence
		case client.ServiceVQA:
			sumBright += req.brightness
			sumInference += req.inference
		}

		if e.cfg.CheckDriftEvery > 0 && (i+1)%e.cfg.CheckDriftEvery == 0 {
			if err := e.pollDrift(ctx, i+1); err != nil {
				return err
			}
		}

		if i < e.cfg.Count-1 && e.cfg.Delay > 0 {
			if err := sleep(ctx, e.cfg.Delay); err != nil {
				return err
			}
		}
	}

	if result.Successful > 0 {
		n := float64(result.Successful)
		result.AvgLatency = sumLatency / time.Duration(result.Successful)
		result.MeanBrightness = sumBright / n
		if e.cfg.Service == client.ServiceYOLO {
			result.MeanObjects = sumObjects / n
			result.MeanConfidence = sumConf / n
		} else {
			result.MeanInference = sumInference / n
		}
	}
	return nil
}

// requestOutcome extends RequestResult with backend features not exported
// in the per-request record.
type requestOutcome struct {
	RequestResult
	brightness float64
	confidence float64
	inference  float64
}

func (e *Engine) submitOne(ctx context.Context, i int, filename string, image []byte) (*requestOutcome, error) {
	start := time.Now()

	switch e.cfg.Service {
	case client.ServiceYOLO:
		res, err := e.client.Detect(ctx, filename, image)
		if err != nil {
			return nil, err
		}
		latency := time.Since(start)
		e.logger.Debug("image submitted",
			"index", i,
			"image", filename,
			"objects", res.TotalObjects,
			"brightness", res.Brightness,
			"latency_ms", latency.Milliseconds(),
		)
		return &requestOutcome{
			RequestResult: RequestResult{
				Index:     i,
				Image:     filename,
				Latency:   latency,
				Objects:   res.TotalObjects,
				DriftSeen: res.EvidentlyDrift.DatasetDrift,
			},
			brightness: res.Brightness,
			confidence: res.AvgConfidence,
		}, nil

	case client.ServiceVQA:
		question := e.cfg.Questions[i%len(e.cfg.Questions)]
		res, err := e.client.Answer(ctx, filename, image, question, client.DefaultAnswerOptions())
		if err != nil {
			return nil, err
		}
		latency := time.Since(start)
		e.logger.Debug("question submitted",
			"index", i,
			"image", filename,
			"question", question,
			"answer", res.Answer,
			"latency_ms", latency.Milliseconds(),
		)
		return &requestOutcome{
			RequestResult: RequestResult{
				Index:     i,
				Image:     filename,
				Latency:   latency,
				Answer:    res.Answer,
				Question:  question,
				DriftSeen: res.EvidentlyDrift.DatasetDrift,
			},
			brightness: res.Features.Brightness,
			inference:  res.InferenceTime,
		}, nil
	}

	return nil, fmt.Errorf("unknown service %q", e.cfg.Service)
}

// pollDrift logs the detector state mid-run.
func (e *Engine) pollDrift(ctx context.Context, after int) error {
	status, err := e.client.DriftStatus(ctx)
	if err != nil {
		return fmt.Errorf("drift status after %d requests: %w", after, err)
	}
	if e.metrics != nil {
		e.metrics.RecordDriftCheck(string(e.cfg.Service))
	}

	if !status.Sufficient() {
		e.logger.Info("drift check",
			"after", after,
			"status", status.Status,
		)
		return nil
	}

	e.logger.Info("drift check",
		"after", after,
		"dataset_drift", status.DriftDetection.DatasetDrift,
		"drift_share", status.DriftDetection.DriftShare,
		"drifted_features", status.DriftDetection.NumDriftedFeatures,
	)
	return nil
}

// finish captures the final drift status and the Prometheus gauge when a
// Prometheus endpoint is configured.
func (e *Engine) finish(ctx context.Context, result *Result) error {
	status, err := e.client.DriftStatus(ctx)
	if err != nil {
		return fmt.Errorf("final drift status: %w", err)
	}
	result.FinalStatus = status

	if status.Sufficient() {
		result.DriftDetected = status.DriftDetection.DatasetDrift
		result.DriftShare = status.DriftDetection.DriftShare
	}
	if e.metrics != nil {
		e.metrics.SetDriftDetected(string(e.cfg.Service), result.DriftDetected)
	}

	if e.cfg.Expect != ExpectIgnore {
		summary, err := e.client.DriftSummary(ctx)
		if err != nil {
			return fmt.Errorf("drift summary: %w", err)
		}
		quality, err := e.client.DataQuality(ctx)
		if err != nil {
			return fmt.Errorf("data quality: %w", err)
		}
		e.logger.Debug("detector statistics",
			"summary", summary.Statistics,
			"data_quality", quality.DataQuality,
		)
	}

	if e.prom != nil && e.cfg.Expect != ExpectIgnore {
		value, err := e.prom.QueryScalar(ctx, e.cfg.DriftGauge())
		if err != nil {
			return fmt.Errorf("query %s: %w", e.cfg.DriftGauge(), err)
		}
		result.GaugeValue = &value
	}
	return nil
}

// checkExpectation compares the observed drift outcome with the scenario
// expectation. The Prometheus gauge, when captured, must agree with the
// backend's own status.
func (e *Engine) checkExpectation(result *Result) error {
	switch e.cfg.Expect {
	case ExpectDrift:
		if !result.DriftDetected {
			return fmt.Errorf("scenario %q expected dataset drift, none detected", e.cfg.Name)
		}
		if result.GaugeValue != nil && *result.GaugeValue != 1 {
			return fmt.Errorf("scenario %q: %s = %v, want 1", e.cfg.Name, e.cfg.DriftGauge(), *result.GaugeValue)
		}
	case ExpectNoDrift:
		if result.DriftDetected {
			return fmt.Errorf("scenario %q expected no drift, dataset drift detected (share %.2f)", e.cfg.Name, result.DriftShare)
		}
		if result.GaugeValue != nil && *result.GaugeValue != 0 {
			return fmt.Errorf("scenario %q: %s = %v, want 0", e.cfg.Name, e.cfg.DriftGauge(), *result.GaugeValue)
		}
	}
	return nil
}

// Report formats the result for terminal output.
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario %s (%s)\n", r.Scenario, r.Service)
	fmt.Fprintf(&b, "  run id:      %s\n", r.RunID)
	fmt.Fprintf(&b, "  duration:    %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  requests:    %d total, %d ok, %d failed\n", r.Total, r.Successful, r.Failed)
	fmt.Fprintf(&b, "  latency:     avg %v, max %v\n",
		r.AvgLatency.Round(time.Millisecond), r.MaxLatency.Round(time.Millisecond))
	fmt.Fprintf(&b, "  brightness:  %.1f mean\n", r.MeanBrightness)
	if r.Service == string(client.ServiceYOLO) {
		fmt.Fprintf(&b, "  objects:     %.1f mean (confidence %.2f)\n", r.MeanObjects, r.MeanConfidence)
	} else {
		fmt.Fprintf(&b, "  inference:   %.3fs mean\n", r.MeanInference)
	}
	if r.DriftDetected {
		fmt.Fprintf(&b, "  drift:       DETECTED (share %.0f%%)\n", r.DriftShare*100)
	} else {
		fmt.Fprintf(&b, "  drift:       none\n")
	}
	if r.GaugeValue != nil {
		fmt.Fprintf(&b, "  prometheus:  drift gauge = %v\n", *r.GaugeValue)
	}
	return b.String()
}

// sleep waits for d or until ctx is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
