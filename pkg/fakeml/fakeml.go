// Package fakeml implements a stub of the ML inference backend.
//
// It serves the same /v1/{service} route groups as the real backend (YOLO
// detection, VQA answering, health, model info, drift monitoring) but runs
// no models. Detection features are derived from cheap image statistics and
// drift is scored with a crude mean-shift check over sliding windows, which
// is enough for scenario development and integration tests without GPUs.
package fakeml

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwatch/driftwatch/pkg/httpx"
	"github.com/driftwatch/driftwatch/pkg/imagegen"
)

const maxUploadBytes = 8 << 20

// Config tunes the stub's drift detector windows.
type Config struct {
	// ReferenceSize is how many samples build the reference window.
	// Defaults to 100, matching the real backend.
	ReferenceSize int
	// MinSamples is how many current samples are needed before drift is
	// scored. Defaults to 50.
	MinSamples int
	// DriftThreshold is the relative mean shift that flags a feature as
	// drifted. Defaults to 0.2.
	DriftThreshold float64
}

func (c Config) withDefaults() Config {
	if c.ReferenceSize <= 0 {
		c.ReferenceSize = 100
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 50
	}
	if c.DriftThreshold <= 0 {
		c.DriftThreshold = 0.2
	}
	return c
}

// Backend is the stub server state: one drift detector per service plus a
// private metrics registry.
type Backend struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	detectors map[string]*detector

	registry  *prometheus.Registry
	inference *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a stub backend. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	registry := prometheus.NewRegistry()

	b := &Backend{
		cfg:    cfg,
		logger: logger,
		detectors: map[string]*detector{
			"yolo": newDetector(cfg, []string{"brightness", "objects", "confidence"}),
			"vqa":  newDetector(cfg, []string{"brightness", "question_length", "answer_length"}),
		},
		registry: registry,
		inference: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_count",
			Help: "Total inferences served per service.",
		}, []string{"service"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Inference latency per service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}
	registry.MustRegister(b.inference, b.latency)

	for service, d := range b.detectors {
		d.registerGauges(registry, gaugePrefix(service))
	}
	return b
}

// gaugePrefix matches the real backend's metric naming: the YOLO detector
// publishes evidently_*, the VQA detector vqa_evidently_*.
func gaugePrefix(service string) string {
	if service == "vqa" {
		return "vqa_evidently_"
	}
	return "evidently_"
}

// Handler returns the stub's route set.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/{service}/health", b.withService(b.handleHealth))
	mux.HandleFunc("GET /v1/{service}/model/info", b.withService(b.handleModelInfo))
	mux.HandleFunc("GET /v1/{service}/drift/status", b.withService(b.handleDriftStatus))
	mux.HandleFunc("GET /v1/{service}/drift/summary", b.withService(b.handleDriftSummary))
	mux.HandleFunc("GET /v1/{service}/data-quality", b.withService(b.handleDataQuality))
	mux.HandleFunc("POST /v1/{service}/drift/reset-reference", b.withService(b.handleResetReference))

	mux.HandleFunc("POST /v1/yolo/detect/", b.handleDetect)
	mux.HandleFunc("POST /v1/vqa/answer", b.handleAnswer)

	mux.Handle("GET /metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))

	return httpx.LoggingMiddleware(b.logger)(mux)
}

type serviceHandler func(w http.ResponseWriter, r *http.Request, service string, d *detector)

func (b *Backend) withService(h serviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := r.PathValue("service")
		d, ok := b.detectors[service]
		if !ok {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", service))
			return
		}
		h(w, r, service, d)
	}
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	b.mu.Lock()
	ref, cur := d.sampleCounts()
	b.mu.Unlock()

	modelName := "yolov8n"
	if service == "vqa" {
		modelName = "blip-vqa-base"
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"model":  map[string]any{"name": modelName, "loaded": true},
		"drift_detector": map[string]any{
			"reference_samples": ref,
			"current_samples":   cur,
		},
	})
}

func (b *Backend) handleModelInfo(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	if service == "vqa" {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"name":       "blip-vqa-base",
			"task":       "visual-question-answering",
			"max_length": 50,
			"num_beams":  5,
			"stub":       true,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"name":       "yolov8n",
		"task":       "object-detection",
		"classes":    len(detectionClasses),
		"image_size": 640,
		"stub":       true,
	})
}

func (b *Backend) handleDriftStatus(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	b.mu.Lock()
	report := d.report()
	b.mu.Unlock()

	if report == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "insufficient_data",
			"message": fmt.Sprintf("need at least %d current samples", b.cfg.MinSamples),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"drift_detection": report.detection(),
		"statistics":      report.statistics(),
	})
}

func (b *Backend) handleDriftSummary(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	b.mu.Lock()
	stats := d.currentStatistics()
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"statistics": stats,
	})
}

func (b *Backend) handleDataQuality(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	b.mu.Lock()
	ref, cur := d.sampleCounts()
	stats := d.currentStatistics()
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "no missing values",
		"data_quality": map[string]any{
			"reference_samples": ref,
			"current_samples":   cur,
			"features":          stats,
		},
	})
}

func (b *Backend) handleResetReference(w http.ResponseWriter, r *http.Request, service string, d *detector) {
	b.mu.Lock()
	d.reset()
	b.mu.Unlock()

	b.logger.Info("drift reference reset", "service", service)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "reference window cleared, collecting new baseline",
	})
}

var detectionClasses = []string{"person", "car", "chair", "dog", "bottle"}

func (b *Backend) handleDetect(w http.ResponseWriter, r *http.Request) {
	stats, err := b.readImage(r, "file")
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	// Fake detection features from image statistics: contrast stands in
	// for object count, noise depresses confidence.
	objects := int(stats.ContrastRatio*60 + 0.5)
	confidence := clamp01(0.92 - stats.NoiseEnergy*0.01)

	detections := make([]map[string]any, 0, objects)
	for i := 0; i < objects; i++ {
		detections = append(detections, map[string]any{
			"class":      detectionClasses[i%len(detectionClasses)],
			"confidence": clamp01(confidence - float64(i)*0.01),
		})
	}

	d := b.detectors["yolo"]
	b.mu.Lock()
	d.addSample(map[string]float64{
		"brightness": stats.MeanLuma,
		"objects":    float64(objects),
		"confidence": confidence,
	})
	drift := d.inlineDrift()
	b.mu.Unlock()

	b.inference.WithLabelValues("yolo").Inc()
	b.latency.WithLabelValues("yolo").Observe(0.02)

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"total_objects":   objects,
		"brightness":      stats.MeanLuma,
		"avg_confidence":  confidence,
		"embedding_drift": 0.0,
		"evidently_drift": drift,
		"detections":      detections,
	})
}

func (b *Backend) handleAnswer(w http.ResponseWriter, r *http.Request) {
	stats, err := b.readImage(r, "image")
	if err != nil {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "question is required")
		return
	}

	answer := answerFor(question, stats)

	d := b.detectors["vqa"]
	b.mu.Lock()
	d.addSample(map[string]float64{
		"brightness":      stats.MeanLuma,
		"question_length": float64(len(strings.Fields(question))),
		"answer_length":   float64(len(strings.Fields(answer))),
	})
	drift := d.inlineDrift()
	b.mu.Unlock()

	b.inference.WithLabelValues("vqa").Inc()
	b.latency.WithLabelValues("vqa").Observe(0.05)

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"question":       question,
		"answer":         answer,
		"inference_time": 0.05,
		"features": map[string]any{
			"brightness":      stats.MeanLuma,
			"question_type":   questionType(question),
			"question_length": len(strings.Fields(question)),
			"answer_length":   len(strings.Fields(answer)),
		},
		"evidently_drift": drift,
	})
}

// readImage pulls the uploaded image out of the multipart form and
// analyzes it.
func (b *Backend) readImage(r *http.Request, field string) (imagegen.Stats, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return imagegen.Stats{}, fmt.Errorf("parse multipart form: %w", err)
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return imagegen.Stats{}, fmt.Errorf("missing %q upload: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return imagegen.Stats{}, fmt.Errorf("read upload: %w", err)
	}
	stats, err := imagegen.Analyze(data)
	if err != nil {
		return imagegen.Stats{}, fmt.Errorf("analyze image: %w", err)
	}
	return stats, nil
}

func questionType(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.HasPrefix(q, "how many"):
		return "count"
	case strings.HasPrefix(q, "what"):
		return "what"
	case strings.HasPrefix(q, "where"):
		return "where"
	case strings.HasPrefix(q, "is ") || strings.HasPrefix(q, "are "):
		return "yes_no"
	default:
		return "other"
	}
}

func answerFor(question string, stats imagegen.Stats) string {
	switch questionType(question) {
	case "count":
		return fmt.Sprintf("%d", int(stats.ContrastRatio*60+0.5))
	case "where":
		return "a synthetic test scene"
	case "yes_no":
		return "yes"
	default:
		if stats.MeanLuma < 80 {
			return "a dark grayscale scene with rectangles"
		}
		return "a grayscale scene with rectangles"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
