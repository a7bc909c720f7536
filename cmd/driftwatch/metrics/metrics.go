// Package metrics provides Prometheus instrumentation for the driftwatch
// runner itself.
//
// The runner can serve these on an auxiliary HTTP endpoint (-listen) so
// long load runs are observable from the same Prometheus that scrapes the
// backend under test.
//
// Metrics exposed:
//   - driftwatch_requests_total: Counter of backend requests by service and status
//   - driftwatch_request_duration_seconds: Histogram of backend request durations
//   - driftwatch_drift_checks_total: Counter of drift status polls by service
//   - driftwatch_drift_detected: Gauge of the last observed drift flag per service
//   - driftwatch_scenario_runs_total: Counter of scenario runs by scenario and result
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	DriftChecksTotal *prometheus.CounterVec
	DriftDetected    *prometheus.GaugeVec
	ScenarioRuns     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_requests_total",
			Help: "Total backend requests by service and status",
		}, []string{"service", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "driftwatch_request_duration_seconds",
			Help:    "Duration of backend inference requests by service",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),

		DriftChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_drift_checks_total",
			Help: "Total drift status polls by service",
		}, []string{"service"}),

		DriftDetected: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "driftwatch_drift_detected",
			Help: "Last observed dataset drift flag per service (1=drift)",
		}, []string{"service"}),

		ScenarioRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_scenario_runs_total",
			Help: "Total scenario runs by scenario and result",
		}, []string{"scenario", "result"}),
	}
}

func (m *Metrics) RecordRequest(service string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(service, status).Inc()
}

func (m *Metrics) ObserveRequestDuration(service string, seconds float64) {
	m.RequestDuration.WithLabelValues(service).Observe(seconds)
}

func (m *Metrics) RecordDriftCheck(service string) {
	m.DriftChecksTotal.WithLabelValues(service).Inc()
}

func (m *Metrics) SetDriftDetected(service string, detected bool) {
	v := 0.0
	if detected {
		v = 1.0
	}
	m.DriftDetected.WithLabelValues(service).Set(v)
}

func (m *Metrics) RecordScenarioRun(scenario string, passed bool) {
	result := "passed"
	if !passed {
		result = "failed"
	}
	m.ScenarioRuns.WithLabelValues(scenario, result).Inc()
}
