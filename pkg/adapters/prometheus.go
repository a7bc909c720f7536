// Package adapters provides the read side of the monitoring pipeline: a
// Prometheus instant-query client and a /metrics exposition scraper.
//
// Drift scenarios assert against two sources after a run. The backend
// publishes drift gauges (evidently_dataset_drift, evidently_drift_share,
// ...) which Prometheus scrapes; PrometheusAdapter evaluates PromQL against
// the Prometheus HTTP API. When no Prometheus is deployed, the backend's
// own /metrics endpoint can be scraped directly with ExpositionScraper.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sample is one element of a Prometheus instant-query vector.
type Sample struct {
	Labels map[string]string
	Value  float64
}

// PrometheusAdapter evaluates PromQL expressions via the Prometheus HTTP
// API. It issues /api/v1/query calls and returns the resulting vector.
type PrometheusAdapter struct {
	// ServerURL is the base URL to Prometheus, e.g. http://localhost:9090
	ServerURL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusAdapter) Name() string { return "prometheus" }

// Query evaluates a PromQL expression at the current instant and returns
// the resulting samples. It respects the provided context for cancellation
// and deadlines.
func (p *PrometheusAdapter) Query(ctx context.Context, query string) ([]Sample, error) {
	if p.ServerURL == "" || query == "" {
		return nil, errors.New("prometheus adapter: ServerURL and query are required")
	}

	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}
	u.Path = "/api/v1/query"

	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	cli := p.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prometheus: status %d", resp.StatusCode)
	}

	var pr prometheusQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", err)
	}
	if pr.Status != "success" {
		return nil, fmt.Errorf("prometheus status: %s", pr.Status)
	}
	if pr.Data.ResultType != "vector" {
		return nil, fmt.Errorf("unexpected result type %q", pr.Data.ResultType)
	}

	samples := make([]Sample, 0, len(pr.Data.Result))
	for _, r := range pr.Data.Result {
		v, err := parseSampleValue(r.Value)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{Labels: r.Metric, Value: v})
	}
	return samples, nil
}

// QueryScalar evaluates a query expected to yield exactly one sample and
// returns its value. Zero or multiple samples is an error.
func (p *PrometheusAdapter) QueryScalar(ctx context.Context, query string) (float64, error) {
	samples, err := p.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(samples) != 1 {
		return 0, fmt.Errorf("query %q returned %d samples, want 1", query, len(samples))
	}
	return samples[0].Value, nil
}

// Healthy probes the Prometheus /-/healthy endpoint.
func (p *PrometheusAdapter) Healthy(ctx context.Context) error {
	if p.ServerURL == "" {
		return errors.New("prometheus adapter: ServerURL is required")
	}

	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid ServerURL: %w", err)
	}
	u.Path = "/-/healthy"

	cli := p.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prometheus unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

type prometheusQueryResponse struct {
	Status string              `json:"status"`
	Data   prometheusQueryData `json:"data"`
}

type prometheusQueryData struct {
	ResultType string                  `json:"resultType"`
	Result     []prometheusQuerySample `json:"result"`
}

type prometheusQuerySample struct {
	Metric map[string]string `json:"metric"`
	// Value is [ <unix_time_float>, "<value_string>" ]
	Value []any `json:"value"`
}

func parseSampleValue(pair []any) (float64, error) {
	if len(pair) != 2 {
		return 0, fmt.Errorf("invalid value pair length: %d", len(pair))
	}
	switch v := pair[1].(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("parse value: %w", err)
		}
		return f, nil
	case float64:
		return v, nil
	case json.Number:
		f, _ := v.Float64()
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
