package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// ExpositionScraper fetches a /metrics endpoint and parses the Prometheus
// text exposition format. It talks to the backend directly, so drift gauges
// can be asserted without a Prometheus server in the loop.
type ExpositionScraper struct {
	// URL is the full metrics endpoint, e.g. http://localhost:8000/metrics
	URL string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (s *ExpositionScraper) Name() string { return "exposition" }

// ScrapeResult holds one parsed scrape keyed by metric family name.
type ScrapeResult struct {
	families map[string]*dto.MetricFamily
}

// Scrape fetches and parses the metrics endpoint.
func (s *ExpositionScraper) Scrape(ctx context.Context) (*ScrapeResult, error) {
	if s.URL == "" {
		return nil, errors.New("exposition scraper: URL is required")
	}

	cli := s.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint: status %d", resp.StatusCode)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse exposition format: %w", err)
	}
	return &ScrapeResult{families: families}, nil
}

// Has reports whether the scrape contained the named metric family.
func (r *ScrapeResult) Has(name string) bool {
	_, ok := r.families[name]
	return ok
}

// Len returns the number of metric families in the scrape.
func (r *ScrapeResult) Len() int {
	return len(r.families)
}

// Gauge returns the value of the named gauge. Families with multiple label
// sets return the first metric; drift gauges are unlabeled so this is the
// only one.
func (r *ScrapeResult) Gauge(name string) (float64, bool) {
	mf, ok := r.families[name]
	if !ok || mf.GetType() != dto.MetricType_GAUGE || len(mf.Metric) == 0 {
		return 0, false
	}
	return mf.Metric[0].GetGauge().GetValue(), true
}

// Counter returns the value of the named counter, first metric only.
func (r *ScrapeResult) Counter(name string) (float64, bool) {
	mf, ok := r.families[name]
	if !ok || mf.GetType() != dto.MetricType_COUNTER || len(mf.Metric) == 0 {
		return 0, false
	}
	return mf.Metric[0].GetCounter().GetValue(), true
}
