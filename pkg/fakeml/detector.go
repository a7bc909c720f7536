package fakeml

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// detector is the stub drift detector for one service. The first
// ReferenceSize samples fill the reference window; later samples roll
// through a current window of the same size. A feature drifts when its
// current mean shifts from the reference mean by more than the configured
// relative threshold (with the reference stddev as a floor for features
// whose mean sits near zero).
//
// Callers hold the backend mutex; the detector itself is not locked.
type detector struct {
	cfg      Config
	features []string

	reference map[string][]float64
	current   map[string][]float64
	refCount  int
	curCount  int

	driftGauge   prometheus.Gauge
	shareGauge   prometheus.Gauge
	driftedGauge prometheus.Gauge
	scoreGauges  map[string]prometheus.Gauge
}

func newDetector(cfg Config, features []string) *detector {
	d := &detector{
		cfg:      cfg,
		features: features,
	}
	d.reset()
	return d
}

func (d *detector) registerGauges(registry *prometheus.Registry, prefix string) {
	d.driftGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "dataset_drift",
		Help: "Dataset-level drift flag (1=drift, 0=no drift).",
	})
	d.shareGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "drift_share",
		Help: "Share of features currently drifted.",
	})
	d.driftedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "num_drifted_features",
		Help: "Number of features currently drifted.",
	})
	registry.MustRegister(d.driftGauge, d.shareGauge, d.driftedGauge)

	d.scoreGauges = make(map[string]prometheus.Gauge, len(d.features))
	for _, f := range d.features {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + f + "_drift_score",
			Help: "Relative mean shift of the " + f + " feature.",
		})
		registry.MustRegister(g)
		d.scoreGauges[f] = g
	}
}

func (d *detector) reset() {
	d.reference = make(map[string][]float64, len(d.features))
	d.current = make(map[string][]float64, len(d.features))
	d.refCount = 0
	d.curCount = 0
	d.publish(nil)
}

func (d *detector) sampleCounts() (ref, cur int) {
	return d.refCount, d.curCount
}

func (d *detector) addSample(features map[string]float64) {
	if d.refCount < d.cfg.ReferenceSize {
		for _, f := range d.features {
			d.reference[f] = append(d.reference[f], features[f])
		}
		d.refCount++
		return
	}

	for _, f := range d.features {
		win := append(d.current[f], features[f])
		if len(win) > d.cfg.ReferenceSize {
			win = win[1:]
		}
		d.current[f] = win
	}
	if d.curCount < d.cfg.ReferenceSize {
		d.curCount++
	}
	d.publish(d.report())
}

// driftReport is one scored comparison of current vs reference windows.
type driftReport struct {
	curSamples int
	refSamples int
	features   []string
	scores     map[string]float64
	drifted    map[string]bool
	curMeans   map[string]float64
	refMeans   map[string]float64
	numDrifted int
}

// report scores drift, or returns nil while data is insufficient.
func (d *detector) report() *driftReport {
	if d.curCount < d.cfg.MinSamples {
		return nil
	}

	r := &driftReport{
		curSamples: d.curCount,
		refSamples: d.refCount,
		features:   d.features,
		scores:     make(map[string]float64, len(d.features)),
		drifted:    make(map[string]bool, len(d.features)),
		curMeans:   make(map[string]float64, len(d.features)),
		refMeans:   make(map[string]float64, len(d.features)),
	}

	for _, f := range d.features {
		refMean, refStd := meanStd(d.reference[f])
		curMean, _ := meanStd(d.current[f])
		r.refMeans[f] = refMean
		r.curMeans[f] = curMean

		scale := math.Abs(refMean)
		if scale < refStd {
			scale = refStd
		}
		if scale == 0 {
			scale = 1
		}
		score := math.Abs(curMean-refMean) / scale
		r.scores[f] = score
		if score > d.cfg.DriftThreshold {
			r.drifted[f] = true
			r.numDrifted++
		}
	}
	return r
}

// inlineDrift is the compact drift block attached to inference responses.
func (d *detector) inlineDrift() map[string]any {
	r := d.report()
	if r == nil {
		return map[string]any{
			"dataset_drift":        false,
			"drift_share":          nil,
			"num_drifted_features": 0,
		}
	}
	return map[string]any{
		"dataset_drift":        r.numDrifted > 0,
		"drift_share":          r.share(),
		"num_drifted_features": r.numDrifted,
	}
}

func (d *detector) currentStatistics() map[string]any {
	stats := make(map[string]any, len(d.features))
	for _, f := range d.features {
		refMean, _ := meanStd(d.reference[f])
		curMean, _ := meanStd(d.current[f])
		stats[f] = map[string]any{
			"reference_mean": refMean,
			"current_mean":   curMean,
		}
	}
	return stats
}

// publish pushes the latest score into the Prometheus gauges.
func (d *detector) publish(r *driftReport) {
	if d.driftGauge == nil {
		return
	}
	if r == nil {
		d.driftGauge.Set(0)
		d.shareGauge.Set(0)
		d.driftedGauge.Set(0)
		for _, g := range d.scoreGauges {
			g.Set(0)
		}
		return
	}

	if r.numDrifted > 0 {
		d.driftGauge.Set(1)
	} else {
		d.driftGauge.Set(0)
	}
	d.shareGauge.Set(r.share())
	d.driftedGauge.Set(float64(r.numDrifted))
	for f, g := range d.scoreGauges {
		g.Set(r.scores[f])
	}
}

func (r *driftReport) share() float64 {
	if len(r.features) == 0 {
		return 0
	}
	return float64(r.numDrifted) / float64(len(r.features))
}

// detection renders the drift_detection block of the status endpoint.
func (r *driftReport) detection() map[string]any {
	featureDrifts := make(map[string]any, len(r.features))
	for _, f := range r.features {
		featureDrifts[f] = map[string]any{
			"drift_detected": r.drifted[f],
			"drift_score":    r.scores[f],
		}
	}
	return map[string]any{
		"current_samples":      r.curSamples,
		"reference_samples":    r.refSamples,
		"dataset_drift":        r.numDrifted > 0,
		"drift_share":          r.share(),
		"num_drifted_features": r.numDrifted,
		"total_features":       len(r.features),
		"feature_drifts":       featureDrifts,
	}
}

// statistics renders per-feature means for the status endpoint.
func (r *driftReport) statistics() map[string]any {
	stats := make(map[string]any, len(r.features))
	for _, f := range r.features {
		stats[f] = map[string]any{
			"reference_mean": r.refMeans[f],
			"current_mean":   r.curMeans[f],
		}
	}
	return stats
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
