// Package history persists scenario run outcomes.
//
// Runs are recorded after every scenario so drift behavior can be compared
// across backend deployments. Two stores exist: an in-memory store for
// one-off runs and tests, and a SQLite store for runs that should survive
// the process.
package history

import (
	"context"
	"time"

	"github.com/driftwatch/driftwatch/pkg/scenario"
)

// Record is one persisted scenario run.
type Record struct {
	RunID     string
	Scenario  string
	Service   string
	StartTime time.Time
	EndTime   time.Time

	Total      int
	Successful int
	Failed     int

	DriftDetected bool
	DriftShare    float64

	// Passed is false when the run aborted or its drift expectation
	// failed; Error carries the reason.
	Passed bool
	Error  string

	Report string
}

// FromResult builds a Record from a finished run. runErr is the error
// returned by the engine, nil for a passing run.
func FromResult(result *scenario.Result, runErr error) Record {
	rec := Record{
		RunID:         result.RunID,
		Scenario:      result.Scenario,
		Service:       result.Service,
		StartTime:     result.StartTime,
		EndTime:       result.EndTime,
		Total:         result.Total,
		Successful:    result.Successful,
		Failed:        result.Failed,
		DriftDetected: result.DriftDetected,
		DriftShare:    result.DriftShare,
		Passed:        runErr == nil,
		Report:        result.Report(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// Store persists run records.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, runID string) (Record, bool, error)
	// List returns up to limit records, newest first. limit <= 0 returns
	// everything.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
