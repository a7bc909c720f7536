package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. The schema is idempotent, so reopening an existing file is safe.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; serialize access through one
	// connection instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		service TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		total INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		drift_detected INTEGER NOT NULL,
		drift_share REAL NOT NULL,
		passed INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		report TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs(start_time);
	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, scenario, service, start_time, end_time,
			total, successful, failed,
			drift_detected, drift_share, passed, error, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Scenario, rec.Service,
		rec.StartTime.UTC().Format(time.RFC3339Nano),
		rec.EndTime.UTC().Format(time.RFC3339Nano),
		rec.Total, rec.Successful, rec.Failed,
		rec.DriftDetected, rec.DriftShare, rec.Passed, rec.Error, rec.Report,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, runID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, scenario, service, start_time, end_time,
		       total, successful, failed,
		       drift_detected, drift_share, passed, error, report
		FROM runs WHERE run_id = ?`, runID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query run %s: %w", runID, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT run_id, scenario, service, start_time, end_time,
		       total, successful, failed,
		       drift_detected, drift_share, passed, error, report
		FROM runs ORDER BY start_time DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var start, end string
	err := row.Scan(
		&rec.RunID, &rec.Scenario, &rec.Service, &start, &end,
		&rec.Total, &rec.Successful, &rec.Failed,
		&rec.DriftDetected, &rec.DriftShare, &rec.Passed, &rec.Error, &rec.Report,
	)
	if err != nil {
		return Record{}, err
	}
	if rec.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return Record{}, fmt.Errorf("parse start_time: %w", err)
	}
	if rec.EndTime, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return Record{}, fmt.Errorf("parse end_time: %w", err)
	}
	return rec, nil
}
