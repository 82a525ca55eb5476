// Package history persists correction run statistics in a local SQLite
// database so spend and quality can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hokomura/kousei/internal/corrector"
)

// ErrNotFound is returned by [Store.GetRun] when no run has the given ID.
var ErrNotFound = errors.New("history: run not found")

// RunRecord is one persisted correction run.
type RunRecord struct {
	ID         string
	Source     string // "file", "batch", or "web"
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Report     corrector.Report
}

// Store is a SQLite-backed run history. Safe for concurrent use; SQLite
// serialises writers internally.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL,
	files         INTEGER NOT NULL,
	segments      INTEGER NOT NULL,
	escalated     INTEGER NOT NULL,
	model_used    INTEGER NOT NULL,
	acceptable    INTEGER NOT NULL,
	avg_quality   REAL NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one finished run.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, finished_at, files,
			segments, escalated, model_used, acceptable, avg_quality,
			input_tokens, output_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.Files,
		rec.Report.Segments, rec.Report.Escalated, rec.Report.ModelUsed,
		rec.Report.AcceptableSegments, rec.Report.AverageQuality,
		rec.Report.InputTokens, rec.Report.OutputTokens,
		rec.Report.EstimatedCostUSD,
	)
	if err != nil {
		return fmt.Errorf("history: insert run %q: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, files,
			segments, escalated, model_used, acceptable, avg_quality,
			input_tokens, output_tokens, cost_usd
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return records, nil
}

// GetRun returns the run with the given ID, or [ErrNotFound].
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, finished_at, files,
			segments, escalated, model_used, acceptable, avg_quality,
			input_tokens, output_tokens, cost_usd
		FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// TotalCost returns the summed estimated spend across all recorded runs.
func (s *Store) TotalCost(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(cost_usd) FROM runs`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("history: total cost: %w", err)
	}
	return total.Float64, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec                  RunRecord
		startedMs, finishedMs int64
	)
	err := sc.Scan(
		&rec.ID, &rec.Source, &startedMs, &finishedMs, &rec.Files,
		&rec.Report.Segments, &rec.Report.Escalated, &rec.Report.ModelUsed,
		&rec.Report.AcceptableSegments, &rec.Report.AverageQuality,
		&rec.Report.InputTokens, &rec.Report.OutputTokens,
		&rec.Report.EstimatedCostUSD,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("history: scan run: %w", err)
	}
	rec.StartedAt = time.UnixMilli(startedMs)
	rec.FinishedAt = time.UnixMilli(finishedMs)
	// SuccessRate is derived, not stored.
	if rec.Report.Segments > 0 {
		rec.Report.SuccessRate = float64(rec.Report.AcceptableSegments) / float64(rec.Report.Segments)
	}
	return rec, nil
}
