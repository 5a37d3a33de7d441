// Package runstore keeps a history of validation runs in PostgreSQL.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 50

// MaxRecentLimit caps a single Recent query.
const MaxRecentLimit = 500

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS validation_runs (
	id           UUID PRIMARY KEY,
	csv          TEXT NOT NULL,
	config_path  TEXT NOT NULL,
	success      BOOLEAN NOT NULL,
	evaluated    INTEGER NOT NULL,
	successful   INTEGER NOT NULL,
	unsuccessful INTEGER NOT NULL,
	rows         INTEGER NOT NULL,
	report       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS validation_runs_created_at_idx ON validation_runs (created_at DESC);
`

// Run is one row of the history, without the full report.
type Run struct {
	ID           uuid.UUID `json:"id"`
	CSV          string    `json:"csv"`
	ConfigPath   string    `json:"config_path"`
	Success      bool      `json:"success"`
	Evaluated    int       `json:"evaluated_expectations"`
	Successful   int       `json:"successful_expectations"`
	Unsuccessful int       `json:"unsuccessful_expectations"`
	Rows         int       `json:"rows"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store reads and writes validation runs.
type Store struct {
	db database.DBTX
}

// New creates a Store. db is usually a *pgxpool.Pool.
func New(db database.DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the history table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate validation_runs: %w", err)
	}
	return nil
}

// Record stores a completed run.
func (s *Store) Record(ctx context.Context, runID uuid.UUID, r *report.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	run := newRun(runID, r)
	_, err = s.db.Exec(ctx, `
		INSERT INTO validation_runs
			(id, csv, config_path, success, evaluated, successful, unsuccessful, rows, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPgUUID(run.ID), run.CSV, run.ConfigPath, run.Success,
		run.Evaluated, run.Successful, run.Unsuccessful, run.Rows, string(body))
	if err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, csv, config_path, success, evaluated, successful, unsuccessful, rows, created_at
		FROM validation_runs
		ORDER BY created_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
}

// Get returns a run and its full report.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, *report.Report, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, csv, config_path, success, evaluated, successful, unsuccessful, rows, created_at, report
		FROM validation_runs
		WHERE id = $1`, toPgUUID(id))

	var (
		run  Run
		pgID pgtype.UUID
		at   pgtype.Timestamptz
		body []byte
	)
	err := row.Scan(&pgID, &run.CSV, &run.ConfigPath, &run.Success,
		&run.Evaluated, &run.Successful, &run.Unsuccessful, &run.Rows, &at, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.ID = uuid.UUID(pgID.Bytes)
	run.CreatedAt = at.Time

	var r report.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, nil, fmt.Errorf("decode report of run %s: %w", id, err)
	}
	return &run, &r, nil
}

func scanRun(rows pgx.Rows) (*Run, error) {
	var (
		run  Run
		pgID pgtype.UUID
		at   pgtype.Timestamptz
	)
	if err := rows.Scan(&pgID, &run.CSV, &run.ConfigPath, &run.Success,
		&run.Evaluated, &run.Successful, &run.Unsuccessful, &run.Rows, &at); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.ID = uuid.UUID(pgID.Bytes)
	run.CreatedAt = at.Time
	return &run, nil
}

func newRun(runID uuid.UUID, r *report.Report) Run {
	return Run{
		ID:           runID,
		CSV:          r.Meta.CSV,
		ConfigPath:   r.Meta.ConfigPath,
		Success:      r.Success,
		Evaluated:    r.Statistics.EvaluatedExpectations,
		Successful:   r.Statistics.SuccessfulExpectations,
		Unsuccessful: r.Statistics.UnsuccessfulExpectations,
		Rows:         r.Statistics.Rows,
	}
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}
