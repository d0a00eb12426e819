package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// ListRuns returns up to limit runs, most recent first, without their TAP
// text. A limit <= 0 returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, exit_code, tests_passed, tests_total, asserts_passed, asserts_total, elapsed_ms, late_assertions, ''
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with the given ID, including its TAP text.
// Returns ErrNotFound when no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, exit_code, tests_passed, tests_total, asserts_passed, asserts_total, elapsed_ms, late_assertions, tap
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// ReadTests returns the top-level tests of a run in report order.
//
// Returns an empty slice (not nil) if the run has no tests.
func (s *Store) ReadTests(ctx context.Context, runID string) ([]TestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, number, name, ok, asserts_passed, asserts_total, elapsed_ms
		FROM tests
		WHERE run_id = ?
		ORDER BY number ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	tests := []TestRecord{}
	for rows.Next() {
		var (
			t       TestRecord
			ok      int
			elapsed float64
		)
		if err := rows.Scan(&t.RunID, &t.Number, &t.Name, &ok, &t.AssertsPassed, &t.AssertsTotal, &elapsed); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		t.Ok = ok != 0
		t.Elapsed = fromMillis(elapsed)
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return tests, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		startedAt string
		elapsed   float64
	)
	err := sc.Scan(&r.ID, &startedAt, &r.ExitCode,
		&r.TestsPassed, &r.TestsTotal, &r.AssertsPassed, &r.AssertsTotal,
		&elapsed, &r.LateAssertions, &r.TAP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	r.Elapsed = fromMillis(elapsed)
	return r, nil
}
