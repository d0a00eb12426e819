package store

import (
	"context"
	"fmt"
	"time"
)

// Run is one stored harness run.
type Run struct {
	ID             string
	StartedAt      time.Time
	ExitCode       int
	TestsPassed    int
	TestsTotal     int
	AssertsPassed  int
	AssertsTotal   int
	Elapsed        time.Duration
	LateAssertions int

	// TAP is the complete report. ListRuns leaves it empty.
	TAP string
}

// TestRecord is one stored top-level test of a run.
type TestRecord struct {
	RunID         string
	Number        int
	Name          string
	Ok            bool
	AssertsPassed int
	AssertsTotal  int
	Elapsed       time.Duration
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, exit_code, tests_passed, tests_total, asserts_passed, asserts_total, elapsed_ms, late_assertions, tap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		formatTime(r.StartedAt),
		r.ExitCode,
		r.TestsPassed,
		r.TestsTotal,
		r.AssertsPassed,
		r.AssertsTotal,
		millis(r.Elapsed),
		r.LateAssertions,
		r.TAP,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteTest inserts a test record.
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteTest(ctx context.Context, t TestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tests
		(run_id, number, name, ok, asserts_passed, asserts_total, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, number) DO NOTHING
	`,
		t.RunID,
		t.Number,
		t.Name,
		boolToInt(t.Ok),
		t.AssertsPassed,
		t.AssertsTotal,
		millis(t.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("write test: %w", err)
	}
	return nil
}

// WriteRunWithTests stores a run and its tests in one transaction.
func (s *Store) WriteRunWithTests(ctx context.Context, r Run, tests []TestRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, exit_code, tests_passed, tests_total, asserts_passed, asserts_total, elapsed_ms, late_assertions, tap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, formatTime(r.StartedAt), r.ExitCode,
		r.TestsPassed, r.TestsTotal, r.AssertsPassed, r.AssertsTotal,
		millis(r.Elapsed), r.LateAssertions, r.TAP,
	); err != nil {
		return fmt.Errorf("write run %s: %w", r.ID, err)
	}

	for _, t := range tests {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO tests
			(run_id, number, name, ok, asserts_passed, asserts_total, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, t.Number, t.Name, boolToInt(t.Ok),
			t.AssertsPassed, t.AssertsTotal, millis(t.Elapsed),
		); err != nil {
			return fmt.Errorf("write test %d of run %s: %w", t.Number, r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
