package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/tap"
)

// Recorder is a harness.Sink that stores each finished run.
//
// Tests are buffered as they are reported; the run and its tests are
// written in one transaction when the run completes, so a crashed run
// leaves no partial history.
type Recorder struct {
	ctx   context.Context
	store *Store

	mu    sync.Mutex
	tests []TestRecord
}

var _ harness.Sink = (*Recorder)(nil)

// NewRecorder creates a recorder writing to st.
func NewRecorder(ctx context.Context, st *Store) *Recorder {
	return &Recorder{ctx: ctx, store: st}
}

// Consume buffers one reported top-level test.
func (r *Recorder) Consume(number int, t *tap.Test) error {
	passed, total := 0, 0
	t.Walk(func(n *tap.Test) {
		p, a := n.Asserts()
		passed += p
		total += a
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests = append(r.tests, TestRecord{
		Number:        number,
		Name:          t.Name,
		Ok:            subtreeOk(t),
		AssertsPassed: passed,
		AssertsTotal:  total,
		Elapsed:       t.Elapsed,
	})
	return nil
}

// Complete writes the run, its full TAP report and the buffered tests.
func (r *Recorder) Complete(res *harness.Result) error {
	r.mu.Lock()
	tests := r.tests
	r.tests = nil
	r.mu.Unlock()

	run := Run{
		ID:             res.RunID,
		StartedAt:      res.StartedAt,
		ExitCode:       res.ExitCode,
		TestsPassed:    res.Summary.TestsPassed,
		TestsTotal:     res.Summary.TestsTotal,
		AssertsPassed:  res.Summary.AssertsPassed,
		AssertsTotal:   res.Summary.AssertsTotal,
		Elapsed:        res.Summary.Elapsed,
		LateAssertions: res.LateAssertions,
		TAP:            tap.Document(res.Tests, res.Summary),
	}
	for i := range tests {
		tests[i].RunID = run.ID
	}
	if err := r.store.WriteRunWithTests(r.ctx, run, tests); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// subtreeOk reports whether t and every descendant passed.
func subtreeOk(t *tap.Test) bool {
	ok := true
	t.Walk(func(n *tap.Test) {
		if !n.Ok {
			ok = false
		}
	})
	return ok
}
