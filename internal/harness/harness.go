package harness

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/brittle/internal/tap"
)

// DefaultTimeout bounds each test node unless overridden.
const DefaultTimeout = 30 * time.Second

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock sets the clock used for elapsed times.
func WithClock(clock Clock) Option {
	return func(h *Harness) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithTimeout sets the per-node timeout. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithSink adds a sink that receives each reported test and the result.
func WithSink(s Sink) Option {
	return func(h *Harness) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

// WithIDGenerator sets the source of run IDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(h *Harness) {
		if ids != nil {
			h.ids = ids
		}
	}
}

// WithRunID fixes the run ID.
func WithRunID(id string) Option {
	return func(h *Harness) {
		h.runID = id
	}
}

// Harness schedules top-level tests, streams their TAP blocks to a writer
// and produces the run result.
//
// Top-level tests run strictly one after another. A test started with
// Start is settled when the next top-level test begins or when Finish is
// called. Harness methods are meant to be called from a single goroutine;
// T methods may be called from any.
type Harness struct {
	w       io.Writer
	logger  *slog.Logger
	clock   Clock
	timeout time.Duration
	sinks   []Sink
	ids     IDGenerator
	runID   string

	late atomic.Int64

	mu       sync.Mutex
	started  bool
	start    time.Time
	pending  *T
	tests    []*tap.Test
	result   *Result
	writeErr error
}

// New creates a harness writing TAP to w. A nil w discards the report.
func New(w io.Writer, opts ...Option) *Harness {
	if w == nil {
		w = io.Discard
	}
	h := &Harness{
		w:       w,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:   systemClock{},
		timeout: DefaultTimeout,
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunID returns the run's ID, assigning one if the run has not started.
func (h *Harness) RunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assignRunIDLocked()
	return h.runID
}

// Test runs fn as a top-level test and returns once it has been reported.
func (h *Harness) Test(name string, fn func(t *T)) *T {
	finished := h.begin()
	t := newT(h, nil, name)
	t.ran = make(chan struct{})
	h.run(t, fn)
	if finished {
		h.logger.Warn("test run after finish is not reported", "test", t.name)
		return t
	}
	h.report(t)
	return t
}

// Start creates a running top-level test that the caller drives and ends.
// It is reported when the next top-level test begins or Finish is called.
func (h *Harness) Start(name string) *T {
	finished := h.begin()
	t := newT(h, nil, name)
	h.logger.Debug("test started", "test", t.name, "depth", t.depth)
	if finished {
		h.logger.Warn("test started after finish is not reported", "test", t.name)
		return t
	}
	h.mu.Lock()
	h.pending = t
	h.mu.Unlock()
	return t
}

// Finish settles any pending test, writes the summary, notifies sinks and
// returns the result. Later calls return the same result.
func (h *Harness) Finish() *Result {
	h.begin()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result != nil {
		return h.result
	}

	summary := tap.Summarize(h.tests, h.clock.Now().Sub(h.start))
	h.write(func(w io.Writer) error { return tap.WriteSummary(w, len(h.tests), summary) })

	r := &Result{
		RunID:          h.runID,
		StartedAt:      h.start,
		Tests:          append([]*tap.Test(nil), h.tests...),
		Summary:        summary,
		ExitCode:       ResolveExit(h.tests),
		LateAssertions: int(h.late.Load()),
	}
	h.result = r

	for _, s := range h.sinks {
		if err := s.Complete(r); err != nil {
			h.logger.Warn("sink failed to complete run", "run_id", r.RunID, "error", err)
		}
	}
	h.logger.Info("run finished",
		"run_id", r.RunID,
		"tests", summary.TestsTotal,
		"asserts", summary.AssertsTotal,
		"exit_code", r.ExitCode)
	return r
}

// Err returns the first error from writing the report.
func (h *Harness) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeErr
}

// begin writes the header on first use and reports a pending Start-style
// test. It reports whether the run has already finished.
func (h *Harness) begin() bool {
	h.mu.Lock()
	if h.result != nil {
		h.mu.Unlock()
		return true
	}
	if !h.started {
		h.started = true
		h.start = h.clock.Now()
		h.assignRunIDLocked()
		h.write(tap.WriteHeader)
		h.logger.Debug("run started", "run_id", h.runID)
	}
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	if pending != nil {
		h.report(pending)
	}
	return false
}

func (h *Harness) assignRunIDLocked() {
	if h.runID == "" {
		h.runID = h.ids.Generate()
	}
}

// report settles a top-level test, streams its block and hands it to sinks.
func (h *Harness) report(t *T) {
	s := h.settle(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tests = append(h.tests, s)
	n := len(h.tests)
	h.write(func(w io.Writer) error { return tap.WriteTest(w, n, s) })

	for _, sink := range h.sinks {
		if err := sink.Consume(n, s); err != nil {
			h.logger.Warn("sink failed to consume test", "test", s.Name, "error", err)
		}
	}
}

// write must be called with h.mu held.
func (h *Harness) write(fn func(io.Writer) error) {
	if err := fn(h.w); err != nil && h.writeErr == nil {
		h.writeErr = err
		h.logger.Error("failed to write report", "error", err)
	}
}

// lateAssertion accounts for an assertion made after its test reached a
// terminal state. It is dropped from the report.
func (h *Harness) lateAssertion(t *T, a Assertion) {
	h.late.Add(1)
	h.logger.Warn("assertion after test ended",
		"test", t.name,
		"status", t.Status().String(),
		"operator", string(a.Operator),
		"message", a.Message)
}
