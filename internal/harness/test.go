package harness

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/brittle/internal/tap"
)

const unnamedTest = "(unnamed test)"

// T is the handle a test body receives. It records assertions, spawns
// sub-tests and ends the test. All methods are safe for concurrent use.
type T struct {
	h      *Harness
	parent *T
	name   string
	depth  int

	mu         sync.Mutex
	plan       int
	count      int
	entries    []entry
	children   []*T
	status     Status
	start      time.Time
	end        time.Time
	deadline   time.Time
	timeout    time.Duration
	failure    *Failure
	teardowns  []func()
	group      *errgroup.Group
	done       chan struct{}
	rearm      chan struct{}
	source     *Source
	ran        chan struct{}
	settleOnce sync.Once
	frozen     *tap.Test
}

type entry struct {
	assertion *Assertion
	comment   string
}

func newT(h *Harness, parent *T, name string) *T {
	if name == "" {
		name = unnamedTest
	}
	t := &T{
		h:        h,
		parent:   parent,
		name:     name,
		status:   StatusRunning,
		start:    h.clock.Now(),
		deadline: time.Now().Add(h.timeout),
		timeout:  h.timeout,
		done:     make(chan struct{}),
		rearm:    make(chan struct{}, 1),
	}
	if parent != nil {
		t.depth = parent.depth + 1
	}
	return t
}

// Name returns the test's display name.
func (t *T) Name() string { return t.name }

// Status returns the current lifecycle state.
func (t *T) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Count returns the number of assertions run so far.
func (t *T) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Assertions returns a copy of the recorded assertions in call order.
func (t *T) Assertions() []Assertion {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Assertion, 0, t.count)
	for _, e := range t.entries {
		if e.assertion != nil {
			out = append(out, *e.assertion)
		}
	}
	return out
}

// Children returns the sub-tests in spawn order.
func (t *T) Children() []*T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*T(nil), t.children...)
}

// Failure returns the node-level failure, if any.
func (t *T) Failure() *Failure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Passed reports the test's rollup: ended, every assertion passed, plan
// met, no node failure.
func (t *T) Passed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.okLocked()
}

func (t *T) okLocked() bool {
	if t.status != StatusEnded || t.failure != nil {
		return false
	}
	for _, e := range t.entries {
		if e.assertion != nil && !e.assertion.Ok {
			return false
		}
	}
	return true
}

// Done is closed once the test reaches a terminal state.
func (t *T) Done() <-chan struct{} { return t.done }

// Wait blocks until the test reaches a terminal state.
func (t *T) Wait() { <-t.done }

// End marks the test as ended. Ending an already terminal test is a no-op.
func (t *T) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finishLocked(StatusEnded, nil) {
		t.h.logger.Debug("end called on finished test", "test", t.name, "status", t.status.String())
	}
}

// abort moves a running test to StatusFailedToEnd with the given failure.
// It reports whether the test was still running.
func (t *T) abort(f *Failure) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishLocked(StatusFailedToEnd, f)
}

func (t *T) finishLocked(status Status, f *Failure) bool {
	if t.status.Terminal() {
		return false
	}
	t.status = status
	t.end = t.h.clock.Now()
	if f == nil {
		f = t.checkPlanLocked()
	}
	if f != nil && t.failure == nil {
		t.failure = f
	}
	close(t.done)
	return true
}

// fail attaches a node-level failure without changing the status. The
// first failure wins; later ones are only logged.
func (t *T) fail(f *Failure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure != nil || t.frozen != nil {
		t.h.logger.Warn("dropping additional test failure",
			"test", t.name, "operator", string(f.Operator), "message", f.Message)
		return
	}
	t.failure = f
}

// record appends an assertion and applies the plan-driven auto-end.
func (t *T) record(a Assertion) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		t.h.lateAssertion(t, a)
		return
	}
	t.entries = append(t.entries, entry{assertion: &a})
	t.count++
	reached := t.plan > 0 && t.count == t.plan
	t.mu.Unlock()

	if reached {
		t.End()
	}
}

// Comment adds a comment line to the report in call order.
func (t *T) Comment(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		t.h.logger.Warn("comment after test ended", "test", t.name, "comment", msg)
		return
	}
	t.entries = append(t.entries, entry{comment: msg})
}

// Teardown registers fn to run once the test reaches a terminal state.
// Teardowns run in reverse registration order.
func (t *T) Teardown(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardowns = append(t.teardowns, fn)
}

// Timeout replaces the test's deadline with d from now.
func (t *T) Timeout(d time.Duration) {
	t.mu.Lock()
	t.deadline = time.Now().Add(d)
	t.timeout = d
	t.mu.Unlock()

	select {
	case t.rearm <- struct{}{}:
	default:
	}
}

// SetSource makes failures recorded on t from now on report src instead
// of the Go call site. A nil src restores call-site capture.
func (t *T) SetSource(src *Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = src
}

// Go runs fn as a tracked asynchronous continuation of the test. The
// test is not settled until every continuation has returned. The first
// error returned becomes a node-level failure.
func (t *T) Go(fn func() error) {
	t.mu.Lock()
	if t.group == nil {
		t.group = &errgroup.Group{}
	}
	g := t.group
	t.mu.Unlock()

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				t.panicked(r, t.diagnose("panic"))
			}
		}()
		return fn()
	})
}

// Test runs fn as a sub-test and returns once the sub-test has settled.
func (t *T) Test(name string, fn func(t *T)) *T {
	child := t.spawn(name, true)
	t.h.run(child, fn)
	return child
}

// Start creates a running sub-test that the caller drives and ends.
func (t *T) Start(name string) *T {
	return t.spawn(name, false)
}

// spawn registers a child. A callback child gets a ran channel before it
// becomes visible, so that a parent settling early waits for its run.
func (t *T) spawn(name string, callback bool) *T {
	child := newT(t.h, t, name)
	if callback {
		child.ran = make(chan struct{})
	}
	t.mu.Lock()
	if t.frozen != nil {
		t.h.logger.Warn("sub-test spawned after parent was reported", "parent", t.name, "test", child.name)
	}
	t.children = append(t.children, child)
	t.mu.Unlock()
	return child
}

func (t *T) panicked(r any, d *Diagnostics) {
	f := &Failure{
		Operator:    OpException,
		Message:     fmt.Sprintf("panic: %v", r),
		Diagnostics: d,
	}
	t.h.logger.Warn("test panicked", "test", t.name, "panic", fmt.Sprint(r))
	if !t.abortAsEnded(f) {
		t.fail(f)
	}
}

// abortAsEnded ends a running test with a failure already attached.
func (t *T) abortAsEnded(f *Failure) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishLocked(StatusEnded, f)
}

func (t *T) limit() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

func (t *T) parentName() string {
	if t.parent == nil {
		return ""
	}
	return t.parent.name
}

func (t *T) remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Until(t.deadline)
}

// waitFor blocks until ch is closed or the test's deadline passes. It
// reports whether ch was closed in time.
func (t *T) waitFor(ch <-chan struct{}) bool {
	for {
		d := t.remaining()
		if d <= 0 {
			select {
			case <-ch:
				return true
			default:
				return false
			}
		}
		timer := time.NewTimer(d)
		select {
		case <-ch:
			timer.Stop()
			return true
		case <-timer.C:
		case <-t.rearm:
			timer.Stop()
		}
	}
}

// asyncDone returns a channel closed once every continuation started with
// Go has returned; the group error is then stored as a failure.
func (t *T) asyncDone() <-chan struct{} {
	t.mu.Lock()
	g := t.group
	t.mu.Unlock()

	ch := make(chan struct{})
	if g == nil {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		if err := g.Wait(); err != nil {
			t.fail(&Failure{Operator: OpFail, Message: err.Error()})
		}
	}()
	return ch
}

func (t *T) runTeardowns() {
	t.mu.Lock()
	fns := t.teardowns
	t.teardowns = nil
	t.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.fail(&Failure{
						Operator:    OpException,
						Message:     fmt.Sprintf("teardown panic: %v", r),
						Diagnostics: captureDiagnostics("panic"),
					})
				}
			}()
			fns[i]()
		}()
	}
}

// snapshot freezes the test into its report form. Later calls return the
// same snapshot.
func (t *T) snapshot() *tap.Test {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen != nil {
		return t.frozen
	}

	s := &tap.Test{
		Name:    t.name,
		Ok:      t.okLocked(),
		Plan:    t.plan,
		Elapsed: t.end.Sub(t.start),
	}
	for _, e := range t.entries {
		if e.assertion == nil {
			s.Entries = append(s.Entries, tap.Entry{Comment: e.comment})
			continue
		}
		a := &tap.Assertion{Ok: e.assertion.Ok, Message: e.assertion.Message}
		if !a.Ok {
			a.Diagnostic = diagnostic(e.assertion.Operator, "", e.assertion.Comparison, e.assertion.Diagnostics)
		}
		s.Entries = append(s.Entries, tap.Entry{Assertion: a})
	}
	for _, c := range t.children {
		s.Children = append(s.Children, c.snapshot())
	}
	if t.failure != nil {
		s.Failure = diagnostic(t.failure.Operator, t.failure.Message, t.failure.Comparison, t.failure.Diagnostics)
	}
	t.frozen = s
	return s
}
