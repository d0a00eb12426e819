package harness

import (
	"fmt"

	"github.com/roach88/brittle/internal/tap"
)

const msgNeverEnded = "test never called end"

// run executes fn on its own goroutine and settles t once fn returns, or
// once t's deadline passes. A body that outlives its deadline keeps
// running; whatever it records afterwards is late. t.ran is closed when
// run returns.
func (h *Harness) run(t *T, fn func(t *T)) {
	defer close(t.ran)
	h.logger.Debug("test started", "test", t.name, "depth", t.depth, "parent", t.parentName())

	body := make(chan struct{})
	go func() {
		defer close(body)
		defer func() {
			if r := recover(); r != nil {
				t.panicked(r, t.diagnose("panic"))
			}
		}()
		fn(t)
	}()

	if !t.waitFor(body) {
		h.timedOut(t)
	}
	h.settle(t)
}

func (h *Harness) timedOut(t *T) {
	f := &Failure{
		Operator: OpTimeout,
		Message:  fmt.Sprintf("test timed out after %s", t.limit()),
	}
	h.logger.Warn("test timed out", "test", t.name, "timeout", t.limit().String())
	if !t.abort(f) {
		t.fail(f)
	}
}

// settle brings t to a terminal state and freezes it: tracked
// continuations are awaited, children are settled in spawn order, a test
// still running is marked as never ended, then teardowns run. Concurrent
// callers block until the first one has finished.
func (h *Harness) settle(t *T) *tap.Test {
	t.settleOnce.Do(func() { h.finalize(t) })
	return t.snapshot()
}

func (h *Harness) finalize(t *T) {
	if !t.waitFor(t.asyncDone()) {
		h.timedOut(t)
	}
	for _, c := range t.Children() {
		// A callback child may still be inside its own run when its
		// parent gave up; it is bounded by its own deadline.
		if c.ran != nil {
			<-c.ran
		}
		h.settle(c)
	}
	if t.abort(&Failure{Operator: OpEnd, Message: msgNeverEnded}) {
		h.logger.Warn(msgNeverEnded, "test", t.name, "assertions", t.Count())
	}
	t.runTeardowns()
	h.logger.Debug("test settled", "test", t.name, "status", t.Status().String())
}
