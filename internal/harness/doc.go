// Package harness runs test bodies and reports them as TAP version 13.
//
// A Harness owns a sequence of top-level tests. Each test body receives a
// *T, which records assertions, spawns sub-tests and ends the test:
//
//	h := harness.New(os.Stdout)
//	h.Test("arithmetic", func(t *harness.T) {
//	    t.Plan(2)
//	    t.Is(1+1, 2)
//	    t.Alike([]int{1, 2}, []int{1, 2})
//	})
//	res := h.Finish()
//	os.Exit(res.ExitCode)
//
// # Lifecycle
//
// A test is Running until it ends, either by calling End or by reaching
// its plan. When the scheduler settles a test that is still Running, the
// test becomes FailedToEnd with an "end" failure. A test is ok only when
// it ended normally, every assertion passed and its plan was met.
//
// Two styles are supported. Test runs the body on its own goroutine and
// blocks until it has settled. Start returns a running handle that the
// caller drives and ends; it is settled when its parent settles or, at the
// top level, when the next test begins or Finish is called.
//
// # Plans
//
// Plan takes a positive whole number only. Anything else is recorded as a
// failing "plan" assertion and leaves the test unplanned. A valid plan does
// not count as an assertion. Planning twice is a failing assertion.
//
// # Diagnostics
//
// Failing assertions capture the caller's file, line and column and a
// stack trimmed of harness frames. The capture happens on the failing
// goroutine, before anything unwinds.
package harness
