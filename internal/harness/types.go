package harness

import (
	"time"

	"github.com/roach88/brittle/internal/tap"
)

// Status is the lifecycle state of a test node.
type Status int

const (
	// StatusRunning means the node still accepts assertions.
	StatusRunning Status = iota + 1
	// StatusEnded means the node ended explicitly or by reaching its plan.
	StatusEnded
	// StatusFailedToEnd means the harness moved on while the node was running.
	StatusFailedToEnd
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusEnded:
		return "ended"
	case StatusFailedToEnd:
		return "failed-to-end"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further assertions may be recorded.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusFailedToEnd
}

// Operator names the kind of an assertion or node-level failure.
type Operator string

// Assertion operators.
const (
	OpPass      Operator = "pass"
	OpFail      Operator = "fail"
	OpOk        Operator = "ok"
	OpAbsent    Operator = "absent"
	OpIs        Operator = "is"
	OpNot       Operator = "not"
	OpAlike     Operator = "alike"
	OpUnlike    Operator = "unlike"
	OpException Operator = "exception"
	OpExecution Operator = "execution"
	OpPlan      Operator = "plan"
)

// Node-level failure operators.
const (
	OpEnd     Operator = "end"
	OpTimeout Operator = "timeout"
)

// Comparison carries the values of a failed comparing assertion.
type Comparison struct {
	Expected any
	Actual   any
}

// Diagnostics is the source location and call stack captured at failure time.
type Diagnostics struct {
	At    tap.Location
	Stack string
}

// Assertion is one recorded assertion outcome.
type Assertion struct {
	Ok          bool
	Operator    Operator
	Message     string
	Comparison  *Comparison  // set on failed comparisons only
	Diagnostics *Diagnostics // set on failures only
}

// Failure is a node-level failure: a plan mismatch, a hang, a panic, a
// timeout or an error from an asynchronous continuation.
type Failure struct {
	Operator    Operator
	Message     string
	Comparison  *Comparison
	Diagnostics *Diagnostics
}

// Clock supplies the wall-clock instants used for elapsed times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sink receives each settled top-level test and the final result.
type Sink interface {
	Consume(number int, test *tap.Test) error
	Complete(result *Result) error
}

// Result is the outcome of a whole run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Tests     []*tap.Test
	Summary   tap.Summary

	// ExitCode is 0 when every node passed and 1 otherwise.
	ExitCode int

	// LateAssertions counts assertions attempted after their test reached
	// a terminal state. They are not part of the report.
	LateAssertions int
}

// Ok reports whether the run passed.
func (r *Result) Ok() bool {
	return r.ExitCode == ExitSuccess
}

func diagnostic(op Operator, message string, c *Comparison, d *Diagnostics) *tap.Diagnostic {
	out := &tap.Diagnostic{Operator: string(op), Message: message}
	if c != nil {
		out.Expected = c.Expected
		out.Actual = c.Actual
		out.HasComparison = true
	}
	if d != nil {
		at := d.At
		out.At = &at
		out.Stack = d.Stack
	}
	return out
}

// Source is where a step is declared when a test is driven from a data
// file rather than Go code. It replaces the captured call site and stack.
type Source struct {
	At    tap.Location
	Stack string
}
