package tap

import "time"

// Location is a source position in a test file.
type Location struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is the YAML block attached to a failing result line.
// Fields render in declaration order; zero-valued fields are omitted.
type Diagnostic struct {
	Operator string
	Message  string

	// Expected and Actual render only when HasComparison is set, so that
	// nil values can still be reported.
	Expected      any
	Actual        any
	HasComparison bool

	At    *Location
	Stack string
}

// Assertion is one numbered result line inside a test block.
type Assertion struct {
	Ok         bool
	Message    string
	Diagnostic *Diagnostic
}

// Entry is one line of a test block in call order: either an assertion or
// a comment.
type Entry struct {
	Assertion *Assertion
	Comment   string
}

// Test is a frozen snapshot of a completed test node.
type Test struct {
	Name     string
	Ok       bool
	Plan     int // declared plan, 0 when none was set
	Entries  []Entry
	Children []*Test
	Elapsed  time.Duration

	// Failure is the node-level failure (plan mismatch, hang, panic,
	// timeout) rendered under the rollup line.
	Failure *Diagnostic
}

// Asserts returns the passed and total number of the test's own assertions.
func (t *Test) Asserts() (passed, total int) {
	for _, e := range t.Entries {
		if e.Assertion == nil {
			continue
		}
		total++
		if e.Assertion.Ok {
			passed++
		}
	}
	return passed, total
}

// PlanCount is the number shown on the test's plan line: the declared plan
// if there is one, otherwise the number of assertions run.
func (t *Test) PlanCount() int {
	if t.Plan > 0 {
		return t.Plan
	}
	_, total := t.Asserts()
	return total
}

// Walk visits t and all of its descendants depth-first in spawn order.
func (t *Test) Walk(fn func(*Test)) {
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// Summary holds the trailing counters of a report.
type Summary struct {
	TestsPassed   int
	TestsTotal    int
	AssertsPassed int
	AssertsTotal  int
	Elapsed       time.Duration
}

// Ok reports whether every test node passed.
func (s Summary) Ok() bool {
	return s.TestsPassed == s.TestsTotal
}

// Summarize counts every node and assertion in the given trees.
func Summarize(tests []*Test, elapsed time.Duration) Summary {
	s := Summary{Elapsed: elapsed}
	for _, top := range tests {
		top.Walk(func(t *Test) {
			s.TestsTotal++
			if t.Ok {
				s.TestsPassed++
			}
			passed, total := t.Asserts()
			s.AssertsPassed += passed
			s.AssertsTotal += total
		})
	}
	return s
}
