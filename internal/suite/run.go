package suite

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/tap"
)

// Run executes every test of s, in order, as top-level tests of h.
//
// A test whose steps neither end it nor satisfy its plan is left running
// and reported as never ended. Failures point at the failing step in the
// suite file.
func Run(h *harness.Harness, s *Suite) {
	tr := trail{path: filepath.ToSlash(s.Path)}
	for _, def := range s.Tests {
		runTop(h, def, tr)
	}
}

func runTop(h *harness.Harness, def TestDef, tr trail) {
	if def.style() == StyleInverted {
		t := h.Start(def.Name)
		exec(t, def, tr)
		return
	}
	h.Test(def.Name, func(t *harness.T) { exec(t, def, tr) })
}

func runChild(parent *harness.T, def TestDef, tr trail) {
	if def.style() == StyleInverted {
		t := parent.Start(def.Name)
		exec(t, def, tr)
		return
	}
	parent.Test(def.Name, func(t *harness.T) { exec(t, def, tr) })
}

func exec(t *harness.T, def TestDef, tr trail) {
	if d, _ := def.timeout(); d > 0 {
		t.Timeout(d)
	}
	tr = tr.enter(def)
	for _, step := range def.Steps {
		t.SetSource(tr.source(step))
		apply(t, step, tr)
	}
}

// trail is the file and the chain of test declarations enclosing a step,
// outermost first.
type trail struct {
	path  string
	tests []TestDef
}

func (tr trail) enter(def TestDef) trail {
	tests := make([]TestDef, 0, len(tr.tests)+1)
	tests = append(tests, tr.tests...)
	return trail{path: tr.path, tests: append(tests, def)}
}

// source locates step for failure diagnostics. The stack lists the step
// and then its enclosing tests, innermost first. Steps built in code with
// no file or position keep Go call-site capture.
func (tr trail) source(step Step) *harness.Source {
	if tr.path == "" && step.Pos.Line == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("step %s (%s:%d)", step.Kind(), tr.path, step.Pos.Line)}
	for i := len(tr.tests) - 1; i >= 0; i-- {
		def := tr.tests[i]
		lines = append(lines, fmt.Sprintf("test %q (%s:%d)", def.Name, tr.path, def.Pos.Line))
	}
	return &harness.Source{
		At:    tap.Location{File: tr.path, Line: step.Pos.Line, Column: step.Pos.Column},
		Stack: strings.Join(lines, "\n"),
	}
}

func apply(t *harness.T, s Step, tr trail) {
	switch {
	case s.Plan != nil || s.hasPlan:
		t.PlanValue(s.Plan)
	case s.Pass != nil:
		t.Pass(msg(*s.Pass)...)
	case s.Fail != nil:
		t.Fail(msg(*s.Fail)...)
	case s.Ok != nil:
		t.Ok(truthy(s.Ok.Value), msg(s.Ok.Message)...)
	case s.Absent != nil:
		t.Absent(s.Absent.Value, msg(s.Absent.Message)...)
	case s.Is != nil:
		t.Is(s.Is.Actual, s.Is.Expected, msg(s.Is.Message)...)
	case s.Not != nil:
		t.Not(s.Not.Actual, s.Not.Expected, msg(s.Not.Message)...)
	case s.Alike != nil:
		t.Alike(s.Alike.Actual, s.Alike.Expected, msg(s.Alike.Message)...)
	case s.Unlike != nil:
		t.Unlike(s.Unlike.Actual, s.Unlike.Expected, msg(s.Unlike.Message)...)
	case s.Comment != nil:
		t.Comment("%s", *s.Comment)
	case s.Test != nil:
		runChild(t, *s.Test, tr)
	case s.Panic != nil:
		panic(*s.Panic)
	case s.Sleep != "":
		d, _ := parseSleep(s.Sleep)
		time.Sleep(d)
	case s.End:
		t.End()
	}
}

// msg keeps the harness default message when none is given. The message
// is passed as a single argument so that '%' is not interpreted.
func msg(m string) []any {
	if m == "" {
		return nil
	}
	return []any{m}
}

// truthy maps decoded values onto a boolean: nil, false, zero numbers and
// empty strings or collections are false.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	default:
		return !rv.IsZero()
	}
}

func parseSleep(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}
