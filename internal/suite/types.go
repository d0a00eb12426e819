package suite

import (
	"fmt"
	"time"
)

// Test styles.
const (
	// StyleClassic runs the steps as a callback body on its own goroutine.
	StyleClassic = "classic"
	// StyleInverted starts a running handle and drives it step by step.
	StyleInverted = "inverted"
)

// Suite is a file of declarative tests.
type Suite struct {
	// Name identifies the suite in logs (required).
	Name string `yaml:"name" json:"name"`

	// Tests run in order as top-level tests (required, non-empty).
	Tests []TestDef `yaml:"tests" json:"tests"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-" json:"-"`
}

// TestDef declares one test and its steps.
type TestDef struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Style is "classic" (default) or "inverted".
	Style string `yaml:"style,omitempty" json:"style,omitempty"`

	// Timeout overrides the harness timeout, e.g. "100ms".
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Steps []Step `yaml:"steps" json:"steps"`

	// Pos is where the test is declared in its file.
	Pos Position `yaml:"-" json:"-"`
}

// Step is one action on a test. Exactly one field must be set.
type Step struct {
	// Plan is passed through untyped so that invalid plans such as -1 or
	// 1.5 reach the harness and are reported there.
	Plan any `yaml:"plan,omitempty" json:"plan,omitempty"`

	Pass    *string  `yaml:"pass,omitempty" json:"pass,omitempty"`
	Fail    *string  `yaml:"fail,omitempty" json:"fail,omitempty"`
	Ok      *Check   `yaml:"ok,omitempty" json:"ok,omitempty"`
	Absent  *Check   `yaml:"absent,omitempty" json:"absent,omitempty"`
	Is      *Compare `yaml:"is,omitempty" json:"is,omitempty"`
	Not     *Compare `yaml:"not,omitempty" json:"not,omitempty"`
	Alike   *Compare `yaml:"alike,omitempty" json:"alike,omitempty"`
	Unlike  *Compare `yaml:"unlike,omitempty" json:"unlike,omitempty"`
	Comment *string  `yaml:"comment,omitempty" json:"comment,omitempty"`
	Test    *TestDef `yaml:"test,omitempty" json:"test,omitempty"`
	Panic   *string  `yaml:"panic,omitempty" json:"panic,omitempty"`
	Sleep   string   `yaml:"sleep,omitempty" json:"sleep,omitempty"`
	End     bool     `yaml:"end,omitempty" json:"end,omitempty"`

	// Pos is where the step is declared in its file.
	Pos Position `yaml:"-" json:"-"`

	// hasPlan records a plan key whose value decoded to nil, e.g. "plan: ~".
	hasPlan bool
}

// Check is the argument of ok and absent.
type Check struct {
	Value   any    `yaml:"value" json:"value"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Compare is the argument of is, not, alike and unlike.
type Compare struct {
	Actual   any    `yaml:"actual" json:"actual"`
	Expected any    `yaml:"expected" json:"expected"`
	Message  string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Kind returns the name of the step's single action, or "" when the step
// sets none or more than one.
func (s Step) Kind() string {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(s.Plan != nil || s.hasPlan, "plan")
	add(s.Pass != nil, "pass")
	add(s.Fail != nil, "fail")
	add(s.Ok != nil, "ok")
	add(s.Absent != nil, "absent")
	add(s.Is != nil, "is")
	add(s.Not != nil, "not")
	add(s.Alike != nil, "alike")
	add(s.Unlike != nil, "unlike")
	add(s.Comment != nil, "comment")
	add(s.Test != nil, "test")
	add(s.Panic != nil, "panic")
	add(s.Sleep != "", "sleep")
	add(s.End, "end")
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (d TestDef) style() string {
	if d.Style == "" {
		return StyleClassic
	}
	return d.Style
}

func (d TestDef) timeout() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	t, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0, err
	}
	if t <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return t, nil
}
