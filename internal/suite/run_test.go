package suite

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/testutil"
)

func newHarness(t *testing.T) (*harness.Harness, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return harness.New(&buf,
		harness.WithClock(testutil.NewFrozenClock()),
		harness.WithRunID("suite-test"),
	), &buf
}

func TestRun_PassingGolden(t *testing.T) {
	s, err := Load("testdata/passing.yaml")
	require.NoError(t, err)

	h, out := newHarness(t)
	Run(h, s)
	res := h.Finish()

	assert.True(t, res.Ok())
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "passing", out.Bytes())
}

func TestRun_CUEMatchesYAML(t *testing.T) {
	s, err := Load("testdata/arithmetic.cue")
	require.NoError(t, err)

	h, out := newHarness(t)
	Run(h, s)
	res := h.Finish()

	assert.True(t, res.Ok())
	assert.Contains(t, out.String(), "# arithmetic\n    ok 1 - should be equal\n    ok 2 - lists match\n    # halfway\n")
}

func TestRun_PlanMustBePositive(t *testing.T) {
	s, err := Load("testdata/plan_positive.yaml")
	require.NoError(t, err)

	h, out := newHarness(t)
	Run(h, s)
	res := h.Finish()

	assert.Equal(t, harness.ExitFailure, res.ExitCode)
	assert.Equal(t, 0, res.Summary.TestsPassed)
	assert.Equal(t, 2, res.Summary.TestsTotal)
	assert.Equal(t, 2, res.Summary.AssertsPassed)
	assert.Equal(t, 4, res.Summary.AssertsTotal)

	report := out.String()
	assert.Contains(t, report, "# classic plan must be positive\n    not ok 1 - plan takes a positive whole number only\n")
	assert.Contains(t, report, "not ok 1 - classic plan must be positive # time = ")
	assert.Contains(t, report, "not ok 2 - inverted plan must be positive # time = ")
	assert.Contains(t, report, "      operator: plan\n")
	assert.Contains(t, report, "# tests = 0/2 pass\n# asserts = 2/4 pass\n")
}

func TestRun_HangingTest(t *testing.T) {
	s := &Suite{Name: "hang", Tests: []TestDef{
		{Name: "hangs", Steps: []Step{{Pass: ptr("")}}},
		{Name: "fine", Steps: []Step{{Plan: 1}, {Pass: ptr("")}}},
	}}

	h, out := newHarness(t)
	Run(h, s)
	res := h.Finish()

	require.Len(t, res.Tests, 2)
	require.NotNil(t, res.Tests[0].Failure)
	assert.Equal(t, "end", res.Tests[0].Failure.Operator)
	assert.True(t, res.Tests[1].Ok)
	assert.Contains(t, out.String(), "message: test never called end")
}

func TestRun_Panic(t *testing.T) {
	s := &Suite{Name: "panic", Tests: []TestDef{
		{Name: "boom", Steps: []Step{{Pass: ptr("")}, {Panic: ptr("kaboom")}}},
	}}

	h, _ := newHarness(t)
	Run(h, s)
	res := h.Finish()

	require.NotNil(t, res.Tests[0].Failure)
	assert.Equal(t, "exception", res.Tests[0].Failure.Operator)
	assert.Equal(t, "panic: kaboom", res.Tests[0].Failure.Message)
	assert.Equal(t, harness.ExitFailure, res.ExitCode)
}

func TestRun_TimeoutStep(t *testing.T) {
	s := &Suite{Name: "slow", Tests: []TestDef{
		{Name: "slow", Timeout: "10ms", Steps: []Step{{Sleep: "200ms"}, {End: true}}},
	}}

	h, _ := newHarness(t)
	Run(h, s)
	res := h.Finish()

	require.NotNil(t, res.Tests[0].Failure)
	assert.Equal(t, "timeout", res.Tests[0].Failure.Operator)
}

func TestRun_FailuresPointAtSuiteFile(t *testing.T) {
	s, err := Load("testdata/failing.yaml")
	require.NoError(t, err)

	h, out := newHarness(t)
	Run(h, s)
	h.Finish()

	report := out.String()
	assert.Contains(t, report, "    not ok 1 - 100% wrong\n")
	assert.Contains(t, report, "      expected: 2\n      actual: 1\n")
	assert.Contains(t, report, ""+
		"      at:\n"+
		"        line: 5\n"+
		"        column: 9\n"+
		"        file: testdata/failing.yaml\n"+
		"      stack: |\n"+
		"        step is (testdata/failing.yaml:5)\n"+
		"        test \"compares\" (testdata/failing.yaml:3)\n")
	assert.Contains(t, report, ""+
		"        not ok 1 - nested failure\n"+
		"          ---\n"+
		"          operator: fail\n"+
		"          at:\n"+
		"            line: 9\n"+
		"            column: 15\n"+
		"            file: testdata/failing.yaml\n"+
		"          stack: |\n"+
		"            step fail (testdata/failing.yaml:9)\n"+
		"            test \"nested\" (testdata/failing.yaml:7)\n"+
		"            test \"compares\" (testdata/failing.yaml:3)\n")
	assert.NotContains(t, report, "run.go")
}

func TestRun_NullPlanIsReported(t *testing.T) {
	s, err := Load("testdata/failing.yaml")
	require.NoError(t, err)

	h, out := newHarness(t)
	Run(h, s)
	res := h.Finish()

	require.Len(t, res.Tests, 2)
	assert.False(t, res.Tests[1].Ok)
	assert.Contains(t, out.String(), "# null plan\n    not ok 1 - plan takes a positive whole number only\n")
	assert.Contains(t, out.String(), "        line: 14\n")
}

func TestRun_CodeBuiltStepsUseCallSite(t *testing.T) {
	s := &Suite{Name: "cmp", Tests: []TestDef{
		{Name: "cmp", Steps: []Step{
			{Is: &Compare{Actual: 1, Expected: 2}},
			{End: true},
		}},
	}}

	h, out := newHarness(t)
	Run(h, s)
	h.Finish()

	assert.Contains(t, out.String(), "      expected: 2\n      actual: 1\n")
	assert.Contains(t, out.String(), "        file: run.go\n", "no file to point at")
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.False(t, truthy(0))
	assert.False(t, truthy(""))
	assert.False(t, truthy([]any{}))
	assert.True(t, truthy(true))
	assert.True(t, truthy(1.5))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(map[string]any{"a": 1}))
}

func ptr(s string) *string { return &s }
