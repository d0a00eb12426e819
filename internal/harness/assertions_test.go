package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	x, y int
}

func TestAssertions_DefaultMessages(t *testing.T) {
	h, _ := newTestHarness(t)
	tt := h.Start("defaults")
	tt.Pass()
	tt.Fail()
	tt.Ok(true)
	tt.Absent(nil)
	tt.Is(1, 1)
	tt.Not(1, 2)
	tt.Alike([]int{1}, []int{1})
	tt.Unlike([]int{1}, []int{2})
	tt.Exception(func() { panic("x") })
	tt.Execution(func() {})
	tt.End()

	var msgs []string
	for _, a := range tt.Assertions() {
		msgs = append(msgs, a.Message)
	}
	assert.Equal(t, []string{
		"passed",
		"failed",
		"expected truthy value",
		"expected falsy value",
		"should be equal",
		"should not be equal",
		"should deep equal",
		"should not deep equal",
		"should panic",
		"should not panic",
	}, msgs)
}

func TestAssertions_CustomMessage(t *testing.T) {
	h, _ := newTestHarness(t)
	tt := h.Start("custom")
	tt.Pass("plain")
	tt.Pass("formatted %d", 7)
	tt.End()

	as := tt.Assertions()
	require.Len(t, as, 2)
	assert.Equal(t, "plain", as[0].Message)
	assert.Equal(t, "formatted 7", as[1].Message)
}

func TestAssertions_Outcomes(t *testing.T) {
	shared := []int{1, 2}
	m := map[string]int{"a": 1}

	cases := []struct {
		name string
		run  func(tt *T)
		want bool
	}{
		{"ok false", func(tt *T) { tt.Ok(false) }, false},
		{"absent zero int", func(tt *T) { tt.Absent(0) }, true},
		{"absent empty string", func(tt *T) { tt.Absent("") }, true},
		{"absent nil slice", func(tt *T) { tt.Absent([]int(nil)) }, true},
		{"absent value", func(tt *T) { tt.Absent("x") }, false},
		{"is same slice", func(tt *T) { tt.Is(shared, shared) }, true},
		{"is equal slices", func(tt *T) { tt.Is([]int{1, 2}, []int{1, 2}) }, false},
		{"is same map", func(tt *T) { tt.Is(m, m) }, true},
		{"is different types", func(tt *T) { tt.Is(int32(1), int64(1)) }, false},
		{"is struct", func(tt *T) { tt.Is(point{1, 2}, point{1, 2}) }, true},
		{"not nil", func(tt *T) { tt.Not(nil, nil) }, false},
		{"alike unexported fields", func(tt *T) { tt.Alike(point{1, 2}, point{1, 2}) }, true},
		{"alike maps", func(tt *T) { tt.Alike(map[string][]int{"a": {1}}, map[string][]int{"a": {1}}) }, true},
		{"alike mismatch", func(tt *T) { tt.Alike(point{1, 2}, point{2, 1}) }, false},
		{"unlike equal", func(tt *T) { tt.Unlike([]string{"a"}, []string{"a"}) }, false},
		{"exception without panic", func(tt *T) { tt.Exception(func() {}) }, false},
		{"execution with panic", func(tt *T) { tt.Execution(func() { panic("boom") }) }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHarness(t)
			tt := h.Start(tc.name)
			tc.run(tt)
			tt.End()

			as := tt.Assertions()
			require.Len(t, as, 1)
			assert.Equal(t, tc.want, as[0].Ok)
			if tc.want {
				assert.Nil(t, as[0].Diagnostics)
			} else {
				assert.NotNil(t, as[0].Diagnostics)
			}
		})
	}
}

func TestAssertions_ComparisonOnFailure(t *testing.T) {
	h, _ := newTestHarness(t)
	tt := h.Start("compare")
	tt.Is(1, 2)
	tt.Is(3, 3)
	tt.Execution(func() { panic("boom") })
	tt.End()

	as := tt.Assertions()
	require.Len(t, as, 3)
	require.NotNil(t, as[0].Comparison)
	assert.Equal(t, 2, as[0].Comparison.Expected)
	assert.Equal(t, 1, as[0].Comparison.Actual)
	assert.Nil(t, as[1].Comparison, "passing assertions carry no comparison")
	require.NotNil(t, as[2].Comparison)
	assert.Equal(t, "boom", as[2].Comparison.Actual)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "def", message(nil, "def"))
	assert.Equal(t, "one", message([]any{"one"}, "def"))
	assert.Equal(t, "42", message([]any{42}, "def"))
	assert.Equal(t, "a=1 b=x", message([]any{"a=%d b=%s", 1, "x"}, "def"))
}
