package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/testutil"
)

func TestRecorder_StoresRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var out bytes.Buffer
	h := harness.New(&out,
		harness.WithClock(testutil.NewFrozenClock()),
		harness.WithRunID("recorded-run"),
		harness.WithSink(NewRecorder(ctx, s)),
	)
	h.Test("passes", func(tt *harness.T) {
		tt.Pass()
		tt.End()
	})
	h.Test("child fails", func(tt *harness.T) {
		tt.Pass()
		tt.Test("child", func(c *harness.T) {
			c.Pass()
			c.Pass()
		})
		tt.End()
	})
	res := h.Finish()
	require.False(t, res.Ok())

	run, err := s.ReadRun(ctx, "recorded-run")
	require.NoError(t, err)
	assert.Equal(t, harness.ExitFailure, run.ExitCode)
	assert.Equal(t, testutil.Epoch, run.StartedAt)
	assert.Equal(t, 2, run.TestsPassed)
	assert.Equal(t, 3, run.TestsTotal)
	assert.Equal(t, 4, run.AssertsTotal)
	assert.Equal(t, out.String(), run.TAP, "stored report matches streamed report")

	tests, err := s.ReadTests(ctx, "recorded-run")
	require.NoError(t, err)
	require.Len(t, tests, 2)
	assert.True(t, tests[0].Ok)
	assert.Equal(t, 1, tests[0].AssertsTotal)
	assert.False(t, tests[1].Ok, "a failing child fails the stored test")
	assert.Equal(t, 3, tests[1].AssertsPassed)
	assert.Equal(t, 3, tests[1].AssertsTotal)
}
