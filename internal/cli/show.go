package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brittle/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// RunDetail is the JSON view of one stored run and its tests.
type RunDetail struct {
	RunSummary
	Tests []TestSummary `json:"tests"`
	TAP   string        `json:"tap"`
}

// TestSummary is the JSON view of a stored top-level test.
type TestSummary struct {
	Number        int     `json:"number"`
	Name          string  `json:"name"`
	Ok            bool    `json:"ok"`
	AssertsPassed int     `json:"asserts_passed"`
	AssertsTotal  int     `json:"asserts_total"`
	ElapsedMs     float64 `json:"elapsed_ms"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded TAP report",
		Long: `Print the TAP report of a recorded run exactly as it was streamed.

Examples:
  brittle show --db ./brittle.db 0190f0c4-8d2e-7b8a-9c1d-2e3f4a5b6c7d
  brittle show --db ./brittle.db <run-id> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	st, err := openHistory(opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(cmd.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format != "json" {
		_, err := io.WriteString(cmd.OutOrStdout(), run.TAP)
		return err
	}

	tests, err := st.ReadTests(cmd.Context(), runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read tests", err)
	}
	detail := RunDetail{RunSummary: summarize(run), TAP: run.TAP, Tests: make([]TestSummary, 0, len(tests))}
	for _, t := range tests {
		detail.Tests = append(detail.Tests, TestSummary{
			Number:        t.Number,
			Name:          t.Name,
			Ok:            t.Ok,
			AssertsPassed: t.AssertsPassed,
			AssertsTotal:  t.AssertsTotal,
			ElapsedMs:     float64(t.Elapsed) / float64(time.Millisecond),
		})
	}
	out := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	return out.Success(detail)
}
