package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/brittle/internal/store"
	"github.com/roach88/brittle/internal/tap"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// RunSummary is the JSON view of a stored run.
type RunSummary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	Ok             bool      `json:"ok"`
	ExitCode       int       `json:"exit_code"`
	TestsPassed    int       `json:"tests_passed"`
	TestsTotal     int       `json:"tests_total"`
	AssertsPassed  int       `json:"asserts_passed"`
	AssertsTotal   int       `json:"asserts_total"`
	ElapsedMs      float64   `json:"elapsed_ms"`
	LateAssertions int       `json:"late_assertions,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with "brittle run --db", most recent first.

Examples:
  brittle history --db ./brittle.db
  brittle history --db ./brittle.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := openHistory(opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		out := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		summaries := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			summaries = append(summaries, summarize(r))
		}
		return out.Success(summaries)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"RUN ID", "STARTED", "RESULT", "TESTS", "ASSERTS", "TIME"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "ASSERTS", Align: text.AlignRight},
		{Name: "TIME", Align: text.AlignRight},
	})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			verdict(r.ExitCode == 0),
			fmt.Sprintf("%d/%d", r.TestsPassed, r.TestsTotal),
			fmt.Sprintf("%d/%d", r.AssertsPassed, r.AssertsTotal),
			tap.FormatElapsed(r.Elapsed),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "RUNS", len(runs)})
	t.Render()
	return nil
}

// openHistory opens an existing history database. The path comes from
// the flag, then the config file.
func openHistory(opts *RootOptions, path string, cmd *cobra.Command) (*store.Store, error) {
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.DB
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "database path required (--db or db in config)")
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	newLogger(opts, cmd.ErrOrStderr()).Debug("opened history", "db", path)
	return st, nil
}

func summarize(r store.Run) RunSummary {
	return RunSummary{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		Ok:             r.ExitCode == 0,
		ExitCode:       r.ExitCode,
		TestsPassed:    r.TestsPassed,
		TestsTotal:     r.TestsTotal,
		AssertsPassed:  r.AssertsPassed,
		AssertsTotal:   r.AssertsTotal,
		ElapsedMs:      float64(r.Elapsed) / float64(time.Millisecond),
		LateAssertions: r.LateAssertions,
	}
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "not ok"
}
