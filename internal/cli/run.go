package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/metrics"
	"github.com/roach88/brittle/internal/store"
	"github.com/roach88/brittle/internal/suite"
)

// DefaultSuitePatterns are used when neither arguments nor the config file
// name any suites.
var DefaultSuitePatterns = []string{
	"**/*.suite.yaml",
	"**/*.suite.yml",
	"**/*.suite.json",
	"**/*.suite.cue",
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	MetricsFile string
	Timeout     time.Duration

	// IDGenerator allows overriding the run ID generator (for testing).
	// If nil, the harness uses UUIDv7.
	IDGenerator harness.IDGenerator

	// Clock allows overriding the harness clock (for testing).
	Clock harness.Clock
}

// NewRunCommand creates the run command. configure hooks adjust the
// options before the command runs (used by tests to pin clocks and IDs).
func NewRunCommand(rootOpts *RootOptions, configure ...func(*RunOptions)) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	for _, fn := range configure {
		fn(opts)
	}

	cmd := &cobra.Command{
		Use:   "run [pattern...]",
		Short: "Run suite files and print TAP",
		Long: `Run declarative suite files through one harness and print the
TAP version 13 report to stdout.

Patterns are doublestar globs ("**" matches any number of directories).
Without patterns, the suites listed in the config file are used, then
the defaults: ` + fmt.Sprint(DefaultSuitePatterns) + `.

Exit codes:
  0 - Every test passed
  1 - One or more tests failed
  2 - Command error (no suites, invalid suite, database error, etc.)

Examples:
  brittle run
  brittle run 'suites/**/*.yaml'
  brittle run --db ./brittle.db --metrics-file ./brittle.prom suites/core.suite.cue`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", harness.DefaultTimeout, "per-test timeout")

	return cmd
}

func runSuites(opts *RunOptions, patterns []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := applyConfig(opts, cfg, cmd); err != nil {
		return err
	}
	if len(patterns) == 0 {
		patterns = cfg.Suites
	}
	if len(patterns) == 0 {
		patterns = DefaultSuitePatterns
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	files, err := discoverSuites(patterns)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to discover suites", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no suite files match %v", patterns))
	}

	// Load everything first so that an invalid file aborts before any test runs.
	suites := make([]*suite.Suite, 0, len(files))
	for _, f := range files {
		s, err := suite.Load(f)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load suite", err)
		}
		suites = append(suites, s)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithTimeout(opts.Timeout),
	}
	if opts.IDGenerator != nil {
		hopts = append(hopts, harness.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Clock != nil {
		hopts = append(hopts, harness.WithClock(opts.Clock))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		hopts = append(hopts, harness.WithSink(store.NewRecorder(ctx, st)))
	}

	var collector *metrics.Collector
	if opts.MetricsFile != "" {
		collector = metrics.NewCollector()
		hopts = append(hopts, harness.WithSink(collector))
	}

	h := harness.New(cmd.OutOrStdout(), hopts...)
	for _, s := range suites {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "error", err)
			break
		}
		logger.Info("running suite", "suite", s.Name, "path", s.Path, "tests", len(s.Tests))
		suite.Run(h, s)
	}
	res := h.Finish()

	if err := h.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if collector != nil {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}
	if !res.Ok() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tests failed (run %s)",
			res.Summary.TestsTotal-res.Summary.TestsPassed, res.Summary.TestsTotal, res.RunID))
	}
	return nil
}

// applyConfig fills options from the config file unless set by flags.
func applyConfig(opts *RunOptions, cfg *Config, cmd *cobra.Command) error {
	if !cmd.Flags().Changed("timeout") {
		d, err := cfg.TimeoutDuration()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid config", err)
		}
		if d > 0 {
			opts.Timeout = d
		}
	}
	if !cmd.Flags().Changed("db") && cfg.DB != "" {
		opts.Database = cfg.DB
	}
	if !cmd.Flags().Changed("metrics-file") && cfg.MetricsFile != "" {
		opts.MetricsFile = cfg.MetricsFile
	}
	return nil
}

// discoverSuites expands patterns into a sorted, de-duplicated file list.
// A pattern without glob characters must name an existing file.
func discoverSuites(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, fmt.Errorf("suite file not found: %s", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
