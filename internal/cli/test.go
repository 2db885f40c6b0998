package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/harness"
	"github.com/roach88/oralsim/internal/params"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files",
		Long: `Run YAML scenarios through the simulation and check their assertions.

Each scenario simulates one entity under optional parameter overrides
and asserts on its trace and final state. A relative params directory
in a scenario resolves against the scenario file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad filter, etc.)

Examples:
  oralsim test ./testdata/scenarios
  oralsim test ./testdata/scenarios --filter "opl_*"
  oralsim test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return reportError(opts.RootOptions, cmd, params.ErrCodeNotFound,
			NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir)))
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx, stop := signalContext(cmd, logger)
	defer stop()

	result, err := harness.RunSuite(ctx, dir, opts.Filter)
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeTestFailed,
			WrapExitError(ExitCommandError, "failed to run scenarios", err))
	}

	if opts.Format == "json" {
		var failure *CLIError
		if result.Failed > 0 {
			failure = &CLIError{
				Code:    ErrCodeTestFailed,
				Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
			}
		}
		if err := (&OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}).Report(result, failure); err != nil {
			return err
		}
	} else {
		writeTestText(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func writeTestText(w io.Writer, result *harness.SuiteResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
