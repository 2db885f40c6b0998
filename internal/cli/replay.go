package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/batch"
	"github.com/roach88/oralsim/internal/config"
	"github.com/roach88/oralsim/internal/params"
	"github.com/roach88/oralsim/internal/sink"
	"github.com/roach88/oralsim/internal/store"
)

// Replay modes.
const (
	ReplayStored  = "stored"  // re-simulate a stored run and compare digests
	ReplayWorkers = "workers" // compare a serial run with a parallel one
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional, defaults to the most recent run
	Params   string
	Entities int
	Seed     uint64
	Workers  int
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Mode          string           `json:"mode"`
	RunID         string           `json:"run_id,omitempty"`
	Seed          uint64           `json:"seed"`
	Entities      int              `json:"entities"`
	Workers       int              `json:"workers"`
	Mismatches    []store.Mismatch `json:"mismatches"`
	Deterministic bool             `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify that runs are reproducible",
		Long: `Verify that simulation output depends only on the seed and parameters.

With --db the stored run (the most recent, or --run) is simulated again
with its recorded seed, entity count and parameter directory, and every
entity's record digest is compared with the stored one.

Without --db a batch is simulated twice, once on a single worker and
once on --workers workers, and the two sets of digests are compared.

Exit codes:
  0 - Every entity reproduced exactly
  1 - Digests differ
  2 - Command error (database not found, run not found, etc.)

Examples:
  oralsim replay --db ./runs.db
  oralsim replay --db ./runs.db --run 0192f0c4-...
  oralsim replay --entities 500 --seed 42 --workers 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database of stored runs")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific stored run")
	addParamsFlag(cmd, &opts.Params)
	cmd.Flags().IntVarP(&opts.Entities, "entities", "n", 200, "number of entities without --db")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed without --db")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 4, "parallel workers")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx, stop := signalContext(cmd, logger)
	defer stop()

	var (
		result ReplayResult
		err    error
	)
	if opts.Database != "" {
		result, err = replayStored(ctx, opts, cmd, logger)
	} else {
		result, err = replayWorkers(ctx, opts, logger)
	}
	if err != nil {
		code := ErrCodeRunFailed
		if errors.Is(err, store.ErrRunNotFound) {
			code = ErrCodeStoreFailed
		} else if c := errorCode(err); c != params.ErrCodeGeneric {
			code = c
		}
		return reportError(opts.RootOptions, cmd, code, err)
	}

	if opts.Format == "json" {
		var failure *CLIError
		if !result.Deterministic {
			failure = &CLIError{
				Code:    ErrCodeNondeterministic,
				Message: fmt.Sprintf("%d entities differ", len(result.Mismatches)),
			}
		}
		if err := (&OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}).Report(result, failure); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayStored re-simulates a stored run and compares it with the store.
func replayStored(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command, logger *slog.Logger) (ReplayResult, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return ReplayResult{}, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return ReplayResult{}, WrapExitError(ExitCommandError, "failed to find run", err)
	}

	workers := run.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.Workers
	}
	logger.Info("replaying stored run", "run", run.ID, "seed", run.Seed, "entities", run.Entities, "workers", workers)

	digests, err := simulateDigests(ctx, run.Params, run.Seed, run.Entities, workers, logger)
	if err != nil {
		return ReplayResult{}, err
	}
	mismatches, err := st.VerifyDigests(ctx, run.ID, digests)
	if err != nil {
		return ReplayResult{}, WrapExitError(ExitCommandError, "failed to read stored digests", err)
	}

	return ReplayResult{
		Mode:          ReplayStored,
		RunID:         run.ID,
		Seed:          run.Seed,
		Entities:      run.Entities,
		Workers:       workers,
		Mismatches:    mismatches,
		Deterministic: len(mismatches) == 0,
	}, nil
}

// replayWorkers simulates the same batch serially and in parallel.
func replayWorkers(ctx context.Context, opts *ReplayOptions, logger *slog.Logger) (ReplayResult, error) {
	if opts.Workers < 1 {
		return ReplayResult{}, NewExitError(ExitCommandError, fmt.Sprintf("workers must be at least 1, got %d", opts.Workers))
	}
	serial, err := simulateDigests(ctx, opts.Params, opts.Seed, opts.Entities, 1, logger)
	if err != nil {
		return ReplayResult{}, err
	}
	parallel, err := simulateDigests(ctx, opts.Params, opts.Seed, opts.Entities, opts.Workers, logger)
	if err != nil {
		return ReplayResult{}, err
	}

	mismatches := store.CompareDigests(serial, parallel)
	return ReplayResult{
		Mode:          ReplayWorkers,
		Seed:          opts.Seed,
		Entities:      opts.Entities,
		Workers:       opts.Workers,
		Mismatches:    mismatches,
		Deterministic: len(mismatches) == 0,
	}, nil
}

func selectRun(ctx context.Context, st *store.Store, id string) (sink.Run, error) {
	if id != "" {
		return st.ReadRun(ctx, id)
	}
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return sink.Run{}, err
	}
	if len(runs) == 0 {
		return sink.Run{}, fmt.Errorf("database holds no runs: %w", store.ErrRunNotFound)
	}
	return runs[0], nil
}

// simulateDigests runs a batch into memory and returns its record digests.
// Engine limits and the surgery shift come from the environment, as for
// the run command.
func simulateDigests(ctx context.Context, paramsDir string, seed uint64, entities, workers int, logger *slog.Logger) (map[int]string, error) {
	set, err := loadCheckedParams(paramsDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.ParseEnv()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg.Seed = seed
	cfg.Entities = entities
	cfg.Workers = workers
	cfg.Database = ""

	runner, err := batch.New(set, cfg, batch.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start batch", err)
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "batch failed", err)
	}
	return res.Digests, nil
}

func writeReplayText(w io.Writer, r ReplayResult, verbose bool) {
	switch r.Mode {
	case ReplayStored:
		fmt.Fprintf(w, "Replay of run %s: %d entities, seed %d, %d workers\n", r.RunID, r.Entities, r.Seed, r.Workers)
	default:
		fmt.Fprintf(w, "Replay of seed %d: %d entities, 1 worker vs %d workers\n", r.Seed, r.Entities, r.Workers)
	}
	fmt.Fprintln(w)

	limit := 10
	if verbose {
		limit = len(r.Mismatches)
	}
	for i, m := range r.Mismatches {
		if i == limit {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Mismatches)-limit)
			break
		}
		switch {
		case m.Want == "":
			fmt.Fprintf(w, "✗ entity %d: not in the original run\n", m.Index)
		case m.Got == "":
			fmt.Fprintf(w, "✗ entity %d: missing from the replay\n", m.Index)
		default:
			fmt.Fprintf(w, "✗ entity %d: digest %s, replayed %s\n", m.Index, m.Want, m.Got)
		}
	}
	if len(r.Mismatches) > 0 {
		fmt.Fprintln(w)
	}

	if r.Deterministic {
		fmt.Fprintln(w, "✓ All entities reproduced")
		return
	}
	fmt.Fprintf(w, "✗ Determinism verification failed: %d entities differ\n", len(r.Mismatches))
}
