package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/batch"
	"github.com/roach88/oralsim/internal/config"
	"github.com/roach88/oralsim/internal/engine"
	"github.com/roach88/oralsim/internal/trace"
)

// traceRunID names the entities simulated by the trace command.
const traceRunID = "trace"

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Params       string
	Seed         uint64
	Index        int
	SurgeryShift float64
	MaxSteps     int
}

// TraceOutput is the JSON payload of the trace command.
type TraceOutput struct {
	Index  int             `json:"index"`
	Seed   uint64          `json:"seed"`
	Digest string          `json:"digest"`
	Entity json.RawMessage `json:"entity"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Simulate one entity and print its path",
		Long: `Simulate a single entity and print its attributes, natural history,
events, resources and utility changes.

The entity is the one a batch run with the same seed and parameters
simulates at --index, so its digest matches the stored record.

Examples:
  oralsim trace --seed 42 --index 17
  oralsim trace --params ./params --index 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	addParamsFlag(cmd, &opts.Params)
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVarP(&opts.Index, "index", "i", 0, "entity index within the run")
	cmd.Flags().Float64Var(&opts.SurgeryShift, "surgery-shift", 0, "shift of the surgery choice log-odds")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "event limit per entity")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if opts.Index < 0 {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			NewExitError(ExitCommandError, fmt.Sprintf("index must not be negative, got %d", opts.Index)))
	}

	set, err := loadCheckedParams(opts.Params)
	if err != nil {
		return reportError(opts.RootOptions, cmd, errorCode(err), err)
	}

	cfg := config.Config{
		Entities:      opts.Index + 1,
		Workers:       1,
		Seed:          opts.Seed,
		MaxSteps:      opts.MaxSteps,
		LoopCeiling:   engine.DefaultLoopCeiling,
		ErrorRateWarn: 1,
		SurgeryShift:  opts.SurgeryShift,
	}
	runner, err := batch.New(set, cfg, batch.WithLogger(logger))
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			WrapExitError(ExitCommandError, "failed to start simulation", err))
	}

	cp, err := runner.CohortParams()
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			WrapExitError(ExitFailure, "failed to sample cohort parameters", err))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	e, err := runner.Entity(ctx, traceRunID, opts.Index, cp)
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			WrapExitError(ExitFailure, "simulation failed", err))
	}

	if opts.Format == "json" {
		data, err := trace.Canonical(e)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode entity", err)
		}
		digest, err := trace.Digest(e)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to digest entity", err)
		}
		out := TraceOutput{Index: opts.Index, Seed: opts.Seed, Digest: digest, Entity: data}
		return (&OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}).Success(out)
	}

	if err := trace.WriteText(cmd.OutOrStdout(), e); err != nil {
		return WrapExitError(ExitFailure, "failed to write trace", err)
	}
	if e.Err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "error  %v\n", e.Err)
	}
	return nil
}
