package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/batch"
	"github.com/roach88/oralsim/internal/config"
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/sink"
	"github.com/roach88/oralsim/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Params       string
	Entities     int
	Workers      int
	Seed         uint64
	Database     string
	MetricsFile  string
	SurgeryShift float64
	MaxSteps     int

	// RunIDs overrides the run ID generator (for testing). If nil, runs
	// get UUIDv7 IDs.
	RunIDs batch.RunIDGenerator
}

// RunReport is the output of a finished batch.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Seed     uint64       `json:"seed"`
	Entities int          `json:"entities"`
	Workers  int          `json:"workers"`
	Database string       `json:"database,omitempty"`
	Duration string       `json:"duration"`
	Summary  sink.Summary `json:"summary"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a cohort",
		Long: `Simulate a cohort of entities and print a summary of their outcomes.

Settings come from OSIM_* environment variables; flags given on the
command line take precedence. Entities run in parallel on independent
random streams, so a seed reproduces the same records for any worker
count. With --db every entity record is stored in a SQLite database
for later replay.

Examples:
  oralsim run --entities 10000 --seed 42
  oralsim run --params ./params --db ./runs.db --workers 8
  OSIM_ENTITIES=500 oralsim run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd)
		},
	}

	addParamsFlag(cmd, &opts.Params)
	cmd.Flags().IntVarP(&opts.Entities, "entities", "n", 0, "number of entities (env OSIM_ENTITIES)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "parallel workers (env OSIM_WORKERS, default: CPUs)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (env OSIM_SEED)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store records in this SQLite database (env OSIM_DB)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file (env OSIM_METRICS_FILE)")
	cmd.Flags().Float64Var(&opts.SurgeryShift, "surgery-shift", 0, "shift of the surgery choice log-odds (env OSIM_SURGERY_SHIFT)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "event limit per entity (env OSIM_MAX_STEPS)")

	return cmd
}

// resolveConfig reads the environment and applies the flags that were set.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.ParseEnv()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("entities") {
		cfg.Entities = opts.Entities
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.MetricsFile
	}
	if flags.Changed("surgery-shift") {
		cfg.SurgeryShift = opts.SurgeryShift
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = opts.MaxSteps
	}
	return cfg, cfg.Validate()
}

func runBatch(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			WrapExitError(ExitCommandError, "invalid configuration", err))
	}

	set, err := loadCheckedParams(opts.Params)
	if err != nil {
		return reportError(opts.RootOptions, cmd, errorCode(err), err)
	}

	runOpts := []batch.Option{
		batch.WithLogger(logger),
		batch.WithParamsSource(opts.Params),
	}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, batch.WithRunIDGenerator(opts.RunIDs))
	}

	if cfg.Database != "" {
		logger.Info("opening database", "path", cfg.Database)
		st, err := store.Open(cfg.Database)
		if err != nil {
			return reportError(opts.RootOptions, cmd, ErrCodeStoreFailed,
				WrapExitError(ExitCommandError, "failed to open database", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, batch.WithSink(st))
	}

	metrics := batch.NewMetrics()
	runOpts = append(runOpts, batch.WithMetrics(metrics))

	runner, err := batch.New(set, cfg, runOpts...)
	if err != nil {
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed,
			WrapExitError(ExitCommandError, "failed to start batch", err))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	res, err := runner.Run(ctx)
	if err != nil {
		code := ExitFailure
		if ctx.Err() != nil {
			code = ExitCommandError
		}
		return reportError(opts.RootOptions, cmd, ErrCodeRunFailed, WrapExitError(code, "batch failed", err))
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("error writing metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	report := RunReport{
		RunID:    res.RunID,
		Seed:     cfg.Seed,
		Entities: cfg.Entities,
		Workers:  cfg.Workers,
		Database: cfg.Database,
		Duration: res.Duration.Round(time.Millisecond).String(),
		Summary:  res.Summary,
	}
	if opts.Format == "json" {
		return (&OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}).Success(report)
	}
	writeRunReport(cmd.OutOrStdout(), report)
	return nil
}

func writeRunReport(w io.Writer, r RunReport) {
	s := r.Summary
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	fmt.Fprintf(w, "  seed %d, %d entities, %d workers, %s\n", r.Seed, r.Entities, r.Workers, r.Duration)
	if r.Database != "" {
		fmt.Fprintf(w, "  stored in %s\n", r.Database)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Outcomes")
	for _, dt := range []entity.DeathType{entity.DeathNatural, entity.DeathDisease, entity.DeathCensored} {
		fmt.Fprintf(w, "  %-16s %d\n", dt, s.Deaths[dt])
	}
	fmt.Fprintf(w, "  %-16s %d\n", "error", s.Errors)
	fmt.Fprintf(w, "  %-16s %.2f (sd %.2f)\n", "mean exit age", s.DeathAgeMean, s.DeathAgeSD)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Disease")
	fmt.Fprintf(w, "  %-16s %d\n", "with OPL", s.WithOPL)
	fmt.Fprintf(w, "  %-16s %d\n", "cancers", s.Cancers)
	stages := make([]string, 0, len(s.CancersByStage))
	for stage := range s.CancersByStage {
		stages = append(stages, stage)
	}
	slices.Sort(stages)
	for _, stage := range stages {
		fmt.Fprintf(w, "    %-14s %d\n", stage, s.CancersByStage[stage])
	}
	fmt.Fprintf(w, "  %-16s %d\n", "screen detected", s.ScreenDetected)
	fmt.Fprintf(w, "  %-16s %d\n", "recurrences", s.Recurrences)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Screening")
	fmt.Fprintf(w, "  %-16s %d\n", "dental visits", s.DentalVisits)
	fmt.Fprintf(w, "  %-16s %d\n", "false positives", s.FalsePositives)
	fmt.Fprintf(w, "  %-16s %d\n", "false negatives", s.FalseNegatives)

	if s.Errors > 0 {
		codes := make([]string, 0, len(s.ErrorsByCode))
		for code := range s.ErrorsByCode {
			codes = append(codes, string(code))
		}
		slices.Sort(codes)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors")
		for _, code := range codes {
			fmt.Fprintf(w, "  %-20s %d\n", code, s.ErrorsByCode[simerr.Code(code)])
		}
	}
}
