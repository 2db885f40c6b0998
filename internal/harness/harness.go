package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/oralsim/internal/batch"
	"github.com/roach88/oralsim/internal/config"
	"github.com/roach88/oralsim/internal/engine"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/params"
	"github.com/roach88/oralsim/internal/sink"
	"github.com/roach88/oralsim/internal/trace"
)

// RunID is the run identifier of every scenario run. Digests do not
// depend on it.
const RunID = "scenario"

// Run executes a scenario and returns the result.
//
// The entity is simulated exactly as entity Index of a batch run with
// Seed would be, on the scenario's parameter set with the overrides
// applied. An error is returned only when the scenario cannot run; a
// simulation ending in the error state is an ordinary result that
// assertions can check.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	set, err := loadParams(scenario)
	if err != nil {
		return nil, err
	}

	cfg := config.Config{
		Entities:      scenario.Index + 1,
		Workers:       1,
		Seed:          scenario.Seed,
		MaxSteps:      engine.DefaultMaxSteps,
		LoopCeiling:   engine.DefaultLoopCeiling,
		ErrorRateWarn: 1,
		SurgeryShift:  scenario.SurgeryShift,
	}
	runner, err := batch.New(set, cfg,
		batch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		batch.WithParamsSource(scenario.Params),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	cp, err := runner.CohortParams()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: sample cohort parameters: %w", scenario.Name, err)
	}
	e, err := runner.Entity(ctx, RunID, scenario.Index, cp)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	rec, err := sink.NewRecord(RunID, e)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult(e, rec)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadParams loads the scenario's parameter set and fixes the overridden
// estimates to static values.
func loadParams(scenario *Scenario) (*params.Set, error) {
	var (
		set  *params.Set
		errs []error
	)
	if scenario.Params == "" {
		set, errs = params.Default()
	} else {
		set, errs = params.Load(scenario.Params)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("scenario %s: load parameters: %w", scenario.Name, errs[0])
	}
	if len(scenario.Overrides) == 0 {
		return set, nil
	}

	overrides := make(map[string]estimate.Estimate, len(scenario.Overrides))
	for name, v := range scenario.Overrides {
		if !set.Estimates.Has(name) {
			return nil, fmt.Errorf("scenario %s: override of unknown estimate %q", scenario.Name, name)
		}
		overrides[name] = estimate.Estimate{Family: estimate.FamilyStatic, Mean: v}
	}
	table, err := set.Estimates.With(overrides)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: apply overrides: %w", scenario.Name, err)
	}
	out := *set
	out.Estimates = table
	return &out, nil
}

func formatTime(t float64) string {
	return string(trace.Clock(t))
}
