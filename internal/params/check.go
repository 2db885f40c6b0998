package params

import (
	"fmt"
	"slices"

	"github.com/roach88/oralsim/internal/cohort"
	"github.com/roach88/oralsim/internal/engine"
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/nathist"
	"github.com/roach88/oralsim/internal/policy"
)

// RequiredEstimates lists every estimate the model may sample, sorted.
// Stage transitions are not included: see nathist.StageTimeParams.
func RequiredEstimates() []string {
	var names []string
	names = append(names, cohort.RequiredEstimates()...)
	names = append(names, nathist.RequiredEstimates()...)
	names = append(names, engine.UtilityParams...)
	names = append(names, policy.RequiredEstimates()...)
	slices.Sort(names)
	return slices.Compact(names)
}

// Check reports every parameter the model needs that the set does not
// define, and every regression covariate outside the entity schema.
func (s *Set) Check() []error {
	var errs []error
	for _, name := range s.Estimates.Missing(RequiredEstimates()) {
		errs = append(errs, &LoadError{
			Code:    ErrCodeMissingEstimate,
			Message: fmt.Sprintf("estimate %s is not defined", name),
		})
	}
	for _, name := range policy.RequiredRegressions() {
		if !s.Regressions.Has(name) {
			errs = append(errs, &LoadError{
				Code:    ErrCodeMissingRegression,
				Message: fmt.Sprintf("regression %s is not defined", name),
			})
		}
	}
	for _, name := range nathist.StageTimeParams() {
		if !s.Regressions.Has(name) && !s.Estimates.Has(name) {
			errs = append(errs, &LoadError{
				Code:    ErrCodeMissingStageTime,
				Message: fmt.Sprintf("stage transition %s is neither a regression nor an estimate", name),
			})
		}
	}
	for _, err := range s.Regressions.CheckSchema(entity.HasCovariate) {
		errs = append(errs, &LoadError{Code: ErrCodeUnknownCovariate, Message: err.Error()})
	}
	return errs
}
