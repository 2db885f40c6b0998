package params

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/oralsim/internal/cohort"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/regression"
)

type rawCoefficient struct {
	Mean float64 `json:"mean"`
	SE   float64 `json:"se"`
}

type rawEstimate struct {
	Family string  `json:"family"`
	Mean   float64 `json:"mean"`
	SE     float64 `json:"se"`
}

type rawCovariate struct {
	Kind   string                    `json:"kind"`
	Mean   float64                   `json:"mean"`
	SE     float64                   `json:"se"`
	Levels map[string]rawCoefficient `json:"levels"`
}

type rawRegression struct {
	Intercept  rawCoefficient          `json:"intercept"`
	Sigma      rawCoefficient          `json:"sigma"`
	Covariates map[string]rawCovariate `json:"covariates"`
}

type rawLifeRow struct {
	Age    int     `json:"age"`
	Female float64 `json:"female"`
	Male   float64 `json:"male"`
}

type rawSet struct {
	Estimates   map[string]rawEstimate   `json:"estimates"`
	Regressions map[string]rawRegression `json:"regressions"`
	LifeTable   []rawLifeRow             `json:"lifeTable"`
}

// decode unifies value with the schema and builds the tables.
func decode(ctx *cue.Context, value cue.Value) (*Set, []error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, []error{convertCUEError(ErrCodeGeneric, err)}
	}

	v := value.Unify(schema)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var errs []error
		for _, e := range cueerrors.Errors(err) {
			errs = append(errs, convertCUEError(ErrCodeSchema, e))
		}
		if len(errs) == 0 {
			errs = append(errs, convertCUEError(ErrCodeSchema, err))
		}
		return nil, errs
	}

	var raw rawSet
	if err := v.Decode(&raw); err != nil {
		return nil, []error{convertCUEError(ErrCodeSchema, err)}
	}

	var errs []error
	set := &Set{}

	ests, estErrs := buildEstimates(raw.Estimates)
	errs = append(errs, estErrs...)
	set.Estimates = ests

	regs, regErrs := buildRegressions(raw.Regressions)
	errs = append(errs, regErrs...)
	set.Regressions = regs

	rows := make([]cohort.LifeRow, len(raw.LifeTable))
	for i, r := range raw.LifeTable {
		rows[i] = cohort.LifeRow{Age: float64(r.Age), Female: r.Female, Male: r.Male}
	}
	life, err := cohort.NewLifeTable(rows)
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeLifeTable, Message: err.Error()})
	}
	set.LifeTable = life

	if len(errs) > 0 {
		return nil, errs
	}
	return set, nil
}

func buildEstimates(raw map[string]rawEstimate) (*estimate.Table, []error) {
	var errs []error
	m := make(map[string]estimate.Estimate, len(raw))
	for _, name := range sortedKeys(raw) {
		r := raw[name]
		family, ok := estimate.ParseFamily(r.Family)
		if !ok {
			errs = append(errs, &LoadError{Code: ErrCodeEstimate, Message: fmt.Sprintf("estimates.%s: unknown family %q", name, r.Family)})
			continue
		}
		est := estimate.Estimate{Family: family, Mean: r.Mean, SE: r.SE}
		if err := est.Validate(name); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeEstimate, Message: fmt.Sprintf("estimates.%s: %v", name, err)})
			continue
		}
		m[name] = est
	}
	if len(errs) > 0 {
		return nil, errs
	}
	t, err := estimate.NewTable(m)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeEstimate, Message: err.Error()}}
	}
	return t, nil
}

func buildRegressions(raw map[string]rawRegression) (*regression.Table, []error) {
	specs := make([]regression.Spec, 0, len(raw))
	for _, name := range sortedKeys(raw) {
		r := raw[name]
		spec := regression.Spec{
			Name:      name,
			Intercept: regression.Coefficient(r.Intercept),
			Sigma:     regression.Coefficient(r.Sigma),
		}
		for _, cname := range sortedKeys(r.Covariates) {
			c := r.Covariates[cname]
			cov := regression.Covariate{Name: cname, Kind: regression.Kind(c.Kind)}
			switch cov.Kind {
			case regression.Continuous:
				cov.Coef = regression.Coefficient{Mean: c.Mean, SE: c.SE}
			case regression.Categorical:
				cov.Levels = make(map[string]regression.Coefficient, len(c.Levels))
				for level, coef := range c.Levels {
					cov.Levels[level] = regression.Coefficient(coef)
				}
			}
			spec.Covariates = append(spec.Covariates, cov)
		}
		specs = append(specs, spec)
	}

	t, err := regression.NewTable(specs)
	if err != nil {
		var errs []error
		for _, e := range unjoin(err) {
			errs = append(errs, &LoadError{Code: ErrCodeRegression, Message: e.Error()})
		}
		return nil, errs
	}
	return t, nil
}

// unjoin splits an errors.Join result.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
