// Package regression samples event times from parametric survival
// regressions.
//
// A specification holds an intercept, a scale parameter sigma, and one
// coefficient per covariate. Binding a specification to an entity gives a
// Weibull model with shape 1/sigma and scale exp(intercept + Σ coef·x).
// Covariate names must match the entity's covariate schema exactly; a
// missing attribute is an error, never a silent default.
package regression

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/roach88/oralsim/internal/simerr"
)

// Kind is how a covariate enters the linear predictor.
type Kind string

const (
	// Continuous covariates contribute coefficient × value.
	Continuous Kind = "continuous"
	// Categorical covariates contribute the coefficient of the entity's level.
	Categorical Kind = "categorical"
)

// Coefficient is a regression estimate. Only Mean enters the predictor;
// SE is carried for reporting.
type Coefficient struct {
	Mean float64
	SE   float64
}

// Covariate is one term of the linear predictor.
type Covariate struct {
	Name   string
	Kind   Kind
	Coef   Coefficient            // continuous
	Levels map[string]Coefficient // categorical
}

// Spec is one named regression.
type Spec struct {
	Name       string
	Intercept  Coefficient
	Sigma      Coefficient
	Covariates []Covariate // sorted by Name
}

// Table is an immutable set of regression specifications.
type Table struct {
	specs map[string]Spec
}

// NewTable validates and copies the given specifications. Covariates are
// put in name order so the predictor sums in a fixed order.
func NewTable(specs []Spec) (*Table, error) {
	t := &Table{specs: make(map[string]Spec, len(specs))}
	var errs []error
	for _, s := range specs {
		if err := validateSpec(s); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := t.specs[s.Name]; dup {
			errs = append(errs, simerr.InvalidParameter(s.Name, "duplicate regression specification"))
			continue
		}
		t.specs[s.Name] = copySpec(s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on invalid input.
func MustTable(specs ...Spec) *Table {
	t, err := NewTable(specs)
	if err != nil {
		panic(err)
	}
	return t
}

func validateSpec(s Spec) error {
	if s.Name == "" {
		return simerr.InvalidParameter("", "regression specification has no name")
	}
	if !(s.Sigma.Mean > 0) || math.IsInf(s.Sigma.Mean, 0) {
		return simerr.InvalidParameter(s.Name, fmt.Sprintf("sigma %v must be positive", s.Sigma.Mean))
	}
	if math.IsNaN(s.Intercept.Mean) || math.IsInf(s.Intercept.Mean, 0) {
		return simerr.InvalidParameter(s.Name, "intercept must be finite")
	}
	seen := map[string]bool{}
	for _, c := range s.Covariates {
		if seen[c.Name] {
			return simerr.InvalidParameter(s.Name, fmt.Sprintf("covariate %q listed twice", c.Name))
		}
		seen[c.Name] = true
		switch c.Kind {
		case Continuous:
		case Categorical:
			if len(c.Levels) == 0 {
				return simerr.InvalidParameter(s.Name, fmt.Sprintf("categorical covariate %q has no levels", c.Name))
			}
		default:
			return simerr.InvalidParameter(s.Name, fmt.Sprintf("covariate %q has unknown kind %q", c.Name, c.Kind))
		}
	}
	return nil
}

func copySpec(s Spec) Spec {
	cp := s
	cp.Covariates = make([]Covariate, len(s.Covariates))
	for i, c := range s.Covariates {
		cc := c
		if c.Levels != nil {
			cc.Levels = make(map[string]Coefficient, len(c.Levels))
			for k, v := range c.Levels {
				cc.Levels[k] = v
			}
		}
		cp.Covariates[i] = cc
	}
	sort.Slice(cp.Covariates, func(i, j int) bool {
		return cp.Covariates[i].Name < cp.Covariates[j].Name
	})
	return cp
}

// Lookup returns a copy of the named specification.
func (t *Table) Lookup(name string) (Spec, error) {
	s, ok := t.specs[name]
	if !ok {
		return Spec{}, simerr.UnknownParameter(name)
	}
	return copySpec(s), nil
}

// Has reports whether the table defines name.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.specs[name]
	return ok
}

// Names returns the specification names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckSchema reports every covariate that is not in the entity schema.
// Run it at startup so a typo fails the run before any entity is simulated.
func (t *Table) CheckSchema(known func(name string) bool) []error {
	var errs []error
	for _, name := range t.Names() {
		for _, c := range t.specs[name].Covariates {
			if !known(c.Name) {
				errs = append(errs, simerr.MissingCovariate(name, c.Name, "covariate is not an entity attribute"))
			}
		}
	}
	return errs
}

// WithInterceptShift returns a derived table in which the intercepts of the
// named specifications are increased by delta. The receiver is unchanged.
func (t *Table) WithInterceptShift(delta float64, names ...string) (*Table, error) {
	derived := &Table{specs: make(map[string]Spec, len(t.specs))}
	for name, s := range t.specs {
		derived.specs[name] = copySpec(s)
	}
	for _, name := range names {
		s, ok := derived.specs[name]
		if !ok {
			return nil, simerr.UnknownParameter(name)
		}
		s.Intercept.Mean += delta
		derived.specs[name] = s
	}
	return derived, nil
}
