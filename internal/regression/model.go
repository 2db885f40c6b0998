package regression

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// Covariates supplies attribute values to a regression. *entity.Entity
// implements it.
type Covariates interface {
	Covariate(name string) (entity.Covariate, bool)
}

// Model is a specification bound to one entity's covariates.
type Model struct {
	Spec  string
	Mu    float64
	Shape float64
	Scale float64
}

// Bind evaluates the named specification's linear predictor for the
// entity.
func (t *Table) Bind(name string, cov Covariates) (Model, error) {
	s, ok := t.specs[name]
	if !ok {
		return Model{}, simerr.UnknownParameter(name)
	}

	mu := s.Intercept.Mean
	for _, c := range s.Covariates {
		v, ok := cov.Covariate(c.Name)
		if !ok {
			return Model{}, simerr.MissingCovariate(name, c.Name, "entity has no value for covariate")
		}
		switch c.Kind {
		case Continuous:
			if v.Categorical {
				return Model{}, simerr.MissingCovariate(name, c.Name, "continuous coefficient for a categorical attribute")
			}
			mu += c.Coef.Mean * v.Value
		case Categorical:
			coef, ok := c.Levels[categoricalLevel(v)]
			if !ok {
				return Model{}, simerr.MissingCovariate(name, c.Name,
					fmt.Sprintf("no coefficient for level %q", categoricalLevel(v)))
			}
			mu += coef.Mean
		}
	}

	m := Model{
		Spec:  name,
		Mu:    mu,
		Shape: 1 / s.Sigma.Mean,
		Scale: math.Exp(mu),
	}
	if math.IsNaN(m.Mu) {
		return Model{}, simerr.InvalidParameter(name, "linear predictor is not a number")
	}
	return m, nil
}

// categoricalLevel renders a numeric attribute as a level name so that
// dummy-coded numeric attributes can be used as categories.
func categoricalLevel(v entity.Covariate) string {
	if v.Categorical {
		return v.Level
	}
	return fmt.Sprintf("%g", v.Value)
}

func (m Model) weibull(src rand.Source) distuv.Weibull {
	return distuv.Weibull{K: m.Shape, Lambda: m.Scale, Src: src}
}

// SampleTime draws a time to event in days.
func (m Model) SampleTime(src rand.Source) float64 {
	return m.weibull(src).Rand()
}

// Survival returns the probability that no event has happened by t.
func (m Model) Survival(t float64) float64 {
	return m.weibull(nil).Survival(t)
}

// SampleTime binds the named specification and draws a time to event.
func (t *Table) SampleTime(name string, cov Covariates, src rand.Source) (float64, error) {
	m, err := t.Bind(name, cov)
	if err != nil {
		return 0, err
	}
	return m.SampleTime(src), nil
}
