// Package estimate provides the model's named parameter estimates.
//
// Each estimate is a (family, mean, standard error) triple. Sampling
// parameterizes the family by method of moments and draws from the caller's
// random source, so every entity can own an independent stream. Tables are
// immutable once built; scenario variants are derived copies.
package estimate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/oralsim/internal/simerr"
)

// Family selects the sampling distribution of an estimate.
type Family int

const (
	FamilyBeta                   Family = 1 // probability, from mean and SE
	FamilyNormal                 Family = 2 // absolute value when the mean is positive
	FamilyWeibull                Family = 3 // shape=Mean, scale=SE (1 when SE is zero)
	FamilyGamma                  Family = 4 // non-negative, from mean and SE
	FamilyDirichlet              Family = 5 // concentration; sampled jointly
	FamilyLogOdds                Family = 6 // normal on the log-odds scale
	FamilyTransformedExponential Family = 7 // annual probability turned into a time in days
	FamilyBetaDirect             Family = 8 // Beta(Mean, SE) parameters given directly
	FamilyStatic                 Family = 9 // Mean, no variation
)

var familyNames = map[Family]string{
	FamilyBeta:                   "beta",
	FamilyNormal:                 "normal",
	FamilyWeibull:                "weibull",
	FamilyGamma:                  "gamma",
	FamilyDirichlet:              "dirichlet",
	FamilyLogOdds:                "log-odds",
	FamilyTransformedExponential: "transformed-exponential",
	FamilyBetaDirect:             "beta-direct",
	FamilyStatic:                 "static",
}

func (f Family) String() string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily resolves a family by name ("beta", "weibull", ...).
func ParseFamily(name string) (Family, bool) {
	for f, n := range familyNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// MaxAnnualProbability caps the transition probability drawn by
// FamilyTransformedExponential so the hazard stays finite.
const MaxAnnualProbability = 0.9999

// Estimate is one named parameter.
type Estimate struct {
	Family Family
	Mean   float64
	SE     float64
}

// Validate checks that the estimate can be turned into a distribution.
// name is only used in the error.
func (e Estimate) Validate(name string) error {
	if math.IsNaN(e.Mean) || math.IsNaN(e.SE) || math.IsInf(e.Mean, 0) || math.IsInf(e.SE, 0) {
		return simerr.InvalidParameter(name, "mean and standard error must be finite")
	}
	if e.SE < 0 {
		return simerr.InvalidParameter(name, "standard error must be non-negative")
	}

	switch e.Family {
	case FamilyBeta, FamilyTransformedExponential:
		if e.Mean <= 0 || e.Mean >= 1 {
			return simerr.InvalidParameter(name, fmt.Sprintf("%s mean %v must lie in (0, 1)", e.Family, e.Mean))
		}
		if e.SE > 0 && e.SE*e.SE >= e.Mean*(1-e.Mean) {
			return simerr.InvalidParameter(name, fmt.Sprintf("%s standard error %v too large for mean %v", e.Family, e.SE, e.Mean))
		}
	case FamilyGamma, FamilyWeibull, FamilyDirichlet:
		if e.Mean <= 0 {
			return simerr.InvalidParameter(name, fmt.Sprintf("%s mean %v must be positive", e.Family, e.Mean))
		}
	case FamilyBetaDirect:
		if e.Mean <= 0 || e.SE <= 0 {
			return simerr.InvalidParameter(name, "beta parameters must be positive")
		}
	case FamilyNormal, FamilyLogOdds, FamilyStatic:
	default:
		return simerr.InvalidParameter(name, fmt.Sprintf("unknown family %d", int(e.Family)))
	}
	return nil
}

// betaMoments converts a mean and SE into Beta shape parameters.
func betaMoments(mean, se float64) (alpha, beta float64) {
	k := mean*(1-mean)/(se*se) - 1
	return mean * k, (1 - mean) * k
}

// Sample draws one value. Dirichlet estimates cannot be drawn alone; use
// Stream.Dirichlet.
func (e Estimate) Sample(name string, src rand.Source) (float64, error) {
	if err := e.Validate(name); err != nil {
		return 0, err
	}

	switch e.Family {
	case FamilyBeta:
		return sampleBeta(e.Mean, e.SE, src), nil

	case FamilyNormal:
		v := distuv.Normal{Mu: e.Mean, Sigma: e.SE, Src: src}.Rand()
		if e.Mean > 0 {
			return math.Abs(v), nil
		}
		return v, nil

	case FamilyWeibull:
		scale := e.SE
		if scale == 0 {
			scale = 1
		}
		return distuv.Weibull{K: e.Mean, Lambda: scale, Src: src}.Rand(), nil

	case FamilyGamma:
		if e.SE == 0 {
			return e.Mean, nil
		}
		shape := e.Mean * e.Mean / (e.SE * e.SE)
		scale := e.SE * e.SE / e.Mean
		// distuv.Gamma takes a rate.
		return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: src}.Rand(), nil

	case FamilyDirichlet:
		return 0, simerr.InvalidParameter(name, "dirichlet estimates are sampled jointly")

	case FamilyLogOdds:
		lo := distuv.Normal{Mu: e.Mean, Sigma: e.SE, Src: src}.Rand()
		return 1 / (1 + math.Exp(-lo)), nil

	case FamilyTransformedExponential:
		tp := math.Min(sampleBeta(e.Mean, e.SE, src), MaxAnnualProbability)
		rate := -math.Log(1-tp) / 365
		return distuv.Exponential{Rate: rate, Src: src}.Rand(), nil

	case FamilyBetaDirect:
		return distuv.Beta{Alpha: e.Mean, Beta: e.SE, Src: src}.Rand(), nil

	default: // FamilyStatic
		return e.Mean, nil
	}
}

func sampleBeta(mean, se float64, src rand.Source) float64 {
	if se == 0 {
		return mean
	}
	a, b := betaMoments(mean, se)
	return distuv.Beta{Alpha: a, Beta: b, Src: src}.Rand()
}
