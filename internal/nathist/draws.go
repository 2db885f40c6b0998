package nathist

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/regression"
	"github.com/roach88/oralsim/internal/simerr"
)

// Draws supplies every random quantity the generator consumes. ModelDraws
// is the production implementation; tests substitute fixed values.
type Draws interface {
	// Uniform returns a uniform draw in [0, 1).
	Uniform() float64

	// Sample draws the named estimate.
	Sample(name string) (float64, error)

	// RiskTier assigns the latent risk tier of a new OPL.
	RiskTier() (entity.OPLRisk, error)

	// OPLProgression draws the time from OPL onset to stage I cancer.
	OPLProgression(risk entity.OPLRisk) (float64, error)

	// StageTime draws a duration for the named transition.
	StageTime(e *entity.Entity, name string) (float64, error)
}

// Estimate names consumed by the generator.
const (
	ParamUtilOPLUndetected = "Util_OPL_Undetected"
	ParamOPLResolution     = "NatHist_timeOPL_NED"
	ParamRiskLow           = "NatHist_OPLrisk_low"
	ParamRiskMedium        = "NatHist_OPLrisk_med"
	ParamRiskHigh          = "NatHist_OPLrisk_hi"

	ParamStageISympt      = "NatHist_timeSympt_stageone"
	ParamStageIProgress   = "NatHist_timeStageone_stagetwo"
	ParamStageIISympt     = "NatHist_timeSympt_stagetwo"
	ParamStageIIProgress  = "NatHist_timeStagetwo_stagethree"
	ParamStageIIISympt    = "NatHist_timeSympt_stagethree"
	ParamStageIIIProgress = "NatHist_timeStagethree_stagefour"
	ParamStageIVSympt     = "NatHist_timeSympt_stagefour"
)

// progressionParams maps a risk tier to its five-year progression
// probability estimate.
var progressionParams = map[entity.OPLRisk]string{
	entity.RiskLow:    "time_OPLCan_lo",
	entity.RiskMedium: "time_OPLCan_med",
	entity.RiskHigh:   "time_OPLCan_hi",
}

// ProgressionParam returns the estimate name holding the five-year
// progression probability of the tier.
func ProgressionParam(risk entity.OPLRisk) (string, error) {
	name, ok := progressionParams[risk]
	if !ok {
		return "", simerr.MissingCovariate("OPLProgression", "OPLRisk", fmt.Sprintf("unknown risk tier %q", risk))
	}
	return name, nil
}

// ProgressionScale converts a five-year progression probability into the
// scale, in days, of an exponential time to progression:
//
//	λ = -ln(1-p5)/5, p_annual = 1-e^-λ, scale = 1 / (-ln(1-p_annual)/365)
//
// A probability of zero never progresses.
func ProgressionScale(p5 float64) (float64, error) {
	if math.IsNaN(p5) || p5 < 0 || p5 >= 1 {
		return 0, simerr.InvalidParameter("OPLProgression", fmt.Sprintf("five-year probability %v outside [0, 1)", p5))
	}
	if p5 == 0 {
		return entity.Never, nil
	}
	lambda := -math.Log(1-p5) / 5
	annual := 1 - math.Exp(-lambda)
	return 1 / (-math.Log(1-annual) / 365), nil
}

var stageIVBands = []struct {
	upper float64
	name  string
}{
	{50, "under50"},
	{60, "5059"},
	{70, "6069"},
	{80, "7079"},
	{math.Inf(1), "80plus"},
}

// StageIVDeathParam returns the estimate name for time from stage IV onset
// to death for the given sex and age at onset.
func StageIVDeathParam(sex entity.Sex, age float64) (string, error) {
	var s string
	switch sex {
	case entity.Female:
		s = "f"
	case entity.Male:
		s = "m"
	default:
		return "", simerr.MissingCovariate("StageIVDeath", "sex", fmt.Sprintf("unknown sex %q", sex))
	}
	for _, b := range stageIVBands {
		if age < b.upper {
			return "NatHist_timeStagefour_death" + b.name + s, nil
		}
	}
	return "", simerr.MissingCovariate("StageIVDeath", "age", fmt.Sprintf("age %v outside all bands", age))
}

// ModelDraws draws from an entity's estimate stream, preferring a
// regression specification over an estimate for stage transitions that
// have one.
type ModelDraws struct {
	Estimates   *estimate.Stream
	Regressions *regression.Table
}

// Uniform returns a uniform draw from the entity's stream.
func (d ModelDraws) Uniform() float64 {
	return d.Estimates.Uniform()
}

// Sample draws the named estimate.
func (d ModelDraws) Sample(name string) (float64, error) {
	return d.Estimates.Sample(name)
}

// RiskTier draws tier probabilities from a Dirichlet over the tier
// estimates, then picks a tier with a uniform draw.
func (d ModelDraws) RiskTier() (entity.OPLRisk, error) {
	probs, err := d.Estimates.Dirichlet(ParamRiskLow, ParamRiskMedium, ParamRiskHigh)
	if err != nil {
		return "", err
	}
	tiers := []entity.OPLRisk{entity.RiskLow, entity.RiskMedium, entity.RiskHigh}
	return tiers[estimate.Categorical(d.Estimates.Uniform(), probs)], nil
}

// OPLProgression draws an exponential time with the tier's scale.
func (d ModelDraws) OPLProgression(risk entity.OPLRisk) (float64, error) {
	name, err := ProgressionParam(risk)
	if err != nil {
		return 0, err
	}
	p5, err := d.Estimates.Sample(name)
	if err != nil {
		return 0, err
	}
	scale, err := ProgressionScale(p5)
	if err != nil {
		return 0, err
	}
	if entity.IsNever(scale) {
		return entity.Never, nil
	}
	return distuv.Exponential{Rate: 1 / scale, Src: d.Estimates.Rand()}.Rand(), nil
}

// StageTime uses the regression of the same name when one is configured.
func (d ModelDraws) StageTime(e *entity.Entity, name string) (float64, error) {
	if d.Regressions.Has(name) {
		return d.Regressions.SampleTime(name, e, d.Estimates.Rand())
	}
	return d.Estimates.Sample(name)
}

// RequiredEstimates lists the estimates the generator always samples.
func RequiredEstimates() []string {
	names := []string{ParamUtilOPLUndetected, ParamOPLResolution, ParamRiskLow, ParamRiskMedium, ParamRiskHigh}
	for _, risk := range []entity.OPLRisk{entity.RiskLow, entity.RiskMedium, entity.RiskHigh} {
		names = append(names, progressionParams[risk])
	}
	for _, sex := range []string{"f", "m"} {
		for _, b := range stageIVBands {
			names = append(names, "NatHist_timeStagefour_death"+b.name+sex)
		}
	}
	return names
}

// StageTimeParams lists the stage transitions. Each must be configured as
// a regression specification or as an estimate.
func StageTimeParams() []string {
	var names []string
	for _, s := range stages {
		names = append(names, s.sympt)
		if s.progress != "" {
			names = append(names, s.progress)
		}
	}
	return names
}
