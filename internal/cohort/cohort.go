// Package cohort applies entry demographics to new entities.
//
// Prevalences of smoking, heavy alcohol use and dental care are properties
// of the cohort: they are sampled once per run with SampleParams and shared
// by every entity. Everything else is drawn per entity from the entity's
// own estimate stream, in a fixed order.
package cohort

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/simerr"
)

// Cohort-level estimates.
const (
	ParamSmokingMale   = "Prev_smoking_M"
	ParamSmokingFemale = "Prev_smoking_F"
	ParamAlcoholMale   = "Prev_alcohol_M"
	ParamAlcoholFemale = "Prev_alcohol_F"
	ParamDentist       = "Prev_dentist"
	ParamCompliance    = "Screen_compliance"
	ParamHorizon       = "timehorizon"
)

// Entity-level estimates.
const (
	ParamStartAge      = "Prev_startage"
	ParamUtilWell      = "Util_Well"
	ParamOPLConversion = "NatHist_prevOPLconversion"
)

var oplBands = []struct {
	upper float64
	name  string
}{
	{50, "under50"},
	{60, "5059"},
	{70, "6069"},
	{80, "7079"},
	{math.Inf(1), "80plus"},
}

// OPLPrevalenceParam returns the estimate name holding the prevalence of
// OPL at entry for the given sex and age.
func OPLPrevalenceParam(sex entity.Sex, age float64) (string, error) {
	var s string
	switch sex {
	case entity.Female:
		s = "f"
	case entity.Male:
		s = "m"
	default:
		return "", simerr.MissingCovariate("OPLPrevalence", "sex", fmt.Sprintf("unknown sex %q", sex))
	}
	for _, b := range oplBands {
		if age < b.upper {
			return "NatHist_prevOPL" + b.name + s, nil
		}
	}
	return "", simerr.MissingCovariate("OPLPrevalence", "age", fmt.Sprintf("age %v outside all bands", age))
}

// RequiredEstimates lists every estimate the cohort reads.
func RequiredEstimates() []string {
	names := []string{
		ParamSmokingMale, ParamSmokingFemale, ParamAlcoholMale, ParamAlcoholFemale,
		ParamDentist, ParamCompliance, ParamHorizon,
		ParamStartAge, ParamUtilWell, ParamOPLConversion,
	}
	for _, b := range oplBands {
		names = append(names, "NatHist_prevOPL"+b.name+"f", "NatHist_prevOPL"+b.name+"m")
	}
	return names
}

// Params are the cohort-level quantities shared by every entity of a run.
type Params struct {
	SmokingMale   float64
	SmokingFemale float64
	AlcoholMale   float64
	AlcoholFemale float64
	// Access is the probability that an entity sees a dentist who screens:
	// dental care prevalence times screening compliance.
	Access float64
	// Horizon is the model time horizon in days.
	Horizon float64
}

// SampleParams draws the cohort-level quantities.
func SampleParams(p estimate.Provider) (Params, error) {
	var out Params
	var dentist, compliance, years float64
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{ParamSmokingMale, &out.SmokingMale},
		{ParamSmokingFemale, &out.SmokingFemale},
		{ParamAlcoholMale, &out.AlcoholMale},
		{ParamAlcoholFemale, &out.AlcoholFemale},
		{ParamDentist, &dentist},
		{ParamCompliance, &compliance},
		{ParamHorizon, &years},
	} {
		v, err := p.Sample(f.name)
		if err != nil {
			return Params{}, err
		}
		*f.dst = v
	}
	if !(years > 0) {
		return Params{}, simerr.InvalidParameter(ParamHorizon, fmt.Sprintf("time horizon %v is not positive", years))
	}
	out.Access = dentist * compliance
	out.Horizon = years * entity.DaysPerYear
	return out, nil
}

// Draws is the subset of an entity's random stream the initializer uses.
type Draws interface {
	Uniform() float64
	Sample(name string) (float64, error)
}

// Initializer moves new entities to StateInitialized.
type Initializer struct {
	draws  Draws
	params Params
	life   *LifeTable
	logger *slog.Logger
}

// Option configures an Initializer.
type Option func(*Initializer)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(in *Initializer) {
		in.logger = l
	}
}

// New creates an initializer drawing from d.
func New(d Draws, params Params, life *LifeTable, opts ...Option) *Initializer {
	in := &Initializer{draws: d, params: params, life: life, logger: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Initialize applies entry demographics, the natural death time and the
// probability of a prevalent OPL.
//
// Natural death is drawn from the life table conditional on being alive at
// entry. A natural death beyond the horizon is moved to the horizon and the
// entity is marked as censored there.
func (in *Initializer) Initialize(e *entity.Entity) error {
	if e.State != entity.StateNew {
		return simerr.InvalidState("entity %s is not new (state %s)", e.ID, e.State)
	}

	startAge, err := in.draws.Sample(ParamStartAge)
	if err != nil {
		return err
	}
	if math.IsNaN(startAge) || startAge < 0 {
		return simerr.InvalidParameter(ParamStartAge, fmt.Sprintf("start age %v is negative", startAge))
	}
	e.StartAge = startAge

	smoking, alcohol := in.params.SmokingMale, in.params.AlcoholMale
	e.Sex = entity.Male
	if in.draws.Uniform() < 0.5 {
		e.Sex = entity.Female
		smoking, alcohol = in.params.SmokingFemale, in.params.AlcoholFemale
	}
	e.Smoke = entity.SmokeNever
	if in.draws.Uniform() < smoking {
		e.Smoke = entity.SmokeEver
	}
	e.Alcohol = entity.AlcoholNonheavy
	if in.draws.Uniform() < alcohol {
		e.Alcohol = entity.AlcoholHeavy
	}
	e.HasDentist = in.draws.Uniform() < in.params.Access

	well, err := in.draws.Sample(ParamUtilWell)
	if err != nil {
		return err
	}
	e.AddUtility("Well", well)

	deathAge, err := in.life.DeathAge(e.Sex, e.StartAge, in.draws.Uniform(), in.draws.Uniform())
	if err != nil {
		return err
	}
	e.NaturalDeath = (deathAge - e.StartAge) * entity.DaysPerYear
	if e.NaturalDeath > in.params.Horizon {
		e.NaturalDeath = in.params.Horizon
		e.HorizonCensored = true
	}

	name, err := OPLPrevalenceParam(e.Sex, e.StartAge)
	if err != nil {
		return err
	}
	prev, err := in.draws.Sample(name)
	if err != nil {
		return err
	}
	conversion, err := in.draws.Sample(ParamOPLConversion)
	if err != nil {
		return err
	}
	e.ProbOPL = prev * conversion

	e.AllTime = 0
	e.TimeSysp = 0
	e.UpdateAge()
	e.SetState(entity.StateInitialized, "Initial characteristics applied")

	in.logger.Debug("entity initialized",
		"entity", e.ID,
		"start_age", e.StartAge,
		"sex", string(e.Sex),
		"dentist", e.HasDentist,
		"natural_death", e.NaturalDeath)
	return nil
}
