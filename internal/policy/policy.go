// Package policy implements the default care pathway: one handler for each
// non-terminal state the dispatcher can reach.
//
// A Pathway is bound to one entity's estimate stream. Every visit samples
// its parameters afresh, so two visits of the same entity may use different
// appointment intervals or test sensitivities.
//
// Handlers follow one scheduling rule: before a handler returns, either the
// state changes or TimeSysp is scheduled at or after the global clock. A
// handler that detects cancer aligns TimeSysp with the clock so that
// treatment starts at the detection time.
package policy

import (
	"log/slog"
	"slices"

	"github.com/roach88/oralsim/internal/engine"
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/regression"
	"github.com/roach88/oralsim/internal/simerr"
)

// Scheduling constants, in days.
const (
	// NoDentistInterval is how far the system process is pushed ahead for an
	// entity with no dental care, so that only disease events happen.
	NoDentistInterval = 1000.0

	// FirstDentalVisit is the delay before the first routine dental
	// appointment of an entity that had none scheduled.
	FirstDentalVisit = 90.0

	// EventWindow bounds post-treatment event times. Events sampled later
	// are not scheduled.
	EventWindow = 3650.0

	// PalliativeCycle is the length of one palliative or supportive care
	// cycle.
	PalliativeCycle = 30.0

	// PalliativeMonths is the number of cycles after which incurable
	// disease is treated as in remission.
	PalliativeMonths = 520

	endOfLifeWindow = engine.EndOfLifeWindow

	// surveillanceYear converts OPL surveillance estimates from years.
	surveillanceYear = 365.0
)

// Pathway holds everything a handler needs to act on one entity.
type Pathway struct {
	est          *estimate.Stream
	regs         *regression.Table
	surgeryShift float64
	logger       *slog.Logger
}

// Option configures a Pathway.
type Option func(*Pathway)

// WithSurgeryShift adds delta to the intercepts of the first-event
// regressions for primary cancers treated by surgery alone.
func WithSurgeryShift(delta float64) Option {
	return func(p *Pathway) {
		p.surgeryShift = delta
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pathway) {
		p.logger = l
	}
}

// New binds a pathway to an entity's estimate stream and the shared
// regression table.
func New(est *estimate.Stream, regs *regression.Table, opts ...Option) *Pathway {
	p := &Pathway{est: est, regs: regs, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handlers returns the handler set for the dispatcher.
func (p *Pathway) Handlers() engine.Handlers {
	return engine.Handlers{
		entity.StateScreening:      engine.HandlerFunc(p.Screening),
		entity.StateNoDentist:      engine.HandlerFunc(p.NoDentist),
		entity.StateOPLManagement:  engine.HandlerFunc(p.OPLManagement),
		entity.StateIncidentCancer: engine.HandlerFunc(p.IncidentCancer),
		entity.StateFollowup:       engine.HandlerFunc(p.Followup),
		entity.StateRemission:      engine.HandlerFunc(p.Remission),
		entity.StateTerminal:       engine.HandlerFunc(p.Terminal),
	}
}

func (p *Pathway) sample(name string) (float64, error) {
	return p.est.Sample(name)
}

func (p *Pathway) addUtility(e *entity.Entity, label, param string) error {
	v, err := p.sample(param)
	if err != nil {
		return err
	}
	e.AddUtility(label, v)
	return nil
}

// choose draws a probability vector from a Dirichlet over the means of the
// named estimates and picks one of options with a uniform draw.
func (p *Pathway) choose(names []string, options []string) (string, error) {
	probs, err := p.est.Dirichlet(names...)
	if err != nil {
		return "", err
	}
	i := estimate.Categorical(p.est.Uniform(), probs)
	if i < 0 || i >= len(options) {
		return "", simerr.InvalidState("treatment draw %d outside %d options", i, len(options))
	}
	return options[i], nil
}

// detectCancer records a cancer found by screening or surveillance and
// sends the entity to treatment at the current clock.
func detectCancer(e *entity.Entity, label string) {
	e.AddEvent(label)
	e.Care.ScreenDetected = true
	e.DiseaseDetected = true
	e.CancerDetected = true
	e.TimeCancerDetected = e.AllTime
	e.TimeSysp = e.AllTime
	e.SetState(entity.StateIncidentCancer, "3.0 - Invasive cancer detected")
}

// RequiredEstimates lists every estimate the pathway may sample, sorted.
func RequiredEstimates() []string {
	names := []string{
		ParamScreenAppInt, ParamScreenReturnInt, ParamScreenAnyLesion,
		ParamScreenWillReturn, ParamScreenLesionResolves, ParamScreenSensitivity,
		ParamScreenNeedsBiopsy, ParamUtilOPLDetected,
		ParamOPLAppInt, ParamOPLSensitivity, ParamOPLSpecificity,
		ParamOPLDischarge, ParamOPLBiopsy,
		ParamOPLfuSCC, ParamTxTime, ParamTxOtherRT, ParamTxOtherChemo,
		ParamUtilTreatment, ParamUtilRecurTx, ParamUtilRecurFU,
		ParamUtilIncurable, ParamUtil2RecurTx,
		ParamFollowup0to3, ParamFollowup3to5, ParamFollowup5to10,
		ParamUtilRemission, ParamUtilEOL,
	}
	names = append(names, recurrenceTxParams...)
	for _, st := range stageTreatments {
		names = append(names, st.txParams...)
	}
	for _, u := range followupUtility {
		names = append(names, u.param)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// RequiredRegressions lists the survival regressions the pathway binds.
func RequiredRegressions() []string {
	return []string{RegFirstEvent, RegFirstEventDeath, RegSecondEvent, RegSecondEventDeath, RegSecondRecurDeath}
}
