package engine

import (
	"log/slog"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/simerr"
)

// DefaultLoopCeiling is the default number of consecutive checks allowed
// with the global clock sitting on the system-process clock.
const DefaultLoopCeiling = 1000

// EndOfLifeWindow is the number of days before death of disease during
// which the entity receives end-of-life care. Undetected terminal disease
// is also deemed detected no later than this window before death.
const EndOfLifeWindow = 90.0

// Utility estimates sampled when natural-history events fire.
const (
	ParamUtilWell             = "Util_Well"
	ParamUtilOPLUndetected    = "Util_OPL_Undetected"
	ParamUtilOPLDetected      = "Util_OPL_Detected"
	ParamUtilStageIUndetected = "Util_StageI_Undetected"
	ParamUtilStageIIUndetect  = "Util_StageII_Undetected"
	ParamUtilStageIIIUndetect = "Util_StageIII_Undetected"
	ParamUtilStageIVUndetect  = "Util_StageIV_Undetected"
)

// UtilityParams lists the estimates the synchronizer may sample.
var UtilityParams = []string{
	ParamUtilWell,
	ParamUtilOPLUndetected,
	ParamUtilOPLDetected,
	ParamUtilStageIUndetected,
	ParamUtilStageIIUndetect,
	ParamUtilStageIIIUndetect,
	ParamUtilStageIVUndetect,
}

// undetectedStage describes what firing an undetected cancer stage does.
var undetectedStage = map[entity.NHKind]struct {
	utilLabel string
	utilParam string
	stage     entity.Stage
}{
	entity.NHStageI:   {"Undetected Stage I", ParamUtilStageIUndetected, entity.StageI},
	entity.NHStageII:  {"Undetected Stage II", ParamUtilStageIIUndetect, entity.StageII},
	entity.NHStageIII: {"Undetected Stage III", ParamUtilStageIIIUndetect, entity.StageAdv},
	entity.NHStageIV:  {"Undetected Stage IV", ParamUtilStageIVUndetect, entity.StageAdv},
}

// Synchronizer advances an entity's global clock to its next event.
//
// Before cancer is detected the synchronizer races the natural history
// against the system-process clock. Once cancer is detected it switches
// permanently to racing death of disease, end of life, recurrence, natural
// death and the system-process clock.
//
// A Synchronizer holds no per-entity state and is safe for concurrent use.
type Synchronizer struct {
	ceiling int
	logger  *slog.Logger
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithLoopCeiling sets the no-progress ceiling.
func WithLoopCeiling(n int) SyncOption {
	return func(s *Synchronizer) {
		s.ceiling = n
	}
}

// WithSyncLogger sets the synchronizer's logger.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{ceiling: DefaultLoopCeiling, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoopCeiling returns the configured no-progress ceiling.
func (s *Synchronizer) LoopCeiling() int {
	return s.ceiling
}

// CheckTime performs one synchronization step on e, sampling utilities from
// p. On failure the entity is routed to the error state and the error is
// returned. An entity that is already dead or failed is left untouched.
func (s *Synchronizer) CheckTime(e *entity.Entity, p estimate.Provider) error {
	if e.State.Terminal() {
		return nil
	}
	if err := s.check(e, p); err != nil {
		failEntity(s.logger, e, err)
		return err
	}
	return nil
}

func (s *Synchronizer) check(e *entity.Entity, p estimate.Provider) error {
	if !e.State.Valid() {
		return simerr.InvalidState("entity %s has unknown state %d", e.ID, int(e.State))
	}
	if entity.IsNever(e.NaturalDeath) {
		return simerr.SchedulingConflict("entity %s has no natural death time", e.ID)
	}

	e.UpdateAge()

	if e.AllTime >= e.NaturalDeath {
		dieNaturally(e)
		return nil
	}

	if !e.CancerDetected {
		return s.undetected(e, p)
	}
	return s.detected(e)
}

// dieNaturally records natural death at the scheduled time. The global
// clock is never moved backwards.
func dieNaturally(e *entity.Entity) {
	if e.AllTime < e.NaturalDeath {
		e.AllTime = e.NaturalDeath
	}
	e.Die(entity.DeathNatural, "Dead of Natural Causes")
	e.TimeDeath = e.NaturalDeath
}

// undetected races the next natural-history event against the system
// process and natural death. Ties go to the system process, except that a
// natural-history entry at the time of natural death fires as usual.
func (s *Synchronizer) undetected(e *entity.Entity, p estimate.Provider) error {
	next, ok := e.NextNatHist()
	if !ok {
		return simerr.InvalidState("natural history of %s exhausted at %v", e.ID, e.AllTime)
	}

	// Progression paths end in detection or death of disease and carry no
	// natural death entry of their own.
	if e.NaturalDeath < e.TimeSysp && e.NaturalDeath < next.Time {
		dieNaturally(e)
		return nil
	}

	if e.TimeSysp <= next.Time {
		// A system-process time behind the clock is served now.
		if e.TimeSysp > e.AllTime {
			e.AllTime = e.TimeSysp
		}
		return nil
	}

	if !next.Status.Valid() {
		return simerr.InvalidState("unrecognized natural-history status %s in %q", next.Status, next.Label)
	}

	e.ConsumeNatHist()
	s.logger.Debug("natural history event",
		"entity", e.ID,
		"label", next.Label,
		"status", next.Status.String(),
		"time", next.Time)
	return fire(e, next, p)
}

// fire applies the consequences of a natural-history entry.
func fire(e *entity.Entity, next entity.NatHistEntry, p estimate.Provider) error {
	advance := func(t float64) {
		if t > e.AllTime {
			e.AllTime = t
		}
	}

	kind := next.Status.Kind
	if next.Status.Detectable {
		advance(next.Time)
		switch kind {
		case entity.NHOPL:
			return detectOPL(e, p)
		default:
			detectCancer(e, kind)
			return nil
		}
	}

	switch kind {
	case entity.NHNoDisease:
		advance(next.Time)
		e.OPLPresent = false
		return addSampledUtility(e, p, "No disease", ParamUtilWell)

	case entity.NHOPL:
		advance(next.Time)
		e.HasOPL = true
		e.OPLPresent = true
		e.TimeOPL = next.Time
		return addSampledUtility(e, p, "Undetected OPL", ParamUtilOPLUndetected)

	case entity.NHStageI, entity.NHStageII, entity.NHStageIII, entity.NHStageIV:
		advance(next.Time)
		st := undetectedStage[kind]
		e.HasCancer = true
		e.Stage = st.stage
		if kind == entity.NHStageI {
			e.OPLPresent = false
			e.TimeCancer = next.Time
		}
		if kind == entity.NHStageIV {
			e.TimeStageIV = next.Time
		}
		return addSampledUtility(e, p, st.utilLabel, st.utilParam)

	case entity.NHDeadOfDisease:
		// Fulminant disease is caught at stage IV onset or the start of the
		// end-of-life window, whichever is later.
		detectedAt := next.Time - EndOfLifeWindow
		if !entity.IsNever(e.TimeStageIV) && e.TimeStageIV > detectedAt {
			detectedAt = e.TimeStageIV
		}
		advance(detectedAt)
		e.HasCancer = true
		e.DiseaseDetected = true
		e.CancerDetected = true
		e.TimeCancerDetected = e.AllTime
		e.TimeDeadOfDisease = next.Time
		e.TimeRecurrence = entity.Never
		e.EndOfLife = true
		e.Care.FirstCancer = "Terminal"
		e.SetState(entity.StateTerminal, "Terminal disease")
		return nil

	case entity.NHNaturalDeath:
		advance(next.Time)
		dieNaturally(e)
		return nil

	default:
		return simerr.InvalidState("natural-history status %s cannot fire", next.Status)
	}
}

func detectOPL(e *entity.Entity, p estimate.Provider) error {
	e.DiseaseDetected = true
	e.OPLDetected = true
	e.TimeOPLDetected = e.AllTime
	e.SetState(entity.StateOPLManagement, "2.0 - OPL Detected")
	return addSampledUtility(e, p, "Detected OPL", ParamUtilOPLDetected)
}

func detectCancer(e *entity.Entity, kind entity.NHKind) {
	if st, ok := undetectedStage[kind]; ok && e.Stage == entity.StageNone {
		e.Stage = st.stage
	}
	e.HasCancer = true
	e.DiseaseDetected = true
	e.CancerDetected = true
	e.Symptomatic = true
	e.TimeCancerDetected = e.AllTime
	if entity.IsNever(e.TimeCancer) {
		e.TimeCancer = e.AllTime
	}
	e.SetState(entity.StateIncidentCancer, "Treatment for incident oral cancer")
}

func addSampledUtility(e *entity.Entity, p estimate.Provider, label, param string) error {
	v, err := p.Sample(param)
	if err != nil {
		return err
	}
	e.AddUtility(label, v)
	return nil
}

// detected races the post-detection clocks. The globally earliest time
// wins; natural death, end of life and recurrence win ties with the system
// process, in that order.
func (s *Synchronizer) detected(e *entity.Entity) error {
	eol := entity.Never
	if !entity.IsNever(e.TimeDeadOfDisease) {
		eol = e.TimeDeadOfDisease - EndOfLifeWindow
	}

	switch {
	case e.AllTime >= e.TimeDeadOfDisease:
		e.AllTime = max(e.AllTime, e.TimeDeadOfDisease)
		e.Die(entity.DeathDisease, "Dead of Disease")
		e.TimeDeath = e.TimeDeadOfDisease
		return nil

	case e.AllTime >= eol:
		enterEndOfLife(e)
		return nil
	}

	if e.TimeRecurrence < e.AllTime {
		return simerr.SchedulingConflict("recurrence of %s scheduled at %v, behind the clock at %v",
			e.ID, e.TimeRecurrence, e.AllTime)
	}

	earliest := min(e.NaturalDeath, eol, e.TimeRecurrence, e.TimeSysp)
	switch {
	case e.NaturalDeath <= earliest:
		dieNaturally(e)

	case eol <= earliest:
		e.AllTime = eol
		e.TimeRecurrence = entity.Never
		enterEndOfLife(e)

	case e.TimeRecurrence <= earliest:
		e.AllTime = e.TimeRecurrence
		e.TimeRecurrence = entity.Never
		e.Recurrence = true
		e.Stage = entity.StageRecur
		e.SetState(entity.StateIncidentCancer, "Treatment for recurrence")

	case e.AllTime < e.TimeSysp:
		e.ResetLoop()
		e.AllTime = e.TimeSysp

	case e.AllTime == e.TimeSysp:
		if n := e.IncLoop(); n > s.ceiling {
			err := simerr.RunawayLoop(n, s.ceiling)
			err.Details["clock"] = formatClock(e.AllTime)
			return err
		}

	default:
		return simerr.SchedulingConflict("system process of %s at %v is behind the clock at %v",
			e.ID, e.TimeSysp, e.AllTime)
	}
	return nil
}

func enterEndOfLife(e *entity.Entity) {
	e.EndOfLife = true
	e.SetState(entity.StateTerminal, "End of Life")
}
