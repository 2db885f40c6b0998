// Package nathist generates an entity's natural history of disease.
//
// The natural history is the timeline the disease would follow with no
// contact with the health system: OPL onset and either resolution or
// progression to stage I, then the undetected cancer stages, each racing
// symptomatic detection against progression, ending in symptomatic
// detection or death of undetected cancer. It is generated once, before the
// entity enters the care pathway, and never changed afterwards.
package nathist

import (
	"fmt"
	"log/slog"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// Natural-history labels.
const (
	LabelNaturalDeath  = "Natural Death"
	LabelNED           = "NED"
	LabelStageI        = "Stage 1"
	LabelDeadOfDisease = "Dead of undetected oral cancer"
)

// stage is one undetected cancer stage: the race it runs and the entries
// it produces.
type stage struct {
	kind      entity.NHKind
	sympt     string
	progress  string // empty for stage IV, which races death instead
	detected  string
	nextLabel string
}

var stages = [...]stage{
	{entity.NHStageI, ParamStageISympt, ParamStageIProgress, "Detectable Stage 1", "Undetected Stage 2"},
	{entity.NHStageII, ParamStageIISympt, ParamStageIIProgress, "Detectable Stage 2", "Undetected Stage 3"},
	{entity.NHStageIII, ParamStageIIISympt, ParamStageIIIProgress, "Detectable Stage 3", "Undetected Stage 4"},
	{entity.NHStageIV, ParamStageIVSympt, "", "Detectable Stage 4", LabelDeadOfDisease},
}

// MaxEntries bounds the length of a generated natural history.
const MaxEntries = 1 + len(stages)

// Generator builds natural histories.
type Generator struct {
	draws  Draws
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New creates a generator drawing from d.
func New(d Draws, opts ...Option) *Generator {
	g := &Generator{draws: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds and installs the entity's natural history. The entity's
// natural death time must already be assigned.
func (g *Generator) Generate(e *entity.Entity) error {
	if e.NatHistGenerated() {
		return simerr.InvalidState("natural history for %s already generated", e.ID)
	}
	if entity.IsNever(e.NaturalDeath) {
		return simerr.InvalidState("natural death time for %s not assigned", e.ID)
	}

	entries, err := g.build(e)
	if err != nil {
		return err
	}
	if err := e.SetNatHist(entries); err != nil {
		return simerr.InvalidState("%v", err)
	}

	g.logger.Debug("natural history generated",
		"entity", e.ID,
		"entries", len(entries),
		"has_opl", e.HasOPL,
		"risk", string(e.OPLRisk))
	return nil
}

func (g *Generator) build(e *entity.Entity) ([]entity.NatHistEntry, error) {
	naturalDeath := entity.NatHistEntry{
		Label:  LabelNaturalDeath,
		Status: entity.Status(entity.NHNaturalDeath),
		Time:   e.NaturalDeath,
	}

	if g.draws.Uniform() >= e.ProbOPL {
		e.NHStatus = entity.Status(entity.NHNoOPL)
		return []entity.NatHistEntry{naturalDeath}, nil
	}

	// OPL present from entry.
	e.HasOPL = true
	e.OPLPresent = true
	e.TimeOPL = e.AllTime
	e.NHStatus = entity.Status(entity.NHOPL)
	util, err := g.draws.Sample(ParamUtilOPLUndetected)
	if err != nil {
		return nil, err
	}
	e.AddUtility("Undetected OPL", util)

	risk, err := g.draws.RiskTier()
	if err != nil {
		return nil, err
	}
	e.OPLRisk = risk

	tResolve, err := g.draws.Sample(ParamOPLResolution)
	if err != nil {
		return nil, err
	}
	tProgress, err := g.draws.OPLProgression(risk)
	if err != nil {
		return nil, err
	}

	switch {
	case tProgress < tResolve:
		entries := []entity.NatHistEntry{{
			Label:  LabelStageI,
			Status: entity.Status(entity.NHStageI),
			Time:   tProgress,
		}}
		return g.undetected(e, entries)
	case e.NaturalDeath < tResolve:
		return []entity.NatHistEntry{naturalDeath}, nil
	default:
		return []entity.NatHistEntry{
			{Label: LabelNED, Status: entity.Status(entity.NHNoDisease), Time: tResolve},
			naturalDeath,
		}, nil
	}
}

// undetected walks the cancer stages from stage I until symptomatic
// detection or death of undetected disease.
func (g *Generator) undetected(e *entity.Entity, entries []entity.NatHistEntry) ([]entity.NatHistEntry, error) {
	now := entries[len(entries)-1].Time

	for _, st := range stages {
		tSympt, err := g.draws.StageTime(e, st.sympt)
		if err != nil {
			return nil, err
		}

		var tNext float64
		nextStatus := entity.Status(st.kind + 1)
		if st.progress != "" {
			tNext, err = g.draws.StageTime(e, st.progress)
		} else {
			ageAtOnset := e.StartAge + now/entity.DaysPerYear
			tNext, err = g.stageIVDeath(e, ageAtOnset)
			nextStatus = entity.Status(entity.NHDeadOfDisease)
		}
		if err != nil {
			return nil, err
		}
		if tSympt < 0 || tNext < 0 {
			return nil, simerr.SchedulingConflict("negative transition time out of %s", entity.Status(st.kind))
		}

		if tSympt < tNext {
			return append(entries, entity.NatHistEntry{
				Label:  st.detected,
				Status: entity.Detected(st.kind),
				Time:   now + tSympt,
			}), nil
		}
		now += tNext
		entries = append(entries, entity.NatHistEntry{
			Label:  st.nextLabel,
			Status: nextStatus,
			Time:   now,
		})
	}
	return entries, nil
}

func (g *Generator) stageIVDeath(e *entity.Entity, age float64) (float64, error) {
	name, err := StageIVDeathParam(e.Sex, age)
	if err != nil {
		return 0, err
	}
	t, err := g.draws.Sample(name)
	if err != nil {
		return 0, fmt.Errorf("stage IV death: %w", err)
	}
	return t, nil
}
