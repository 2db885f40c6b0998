// Package sink receives finished entity records from a batch.
//
// A batch calls Begin once, Write once per entity in any order, and Close
// when every worker has returned. Write is only ever called from the
// batch's single merge goroutine, so implementations need no locking of
// their own beyond what their readers require.
package sink

import (
	"context"
	"time"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/trace"
)

// Sink receives the records of one batch run.
type Sink interface {
	Begin(ctx context.Context, run Run) error
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Run describes a batch run.
type Run struct {
	ID        string
	Seed      uint64
	Entities  int
	Workers   int
	StartedAt time.Time
	Params    string // parameter directory, empty for the built-in set
}

// Record is the append-only output of one entity.
type Record struct {
	RunID    string
	Index    int
	EntityID string

	StartAge   float64
	Sex        entity.Sex
	Smoke      entity.Smoking
	Alcohol    entity.Alcohol
	HasDentist bool
	HasOPL     bool
	OPLRisk    entity.OPLRisk

	State      entity.State
	StateLabel string
	DeathType  entity.DeathType
	TimeDeath  float64
	AllTime    float64
	Censored   bool
	ErrorCode  simerr.Code
	Error      string

	FirstCancer    string
	ScreenDetected bool
	TxPrimary      string
	TxRecurrence   string
	TimeCancer     float64
	TimeDetected   float64
	DentalVisits   int
	FalsePositives int
	FalseNegatives int

	NatHist   []entity.NatHistEntry
	Events    []entity.Event
	Resources []entity.Resource
	Utility   []entity.Utility

	// Digest is the canonical record digest used by replay checks.
	Digest string
}

// NewRecord captures a finished entity.
func NewRecord(runID string, e *entity.Entity) (Record, error) {
	digest, err := trace.Digest(e)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		RunID:          runID,
		Index:          e.Index,
		EntityID:       e.ID,
		StartAge:       e.StartAge,
		Sex:            e.Sex,
		Smoke:          e.Smoke,
		Alcohol:        e.Alcohol,
		HasDentist:     e.HasDentist,
		HasOPL:         e.HasOPL,
		OPLRisk:        e.OPLRisk,
		State:          e.State,
		StateLabel:     e.StateLabel,
		DeathType:      e.DeathType,
		TimeDeath:      e.TimeDeath,
		AllTime:        e.AllTime,
		Censored:       e.HorizonCensored,
		FirstCancer:    e.Care.FirstCancer,
		ScreenDetected: e.Care.ScreenDetected,
		TxPrimary:      e.Care.TxPrimary,
		TxRecurrence:   e.Care.TxRecurrence,
		TimeCancer:     e.TimeCancer,
		TimeDetected:   e.TimeCancerDetected,
		DentalVisits:   e.Care.DentalVisits,
		FalsePositives: e.Care.FalsePositives,
		FalseNegatives: e.Care.FalseNegatives,
		NatHist:        e.NatHist(),
		Events:         append([]entity.Event(nil), e.Events...),
		Resources:      append([]entity.Resource(nil), e.Resources...),
		Utility:        append([]entity.Utility(nil), e.Utility...),
		Digest:         digest,
	}
	if e.Err != nil {
		rec.ErrorCode = simerr.CodeOf(e.Err)
		rec.Error = e.Err.Error()
	}
	return rec, nil
}

// Failed reports whether the entity ended in the error state.
func (r Record) Failed() bool {
	return r.State == entity.StateError
}

// DeathAge is the age in years at which the record ended.
func (r Record) DeathAge() float64 {
	return r.StartAge + r.TimeDeath/entity.DaysPerYear
}
