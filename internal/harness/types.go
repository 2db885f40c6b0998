package harness

import (
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/sink"
)

// Trace entry kinds.
const (
	KindNatHist  = "nathist"
	KindEvent    = "event"
	KindResource = "resource"
	KindUtility  = "utility"
)

// TraceEvent is one labelled entry of an entity's trace.
type TraceEvent struct {
	Kind  string  `json:"kind"`
	Label string  `json:"label"`
	Time  float64 `json:"time"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace is the entity's natural history followed by its events,
	// resources and utilities.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Record is the finished entity record.
	Record sink.Record `json:"-"`

	// Entity is the simulated entity, kept for golden comparison.
	Entity *entity.Entity `json:"-"`
}

// NewResult creates a passing result for the record.
func NewResult(e *entity.Entity, rec sink.Record) *Result {
	return &Result{
		Pass:   true,
		Trace:  buildTrace(rec),
		Errors: []string{},
		Record: rec,
		Entity: e,
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func buildTrace(rec sink.Record) []TraceEvent {
	n := len(rec.NatHist) + len(rec.Events) + len(rec.Resources) + len(rec.Utility)
	trace := make([]TraceEvent, 0, n)
	for _, h := range rec.NatHist {
		trace = append(trace, TraceEvent{Kind: KindNatHist, Label: h.Label, Time: h.Time})
	}
	for _, ev := range rec.Events {
		trace = append(trace, TraceEvent{Kind: KindEvent, Label: ev.Label, Time: ev.Time})
	}
	for _, r := range rec.Resources {
		trace = append(trace, TraceEvent{Kind: KindResource, Label: r.Label, Time: r.Time})
	}
	for _, u := range rec.Utility {
		trace = append(trace, TraceEvent{Kind: KindUtility, Label: u.Label, Time: u.Time})
	}
	return trace
}
