package regression

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/roach88/oralsim/internal/simerr"
)

// EventType identifies which of two competing events occurred.
type EventType int

const (
	// EventGeneral is the event described by the any-event curve.
	EventGeneral EventType = 1
	// EventCompeting is the competing event.
	EventCompeting EventType = 2
)

func (t EventType) String() string {
	switch t {
	case EventGeneral:
		return "general"
	case EventCompeting:
		return "competing"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Outcome is a resolved competing-risk draw.
type Outcome struct {
	Time float64
	Type EventType
}

// ErrZeroAnyEventProbability is wrapped by the error returned when the
// any-event curve gives zero probability at the sampled time.
var ErrZeroAnyEventProbability = errors.New("any-event probability is zero at the sampled time")

// Resolve draws a time from the any-event model, then attributes it to the
// competing event with probability (1-S_comp(t)) / (1-S_any(t)).
//
// Draw order is fixed: first the time, then the uniform.
func Resolve(anyEvent, competing Model, rng *rand.Rand) (Outcome, error) {
	t := anyEvent.SampleTime(rng)
	return Attribute(anyEvent, competing, t, rng.Float64())
}

// Attribute decides which event a time t belongs to given a uniform draw u.
func Attribute(anyEvent, competing Model, t, u float64) (Outcome, error) {
	p1 := 1 - anyEvent.Survival(t)
	p2 := 1 - competing.Survival(t)
	if p1 == 0 {
		return Outcome{}, &simerr.Error{
			Code:    simerr.CodeSchedulingConflict,
			Message: fmt.Sprintf("cannot resolve %s against %s at t=%v", anyEvent.Spec, competing.Spec, t),
			Param:   anyEvent.Spec,
			Err:     ErrZeroAnyEventProbability,
		}
	}

	ratio := p2 / p1
	if u < ratio {
		return Outcome{Time: t, Type: EventCompeting}, nil
	}
	return Outcome{Time: t, Type: EventGeneral}, nil
}

// Compete binds both specifications to the entity and resolves them.
func (t *Table) Compete(anyName, competingName string, cov Covariates, rng *rand.Rand) (Outcome, error) {
	anyEvent, err := t.Bind(anyName, cov)
	if err != nil {
		return Outcome{}, err
	}
	competing, err := t.Bind(competingName, cov)
	if err != nil {
		return Outcome{}, err
	}
	return Resolve(anyEvent, competing, rng)
}
