package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/oralsim/internal/simerr"
)

// QuotaEnforcer tracks the number of dispatcher steps taken by one entity
// and enforces a maximum.
//
// Each entity run gets its own QuotaEnforcer. The quota is checked before
// every synchronize-then-handle step.
//
// The quota complements the synchronizer's loop guard:
//   - Loop guard: catches a clock stuck on the system-process time
//   - Step quota: catches clocks that move but never reach a terminal state
//
// Together they guarantee every entity terminates.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Check increments the step counter and validates against the limit.
func (q *QuotaEnforcer) Check(entityID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			EntityID: entityID,
			Steps:    q.current,
			Limit:    q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when an entity exceeds the step quota.
// It unwraps to a RUNAWAY_LOOP simerr.Error.
type StepsExceededError struct {
	EntityID string
	Steps    int
	Limit    int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("entity %s exceeded max steps quota: %d steps > %d limit",
		e.EntityID, e.Steps, e.Limit)
}

// Unwrap exposes the taxonomy code.
func (e *StepsExceededError) Unwrap() error {
	err := simerr.RunawayLoop(e.Steps, e.Limit)
	err.Details["guard"] = "step-quota"
	return err
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
