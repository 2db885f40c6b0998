// Package simerr defines the entity-local error taxonomy.
//
// Every failure that can occur while an entity is being simulated is
// described by an *Error carrying one of the codes below. None of them abort
// a batch: the dispatcher routes the affected entity to the error state and
// the batch driver counts it.
package simerr

import (
	"errors"
	"fmt"
)

// Code categorizes entity-local failures.
type Code string

const (
	// CodeMissingCovariate indicates a regression referenced an entity
	// attribute that is absent, unset, or has no coefficient for its level.
	CodeMissingCovariate Code = "MISSING_COVARIATE"

	// CodeUnknownParameter indicates a lookup of an estimate or regression
	// specification that does not exist or cannot be parameterized.
	CodeUnknownParameter Code = "UNKNOWN_PARAMETER"

	// CodeSchedulingConflict indicates the competing clocks could not be
	// ordered (system process behind the global clock, undefined times,
	// degenerate competing risks).
	CodeSchedulingConflict Code = "SCHEDULING_CONFLICT"

	// CodeInvalidState indicates an unknown state or natural-history status.
	CodeInvalidState Code = "INVALID_STATE"

	// CodeRunawayLoop indicates the entity stopped making progress.
	CodeRunawayLoop Code = "RUNAWAY_LOOP"
)

// Codes lists every code in reporting order.
var Codes = []Code{
	CodeMissingCovariate,
	CodeUnknownParameter,
	CodeSchedulingConflict,
	CodeInvalidState,
	CodeRunawayLoop,
}

// Error is a structured entity-local failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Param names the estimate or regression specification involved.
	Param string

	// Covariate names the entity attribute involved.
	Covariate string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Param != "" && e.Covariate != "":
		msg = fmt.Sprintf("%s (param=%s, covariate=%s)", msg, e.Param, e.Covariate)
	case e.Param != "":
		msg = fmt.Sprintf("%s (param=%s)", msg, e.Param)
	case e.Covariate != "":
		msg = fmt.Sprintf("%s (covariate=%s)", msg, e.Covariate)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err. Returns "" for errors outside the
// taxonomy.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsMissingCovariate returns true if err is a missing covariate error.
func IsMissingCovariate(err error) bool { return Is(err, CodeMissingCovariate) }

// IsUnknownParameter returns true if err is an unknown parameter error.
func IsUnknownParameter(err error) bool { return Is(err, CodeUnknownParameter) }

// IsSchedulingConflict returns true if err is a scheduling conflict.
func IsSchedulingConflict(err error) bool { return Is(err, CodeSchedulingConflict) }

// IsInvalidState returns true if err is an invalid state error.
func IsInvalidState(err error) bool { return Is(err, CodeInvalidState) }

// IsRunawayLoop returns true if err is a runaway loop error.
func IsRunawayLoop(err error) bool { return Is(err, CodeRunawayLoop) }

// MissingCovariate creates an error for an unresolvable regression covariate.
func MissingCovariate(spec, covariate, reason string) *Error {
	return &Error{
		Code:      CodeMissingCovariate,
		Message:   reason,
		Param:     spec,
		Covariate: covariate,
	}
}

// Values of Details["reason"] on UNKNOWN_PARAMETER errors.
const (
	ReasonUndefined    = "undefined"
	ReasonInvalidValue = "invalid value"
)

// UnknownParameter creates an error for a missing estimate or specification.
func UnknownParameter(name string) *Error {
	return &Error{
		Code:    CodeUnknownParameter,
		Message: "no such parameter",
		Param:   name,
		Details: map[string]string{"reason": ReasonUndefined},
	}
}

// InvalidParameter creates an UNKNOWN_PARAMETER error for a parameter that
// exists but whose value is out of range or cannot be turned into a
// distribution.
func InvalidParameter(name, reason string) *Error {
	return &Error{
		Code:    CodeUnknownParameter,
		Message: reason,
		Param:   name,
		Details: map[string]string{"reason": ReasonInvalidValue},
	}
}

// Reason returns Details["reason"] of err, or "" if it has none.
func Reason(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Details["reason"]
	}
	return ""
}

// SchedulingConflict creates an error for clocks that cannot be ordered.
func SchedulingConflict(format string, args ...any) *Error {
	return &Error{
		Code:    CodeSchedulingConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidState creates an error for an unknown state or status.
func InvalidState(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf(format, args...),
	}
}

// RunawayLoop creates an error for an entity that stopped making progress.
func RunawayLoop(steps, limit int) *Error {
	return &Error{
		Code:    CodeRunawayLoop,
		Message: fmt.Sprintf("no progress after %d consecutive steps (limit %d)", steps, limit),
		Details: map[string]string{
			"steps": fmt.Sprintf("%d", steps),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}
