package entity

import "fmt"

// State is the entity's position in the care pathway.
//
// The set is closed: dispatch is keyed on State, and the numeric codes of
// the legacy model are only used for reporting.
type State int

const (
	StateNew           State = iota // 0.0 created, attributes not yet drawn
	StateInitialized                // 0.1 demographics drawn
	StateScreening                  // 1.0 regular dental screening
	StateNoDentist                  // 1.8 no screening access
	StateOPLManagement              // 2.0 detected OPL under surveillance
	StateIncidentCancer             // 3.0 cancer detected, workup and treatment
	StateFollowup                   // 4.0 post-treatment follow-up
	StateRemission                  // 4.8 no further care
	StateTerminal                   // 5.0 end of life or palliative care
	StateDead                       // 100
	StateError                      // 99
)

var stateCodes = [...]float64{0.0, 0.1, 1.0, 1.8, 2.0, 3.0, 4.0, 4.8, 5.0, 100, 99}

var stateNames = [...]string{
	"new",
	"initialized",
	"screening",
	"no-dentist",
	"opl-management",
	"incident-cancer",
	"followup",
	"remission",
	"terminal",
	"dead",
	"error",
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	return s >= StateNew && s <= StateError
}

// Code returns the numeric state code used in reports.
func (s State) Code() float64 {
	if !s.Valid() {
		return -1
	}
	return stateCodes[s]
}

// String returns the state name.
func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further dispatch happens from s.
func (s State) Terminal() bool {
	return s == StateDead || s == StateError
}

// StateFromCode maps a numeric state code back to a State.
func StateFromCode(code float64) (State, bool) {
	for i, c := range stateCodes {
		if c == code {
			return State(i), true
		}
	}
	return 0, false
}

// ParseState maps a state name back to a State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}
