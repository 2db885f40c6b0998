package entity

import (
	"fmt"
	"math"
)

// NHKind is the disease status carried by a natural-history entry.
type NHKind int

const (
	NHNoDisease     NHKind = iota // 0.0 OPL resolved, no evidence of disease
	NHNoOPL                       // 0.9 no OPL, heading to natural death
	NHOPL                         // 1.0 undetected OPL
	NHStageI                      // 2.0
	NHStageII                     // 3.0
	NHStageIII                    // 4.0
	NHStageIV                     // 5.0
	NHNaturalDeath                // 9.0
	NHDeadOfDisease               // 100
)

var kindCodes = [...]float64{0.0, 0.9, 1.0, 2.0, 3.0, 4.0, 5.0, 9.0, 100}

var kindNames = [...]string{
	"no-disease",
	"no-opl",
	"opl",
	"stage-i",
	"stage-ii",
	"stage-iii",
	"stage-iv",
	"natural-death",
	"dead-of-disease",
}

// NHStatus is a natural-history status: a kind plus, for lesions and
// cancers, whether the entry marks symptomatic detection (the ".1" codes).
type NHStatus struct {
	Kind       NHKind
	Detectable bool
}

// Status returns the undetected status of the given kind.
func Status(k NHKind) NHStatus {
	return NHStatus{Kind: k}
}

// Detected returns the symptomatic-detection status of the given kind.
func Detected(k NHKind) NHStatus {
	return NHStatus{Kind: k, Detectable: true}
}

// Valid reports whether the kind is known and the detection flag is only
// set on OPL or cancer stages.
func (s NHStatus) Valid() bool {
	if s.Kind < NHNoDisease || s.Kind > NHDeadOfDisease {
		return false
	}
	if s.Detectable {
		return s.Kind >= NHOPL && s.Kind <= NHStageIV
	}
	return true
}

// Code returns the numeric status code, e.g. 2.1 for a symptomatic stage I.
func (s NHStatus) Code() float64 {
	if !s.Valid() {
		return -1
	}
	c := kindCodes[s.Kind]
	if s.Detectable {
		c += 0.1
	}
	return math.Round(c*10) / 10
}

// Cancer reports whether the status is an invasive cancer stage.
func (s NHStatus) Cancer() bool {
	return s.Kind >= NHStageI && s.Kind <= NHStageIV
}

func (s NHStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d,%t)", int(s.Kind), s.Detectable)
	}
	if s.Detectable {
		return kindNames[s.Kind] + "-detected"
	}
	return kindNames[s.Kind]
}

// StatusFromCode parses a numeric status code.
func StatusFromCode(code float64) (NHStatus, error) {
	for i, c := range kindCodes {
		if c == code {
			return NHStatus{Kind: NHKind(i)}, nil
		}
		s := NHStatus{Kind: NHKind(i), Detectable: true}
		if s.Valid() && s.Code() == math.Round(code*10)/10 {
			return s, nil
		}
	}
	return NHStatus{}, fmt.Errorf("unknown natural history status %v", code)
}

// NatHistEntry is one step of the pre-generated natural history.
type NatHistEntry struct {
	Label  string
	Status NHStatus
	Time   float64 // days since entry
}
