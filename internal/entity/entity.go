// Package entity defines the simulated individual.
//
// An Entity is owned by exactly one goroutine for its whole lifecycle. It
// carries demographic attributes drawn at initialization, the clocks the
// synchronizer races against each other, disease flags, the natural history
// generated once at start, and append-only logs of events, resources and
// utilities.
package entity

import (
	"errors"
	"fmt"
	"math"
)

// Never marks a clock that is not scheduled. It compares greater than any
// reachable simulation time.
const Never = math.MaxFloat64

// IsNever reports whether t is the unscheduled sentinel.
func IsNever(t float64) bool {
	return t >= Never
}

// DaysPerYear converts between the day clocks and ages in years.
const DaysPerYear = 365.25

// Sex is the entity's sex.
type Sex string

const (
	Female Sex = "F"
	Male   Sex = "M"
)

// Smoking is lifetime smoking status.
type Smoking string

const (
	SmokeEver  Smoking = "Ever"
	SmokeNever Smoking = "Never"
)

// Alcohol is alcohol consumption status.
type Alcohol string

const (
	AlcoholHeavy    Alcohol = "Heavy"
	AlcoholNonheavy Alcohol = "Nonheavy"
)

// OPLRisk is the latent progression risk tier of a premalignant lesion.
type OPLRisk string

const (
	RiskLow    OPLRisk = "Lo"
	RiskMedium OPLRisk = "Med"
	RiskHigh   OPLRisk = "Hi"
)

// Stage is the clinical stage of a detected cancer.
type Stage string

const (
	StageNone  Stage = ""
	StageHGL   Stage = "HGL"
	StageI     Stage = "I"
	StageII    Stage = "II"
	StageAdv   Stage = "Adv"
	StageRecur Stage = "Recur"
)

// DeathType classifies how the entity left the simulation.
type DeathType string

const (
	DeathNone     DeathType = ""
	DeathNatural  DeathType = "natural"
	DeathDisease  DeathType = "disease"
	DeathCensored DeathType = "censored"
)

// Event is a labelled point in time.
type Event struct {
	Label string
	Time  float64
}

// Resource is a unit of care consumed at a point in time.
type Resource struct {
	Label string
	Time  float64
}

// Utility is a quality-of-life weight that applies from Time onward.
type Utility struct {
	Label string
	Value float64
	Time  float64
}

// Care holds the scratch state the care-pathway handlers keep between
// visits.
type Care struct {
	TxPrimary        string  // primary treatment
	TxRecurrence     string  // recurrence treatment
	FirstCancer      string  // stage at first cancer treatment
	ScreenDetected   bool    // cancer found by screening rather than symptoms
	ScreenReturn     bool    // awaiting a return visit for a lesion
	DentalVisits     int     // routine dental appointments
	FalsePositives   int     // benign lesions biopsied
	FalseNegatives   int     // OPLs missed at screening
	TimeDentist      float64 // next routine dental appointment
	SymptomBiopsied  bool    // diagnostic biopsy for a symptomatic cancer done
	OPLSeen          bool    // first OPL specialist visit done
	OPLNextVisit     float64 // next OPL surveillance appointment
	OPLFollowup      float64 // days since last OPL biopsy
	OPLFollowupTotal float64 // days under OPL surveillance
	OPLDischarged    bool
	FollowupTime     float64 // days since start of post-treatment follow-up
	PrevRecurrence   bool    // a recurrence has already been treated
	PalliativeMonth  int
	RTCourses        int
	ChemoCourses     int
}

// Entity is one simulated individual.
type Entity struct {
	ID    string
	Index int

	// Demographics.
	StartAge   float64 // years at entry
	Age        float64 // whole years, derived from StartAge and AllTime
	Sex        Sex
	Smoke      Smoking
	Alcohol    Alcohol
	HasDentist bool
	ProbOPL    float64
	OPLRisk    OPLRisk

	// Clocks, in days since entry.
	AllTime         float64
	TimeSysp        float64
	NHTime          float64
	NHStatus        NHStatus
	NaturalDeath    float64
	HorizonCensored bool

	// Disease and pathway state.
	State           State
	StateLabel      string
	Stage           Stage
	OPLPresent      bool
	HasOPL          bool
	OPLDetected     bool
	DiseaseDetected bool
	HasCancer       bool
	CancerDetected  bool
	Symptomatic     bool
	Recurrence      bool
	EndOfLife       bool

	TimeOPL            float64
	TimeOPLDetected    float64
	TimeCancer         float64
	TimeCancerDetected float64
	TimeStageIV        float64
	TimeRecurrence     float64
	TimeDeadOfDisease  float64
	TimeDeath          float64

	DeathType DeathType
	Err       error

	Care Care

	Events    []Event
	Resources []Resource
	Utility   []Utility

	natHist   []NatHistEntry
	generated bool
	cursor    int
	loopCount int
}

// New creates an entity in StateNew with every event clock unscheduled.
func New(id string, index int) *Entity {
	return &Entity{
		ID:                 id,
		Index:              index,
		State:              StateNew,
		StateLabel:         "Created",
		NHStatus:           Status(NHNoDisease),
		NaturalDeath:       Never,
		TimeOPL:            Never,
		TimeOPLDetected:    Never,
		TimeCancer:         Never,
		TimeCancerDetected: Never,
		TimeStageIV:        Never,
		TimeRecurrence:     Never,
		TimeDeadOfDisease:  Never,
		TimeDeath:          Never,
		Care:               Care{TimeDentist: Never, OPLNextVisit: Never},
	}
}

// ErrNatHistGenerated is returned when a natural history is set twice.
var ErrNatHistGenerated = errors.New("natural history already generated")

// SetNatHist installs the natural history. It may be called once; the
// entries must be in non-decreasing time order.
func (e *Entity) SetNatHist(entries []NatHistEntry) error {
	if e.generated {
		return ErrNatHistGenerated
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Time < entries[i-1].Time {
			return fmt.Errorf("natural history entry %d (%s) at %v precedes %v",
				i, entries[i].Label, entries[i].Time, entries[i-1].Time)
		}
	}
	e.natHist = append([]NatHistEntry(nil), entries...)
	e.generated = true
	e.cursor = 0
	return nil
}

// NatHistGenerated reports whether SetNatHist has been called.
func (e *Entity) NatHistGenerated() bool {
	return e.generated
}

// NatHist returns a copy of the natural history.
func (e *Entity) NatHist() []NatHistEntry {
	return append([]NatHistEntry(nil), e.natHist...)
}

// NextNatHist returns the next unconsumed natural-history entry.
func (e *Entity) NextNatHist() (NatHistEntry, bool) {
	if e.cursor >= len(e.natHist) {
		return NatHistEntry{}, false
	}
	return e.natHist[e.cursor], true
}

// ConsumeNatHist advances the cursor past the next entry and records it as
// the entity's current natural-history position.
func (e *Entity) ConsumeNatHist() {
	if e.cursor >= len(e.natHist) {
		return
	}
	next := e.natHist[e.cursor]
	e.NHTime = next.Time
	e.NHStatus = next.Status
	e.cursor++
}

// LoopCount returns the consecutive no-progress step counter.
func (e *Entity) LoopCount() int {
	return e.loopCount
}

// IncLoop increments the no-progress counter and returns the new value.
func (e *Entity) IncLoop() int {
	e.loopCount++
	return e.loopCount
}

// ResetLoop clears the no-progress counter.
func (e *Entity) ResetLoop() {
	e.loopCount = 0
}

// Mark is a comparable snapshot of everything that moves an entity toward
// termination. Two equal marks around a dispatcher step mean the step
// changed nothing and would repeat forever.
type Mark struct {
	State             State
	AllTime           float64
	TimeSysp          float64
	TimeRecurrence    float64
	TimeDeadOfDisease float64
	Cursor            int
	LoopCount         int
}

// Mark returns the entity's current progress snapshot.
func (e *Entity) Mark() Mark {
	return Mark{
		State:             e.State,
		AllTime:           e.AllTime,
		TimeSysp:          e.TimeSysp,
		TimeRecurrence:    e.TimeRecurrence,
		TimeDeadOfDisease: e.TimeDeadOfDisease,
		Cursor:            e.cursor,
		LoopCount:         e.loopCount,
	}
}

// UpdateAge derives Age from StartAge and AllTime.
func (e *Entity) UpdateAge() {
	e.Age = e.StartAge + math.Floor(e.AllTime/DaysPerYear)
}

// SetState moves the entity to s with a descriptive label.
func (e *Entity) SetState(s State, label string) {
	e.State = s
	e.StateLabel = label
}

// AddEvent appends an event stamped with the current clock.
func (e *Entity) AddEvent(label string) {
	e.Events = append(e.Events, Event{Label: label, Time: e.AllTime})
}

// AddResource appends a resource stamped with the current clock.
func (e *Entity) AddResource(label string) {
	e.Resources = append(e.Resources, Resource{Label: label, Time: e.AllTime})
}

// AddUtility appends a utility stamped with the current clock.
func (e *Entity) AddUtility(label string, value float64) {
	e.Utility = append(e.Utility, Utility{Label: label, Value: value, Time: e.AllTime})
}

// Fail routes the entity to the error state. The batch keeps going.
func (e *Entity) Fail(err error) {
	e.Err = err
	e.SetState(StateError, "ERROR - "+err.Error())
}

// Die records death at the current clock.
func (e *Entity) Die(cause DeathType, label string) {
	e.DeathType = cause
	e.TimeDeath = e.AllTime
	e.SetState(StateDead, label)
}
