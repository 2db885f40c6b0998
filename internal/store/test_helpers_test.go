package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/sink"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestRun begins a run with a fixed start time.
func beginTestRun(t *testing.T, s *Store, id string) sink.Run {
	t.Helper()
	run := sink.Run{
		ID:        id,
		Seed:      42,
		Entities:  3,
		Workers:   2,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Params:    "params/",
	}
	if err := s.Begin(context.Background(), run); err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	return run
}

// createTestRecord builds a record for an entity that died of disease
// after a screen-detected stage I cancer.
func createTestRecord(t *testing.T, runID string, index int) sink.Record {
	t.Helper()
	e := entity.New("entity", index)
	e.StartAge = 61
	e.Sex = entity.Female
	e.Smoke = entity.SmokeEver
	e.Alcohol = entity.AlcoholNonheavy
	e.HasDentist = true
	e.HasOPL = true
	e.OPLRisk = entity.RiskHigh
	e.NaturalDeath = 9000
	if err := e.SetNatHist([]entity.NatHistEntry{
		{Label: "Stage 1", Status: entity.Status(entity.NHStageI), Time: 100},
		{Label: "Detectable Stage 1", Status: entity.Detected(entity.NHStageI), Time: 400},
	}); err != nil {
		t.Fatalf("SetNatHist() failed: %v", err)
	}
	e.AddUtility("Well", 0.9)
	e.AllTime = 120
	e.AddEvent("Cancer detected")
	e.AddResource("Biopsy")
	e.AddUtility("Stage I", 0.7)
	e.Care.FirstCancer = "I"
	e.Care.ScreenDetected = true
	e.Care.TxPrimary = "Surgery"
	e.Care.DentalVisits = 2
	e.TimeCancer = 100
	e.TimeCancerDetected = 120
	e.AllTime = 800
	e.Die(entity.DeathDisease, "Dead of oral cancer")

	rec, err := sink.NewRecord(runID, e)
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	return rec
}
