package engine

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/testutil"
)

func utilities() *estimate.Stream {
	tbl := testutil.StaticTable(map[string]float64{
		ParamUtilWell:             0.9,
		ParamUtilOPLUndetected:    0.85,
		ParamUtilOPLDetected:      0.8,
		ParamUtilStageIUndetected: 0.75,
		ParamUtilStageIIUndetect:  0.7,
		ParamUtilStageIIIUndetect: 0.6,
		ParamUtilStageIVUndetect:  0.5,
	})
	return estimate.NewStream(tbl, rand.New(rand.NewPCG(1, 2)))
}

func entry(label string, status entity.NHStatus, t float64) entity.NatHistEntry {
	return entity.NatHistEntry{Label: label, Status: status, Time: t}
}

// screeningEntity returns an undetected entity in dental screening with the
// given natural history and a natural death at day 10000.
func screeningEntity(t *testing.T, hist ...entity.NatHistEntry) *entity.Entity {
	t.Helper()
	e := entity.New("e-1", 1)
	e.StartAge = 60
	e.Sex = entity.Female
	e.NaturalDeath = 10000
	e.SetState(entity.StateScreening, "1.0 - Start regular dental screening")
	if len(hist) == 0 {
		hist = []entity.NatHistEntry{entry("Natural Death", entity.Status(entity.NHNaturalDeath), 10000)}
	}
	require.NoError(t, e.SetNatHist(hist))
	return e
}

// detectedEntity returns an entity under post-treatment follow-up.
func detectedEntity(t *testing.T) *entity.Entity {
	t.Helper()
	e := screeningEntity(t)
	e.CancerDetected = true
	e.HasCancer = true
	e.Stage = entity.StageI
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")
	return e
}

func TestCheckTime_TerminalIsNoOp(t *testing.T) {
	s := NewSynchronizer()
	for _, st := range []entity.State{entity.StateDead, entity.StateError} {
		e := screeningEntity(t)
		e.AllTime = 123
		e.TimeSysp = 50
		e.SetState(st, "done")
		before := *e

		require.NoError(t, s.CheckTime(e, utilities()))
		assert.Equal(t, before, *e)
	}
}

func TestCheckTime_UpdatesAge(t *testing.T) {
	e := screeningEntity(t)
	e.TimeSysp = 800

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 800.0, e.AllTime)
	assert.Equal(t, 60.0, e.Age)

	e.TimeSysp = 1000
	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 62.0, e.Age)
}

func TestCheckTime_SystemProcessFirst(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 500),
		entry("Detectable Stage 1", entity.Detected(entity.NHStageI), 900),
	)
	e.TimeSysp = 100

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 100.0, e.AllTime)
	next, ok := e.NextNatHist()
	require.True(t, ok)
	assert.Equal(t, "Stage 1", next.Label)
	assert.False(t, e.HasCancer)
}

func TestCheckTime_TieGoesToSystemProcess(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 500),
		entry("Detectable Stage 1", entity.Detected(entity.NHStageI), 900),
	)
	e.TimeSysp = 500

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 500.0, e.AllTime)
	assert.False(t, e.HasCancer)
}

func TestCheckTime_SystemProcessBehindClockServedNow(t *testing.T) {
	e := screeningEntity(t)
	e.AllTime = 700
	e.TimeSysp = 300

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 700.0, e.AllTime)
}

func TestCheckTime_UndetectedStageFires(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 500),
		entry("Undetected Stage 2", entity.Status(entity.NHStageII), 800),
		entry("Detectable Stage 2", entity.Detected(entity.NHStageII), 950),
	)
	e.OPLPresent = true
	e.TimeSysp = 5000
	s := NewSynchronizer()

	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 500.0, e.AllTime)
	assert.True(t, e.HasCancer)
	assert.False(t, e.OPLPresent)
	assert.Equal(t, entity.StageI, e.Stage)
	assert.Equal(t, 500.0, e.TimeCancer)
	assert.Equal(t, entity.Status(entity.NHStageI), e.NHStatus)
	require.Len(t, e.Utility, 1)
	assert.Equal(t, entity.Utility{Label: "Undetected Stage I", Value: 0.75, Time: 500}, e.Utility[0])

	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 800.0, e.AllTime)
	assert.Equal(t, entity.StageII, e.Stage)

	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 950.0, e.AllTime)
	assert.True(t, e.CancerDetected)
	assert.True(t, e.Symptomatic)
	assert.Equal(t, 950.0, e.TimeCancerDetected)
	assert.Equal(t, entity.StateIncidentCancer, e.State)
	assert.Equal(t, entity.StageII, e.Stage)
}

func TestCheckTime_NEDFires(t *testing.T) {
	e := screeningEntity(t,
		entry("NED", entity.Status(entity.NHNoDisease), 300),
		entry("Natural Death", entity.Status(entity.NHNaturalDeath), 10000),
	)
	e.OPLPresent = true
	e.TimeSysp = 400

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 300.0, e.AllTime)
	assert.False(t, e.OPLPresent)
	assert.Equal(t, entity.Status(entity.NHNoDisease), e.NHStatus)
	assert.Equal(t, "No disease", e.Utility[0].Label)
}

func TestCheckTime_DetectedOPLFires(t *testing.T) {
	e := screeningEntity(t,
		entry("Detectable OPL", entity.Detected(entity.NHOPL), 300),
		entry("Natural Death", entity.Status(entity.NHNaturalDeath), 10000),
	)
	e.TimeSysp = 400

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, entity.StateOPLManagement, e.State)
	assert.True(t, e.OPLDetected)
	assert.Equal(t, 300.0, e.TimeOPLDetected)
	assert.Equal(t, "Detected OPL", e.Utility[0].Label)
}

func TestCheckTime_DeadOfUndetectedDisease(t *testing.T) {
	tests := []struct {
		name       string
		stageIV    float64
		death      float64
		detectedAt float64
	}{
		{"death soon after onset detects at onset", 4000, 4030, 4000},
		{"late death detects 90 days before", 1000, 2000, 1910},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := screeningEntity(t,
				entry("Undetected Stage 4", entity.Status(entity.NHStageIV), tt.stageIV),
				entry("Dead of undetected oral cancer", entity.Status(entity.NHDeadOfDisease), tt.death),
			)
			e.TimeSysp = entity.Never
			s := NewSynchronizer()

			require.NoError(t, s.CheckTime(e, utilities()))
			assert.Equal(t, tt.stageIV, e.TimeStageIV)

			require.NoError(t, s.CheckTime(e, utilities()))
			assert.Equal(t, tt.detectedAt, e.AllTime)
			assert.Equal(t, tt.detectedAt, e.TimeCancerDetected)
			assert.Equal(t, tt.death, e.TimeDeadOfDisease)
			assert.Equal(t, entity.StateTerminal, e.State)
			assert.True(t, e.EndOfLife)
			assert.True(t, e.CancerDetected)
			assert.Equal(t, "Terminal", e.Care.FirstCancer)
		})
	}
}

func TestCheckTime_NaturalDeath(t *testing.T) {
	e := screeningEntity(t)
	e.AllTime = 10000

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, entity.DeathNatural, e.DeathType)
	assert.Equal(t, 10000.0, e.TimeDeath)
}

func TestCheckTime_NaturalDeathEntryFires(t *testing.T) {
	e := screeningEntity(t)
	e.TimeSysp = 20000

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, 10000.0, e.AllTime)
	assert.Equal(t, 10000.0, e.TimeDeath)
}

func TestCheckTime_NaturalDeathBeforeLateDisease(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 12000),
		entry("Detectable Stage 1", entity.Detected(entity.NHStageI), 12500),
	)
	e.AllTime = 9900
	e.TimeSysp = 10100

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, entity.DeathNatural, e.DeathType)
	assert.Equal(t, 10000.0, e.AllTime)
	assert.Equal(t, 10000.0, e.TimeDeath)
	assert.False(t, e.HasCancer)
}

func TestCheckTime_SystemProcessAtNaturalDeathServedFirst(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 12000),
	)
	e.TimeSysp = 10000

	s := NewSynchronizer()
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 10000.0, e.AllTime)
	assert.Equal(t, entity.StateScreening, e.State)

	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, 10000.0, e.TimeDeath)
}

func TestCheckTime_DetectedAdvancesToSystemProcess(t *testing.T) {
	e := detectedEntity(t)
	e.AllTime = 500
	e.TimeSysp = 1000
	e.TimeDeadOfDisease = 3000

	s := NewSynchronizer()
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 1000.0, e.AllTime)
	assert.Equal(t, entity.StateFollowup, e.State)

	e.TimeSysp = 5000
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 2910.0, e.AllTime)
	assert.Equal(t, entity.StateTerminal, e.State)
	assert.True(t, e.EndOfLife)

	e.AllTime = 3000
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, entity.DeathDisease, e.DeathType)
	assert.Equal(t, 3000.0, e.TimeDeath)
}

func TestCheckTime_DetectedIgnoresNaturalHistory(t *testing.T) {
	e := screeningEntity(t,
		entry("Undetected Stage 2", entity.Status(entity.NHStageII), 100),
		entry("Natural Death", entity.Status(entity.NHNaturalDeath), 10000),
	)
	e.CancerDetected = true
	e.SetState(entity.StateFollowup, "Post-treatment follow-up")
	e.TimeSysp = 200

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 200.0, e.AllTime)
	next, ok := e.NextNatHist()
	require.True(t, ok)
	assert.Equal(t, "Undetected Stage 2", next.Label)
}

func TestCheckTime_Recurrence(t *testing.T) {
	for _, sysp := range []float64{1000, 800} {
		e := detectedEntity(t)
		e.AllTime = 500
		e.TimeSysp = sysp
		e.TimeRecurrence = 800

		require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
		assert.Equal(t, 800.0, e.AllTime)
		assert.True(t, e.Recurrence)
		assert.Equal(t, entity.StageRecur, e.Stage)
		assert.Equal(t, entity.StateIncidentCancer, e.State)
		assert.True(t, entity.IsNever(e.TimeRecurrence))
	}
}

func TestCheckTime_EndOfLifeBeforeRecurrence(t *testing.T) {
	e := detectedEntity(t)
	e.AllTime = 500
	e.TimeSysp = 2000
	e.TimeRecurrence = 950
	e.TimeDeadOfDisease = 1000

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, 910.0, e.AllTime)
	assert.Equal(t, entity.StateTerminal, e.State)
	assert.Equal(t, "End of Life", e.StateLabel)
	assert.True(t, entity.IsNever(e.TimeRecurrence))
	assert.False(t, e.Recurrence)
}

func TestCheckTime_NaturalDeathPreemptsAfterDetection(t *testing.T) {
	e := detectedEntity(t)
	e.NaturalDeath = 800
	e.AllTime = 500
	e.TimeSysp = 900
	e.TimeRecurrence = 850

	require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, entity.DeathNatural, e.DeathType)
	assert.Equal(t, 800.0, e.AllTime)
}

func TestCheckTime_RunawayLoop(t *testing.T) {
	e := detectedEntity(t)
	e.AllTime = 100
	e.TimeSysp = 100
	s := NewSynchronizer(WithLoopCeiling(3))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CheckTime(e, utilities()))
	}
	assert.Equal(t, 3, e.LoopCount())

	err := s.CheckTime(e, utilities())
	require.Error(t, err)
	assert.True(t, simerr.IsRunawayLoop(err))
	assert.Equal(t, entity.StateError, e.State)
	assert.True(t, strings.HasPrefix(e.StateLabel, "ERROR - RUNAWAY_LOOP"))
	assert.Equal(t, err, e.Err)
}

func TestCheckTime_LoopCounterResetsOnProgress(t *testing.T) {
	e := detectedEntity(t)
	e.AllTime = 100
	e.TimeSysp = 100
	s := NewSynchronizer(WithLoopCeiling(2))

	require.NoError(t, s.CheckTime(e, utilities()))
	require.NoError(t, s.CheckTime(e, utilities()))
	e.TimeSysp = 200
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 0, e.LoopCount())
	require.NoError(t, s.CheckTime(e, utilities()))
	require.NoError(t, s.CheckTime(e, utilities()))
	assert.Equal(t, 2, e.LoopCount())
}

func TestCheckTime_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *entity.Entity
		provider estimate.Provider
		check    func(error) bool
	}{
		{
			name: "system process behind clock after detection",
			setup: func(t *testing.T) *entity.Entity {
				e := detectedEntity(t)
				e.AllTime = 500
				e.TimeSysp = 400
				return e
			},
			check: simerr.IsSchedulingConflict,
		},
		{
			name: "recurrence behind clock",
			setup: func(t *testing.T) *entity.Entity {
				e := detectedEntity(t)
				e.AllTime = 500
				e.TimeSysp = 900
				e.TimeRecurrence = 400
				return e
			},
			check: simerr.IsSchedulingConflict,
		},
		{
			name: "unrecognized natural-history status",
			setup: func(t *testing.T) *entity.Entity {
				e := screeningEntity(t, entry("bogus", entity.NHStatus{Kind: 42}, 100))
				e.TimeSysp = 500
				return e
			},
			check: simerr.IsInvalidState,
		},
		{
			name: "status that cannot fire",
			setup: func(t *testing.T) *entity.Entity {
				e := screeningEntity(t, entry("no OPL", entity.Status(entity.NHNoOPL), 100))
				e.TimeSysp = 500
				return e
			},
			check: simerr.IsInvalidState,
		},
		{
			name: "natural history exhausted",
			setup: func(t *testing.T) *entity.Entity {
				e := screeningEntity(t, entry("NED", entity.Status(entity.NHNoDisease), 100))
				e.TimeSysp = 500
				require.NoError(t, NewSynchronizer().CheckTime(e, utilities()))
				return e
			},
			check: simerr.IsInvalidState,
		},
		{
			name: "unknown entity state",
			setup: func(t *testing.T) *entity.Entity {
				e := screeningEntity(t)
				e.State = entity.State(77)
				return e
			},
			check: simerr.IsInvalidState,
		},
		{
			name: "missing utility estimate",
			setup: func(t *testing.T) *entity.Entity {
				e := screeningEntity(t, entry("NED", entity.Status(entity.NHNoDisease), 100))
				e.TimeSysp = 500
				return e
			},
			provider: estimate.NewStream(testutil.StaticTable(map[string]float64{"x": 1}), rand.New(rand.NewPCG(1, 1))),
			check:    simerr.IsUnknownParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.setup(t)
			p := tt.provider
			if p == nil {
				p = utilities()
			}

			err := NewSynchronizer().CheckTime(e, p)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.Equal(t, entity.StateError, e.State)
			assert.True(t, strings.HasPrefix(e.StateLabel, "ERROR - "))
		})
	}
}

func TestCheckTime_ClockNeverRewinds(t *testing.T) {
	e := screeningEntity(t,
		entry("Stage 1", entity.Status(entity.NHStageI), 500),
		entry("Undetected Stage 2", entity.Status(entity.NHStageII), 800),
		entry("Undetected Stage 3", entity.Status(entity.NHStageIII), 1200),
		entry("Undetected Stage 4", entity.Status(entity.NHStageIV), 1300),
		entry("Dead of undetected oral cancer", entity.Status(entity.NHDeadOfDisease), 1330),
	)
	s := NewSynchronizer()
	last := e.AllTime
	for i := 0; i < 100 && !e.State.Terminal(); i++ {
		e.TimeSysp = e.AllTime + 250
		require.NoError(t, s.CheckTime(e, utilities()))
		assert.GreaterOrEqual(t, e.AllTime, last)
		last = e.AllTime
		if e.State == entity.StateTerminal {
			e.AllTime = e.TimeDeadOfDisease
		}
	}
	assert.Equal(t, entity.StateDead, e.State)
	assert.Equal(t, entity.DeathDisease, e.DeathType)
}
