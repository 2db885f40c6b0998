package nathist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/testutil"
)

func newEntity(probOPL float64) *entity.Entity {
	e := entity.New("e-1", 1)
	e.StartAge = 60
	e.Sex = entity.Female
	e.ProbOPL = probOPL
	e.NaturalDeath = 20000
	e.SetState(entity.StateInitialized, "Initialized")
	return e
}

func stageValues() map[string]float64 {
	return map[string]float64{
		ParamUtilOPLUndetected: 0.85,
		ParamOPLResolution:     9000,
		ParamStageISympt:       400,
		ParamStageIProgress:    300,
		ParamStageIISympt:      500,
		ParamStageIIProgress:   200,
		ParamStageIIISympt:     800,
		ParamStageIIIProgress:  100,
		ParamStageIVSympt:      50,
		// Stage IV onset at 500+300+200+100 = 1100 days, age 63.
		"NatHist_timeStagefour_death6069f": 30,
	}
}

func labels(entries []entity.NatHistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label
	}
	return out
}

func TestGenerate_NoOPL(t *testing.T) {
	e := newEntity(0.1)
	draws := &testutil.FixedDraws{Uniforms: []float64{0.5}}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	require.Len(t, hist, 1)
	assert.Equal(t, entity.NatHistEntry{
		Label:  LabelNaturalDeath,
		Status: entity.Status(entity.NHNaturalDeath),
		Time:   20000,
	}, hist[0])
	assert.False(t, e.HasOPL)
	assert.Equal(t, entity.Status(entity.NHNoOPL), e.NHStatus)
}

func TestGenerate_OPLResolves(t *testing.T) {
	e := newEntity(1)
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      stageValues(),
		Risk:        entity.RiskMedium,
		Progression: 12000,
	}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	assert.Equal(t, []string{LabelNED, LabelNaturalDeath}, labels(hist))
	assert.Equal(t, 9000.0, hist[0].Time)
	assert.Equal(t, entity.Status(entity.NHNoDisease), hist[0].Status)
	assert.Equal(t, entity.RiskMedium, e.OPLRisk)
	assert.True(t, e.HasOPL)
	require.Len(t, e.Utility, 1)
	assert.Equal(t, "Undetected OPL", e.Utility[0].Label)
}

func TestGenerate_ResolutionAfterNaturalDeath(t *testing.T) {
	e := newEntity(1)
	e.NaturalDeath = 5000
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      stageValues(),
		Progression: 12000,
	}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	assert.Equal(t, []string{LabelNaturalDeath}, labels(hist))
	assert.Equal(t, 5000.0, hist[0].Time)
}

func TestGenerate_ProgressesToStageOne(t *testing.T) {
	e := newEntity(1)
	values := stageValues()
	values[ParamStageISympt] = 100 // detected before progressing
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      values,
		Risk:        entity.RiskLow,
		Progression: 500,
	}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	stageOne := 0
	for _, h := range hist {
		if h.Label == LabelStageI {
			stageOne++
			assert.Equal(t, 500.0, h.Time)
			assert.Equal(t, entity.Status(entity.NHStageI), h.Status)
		}
	}
	assert.Equal(t, 1, stageOne)
	assert.Equal(t, []string{LabelStageI, "Detectable Stage 1"}, labels(hist))
	assert.Equal(t, 600.0, hist[1].Time)
	assert.Equal(t, entity.Detected(entity.NHStageI), hist[1].Status)
}

func TestGenerate_FullProgressionToDeath(t *testing.T) {
	e := newEntity(1)
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      stageValues(),
		Progression: 500,
	}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	assert.Equal(t, []string{
		LabelStageI,
		"Undetected Stage 2",
		"Undetected Stage 3",
		"Undetected Stage 4",
		LabelDeadOfDisease,
	}, labels(hist))

	times := []float64{500, 800, 1000, 1100, 1130}
	for i, h := range hist {
		assert.Equal(t, times[i], h.Time, "entry %d", i)
	}
	assert.Equal(t, entity.Status(entity.NHDeadOfDisease), hist[4].Status)
	assert.LessOrEqual(t, len(hist), MaxEntries)
}

func TestGenerate_StageFourSymptomaticWins(t *testing.T) {
	e := newEntity(1)
	values := stageValues()
	values[ParamStageIVSympt] = 20
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      values,
		Progression: 500,
	}

	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	last := hist[len(hist)-1]
	assert.Equal(t, "Detectable Stage 4", last.Label)
	assert.Equal(t, entity.Detected(entity.NHStageIV), last.Status)
	assert.Equal(t, 1120.0, last.Time)
}

func TestGenerate_TimesNonDecreasing(t *testing.T) {
	e := newEntity(1)
	draws := &testutil.FixedDraws{
		Uniforms:    []float64{0.2},
		Values:      stageValues(),
		Progression: 500,
	}
	require.NoError(t, New(draws).Generate(e))

	hist := e.NatHist()
	for i := 1; i < len(hist); i++ {
		assert.GreaterOrEqual(t, hist[i].Time, hist[i-1].Time)
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("already generated", func(t *testing.T) {
		e := newEntity(0)
		g := New(&testutil.FixedDraws{DefaultUniform: 0.5})
		require.NoError(t, g.Generate(e))

		err := g.Generate(e)
		assert.True(t, simerr.IsInvalidState(err))
	})

	t.Run("no natural death", func(t *testing.T) {
		e := newEntity(0)
		e.NaturalDeath = entity.Never
		err := New(&testutil.FixedDraws{}).Generate(e)
		assert.True(t, simerr.IsInvalidState(err))
	})

	t.Run("missing estimate", func(t *testing.T) {
		e := newEntity(1)
		draws := &testutil.FixedDraws{Uniforms: []float64{0.2}, Values: map[string]float64{}}
		err := New(draws).Generate(e)
		assert.True(t, simerr.IsUnknownParameter(err))
		assert.False(t, e.NatHistGenerated())
	})

	t.Run("unknown sex at stage four", func(t *testing.T) {
		e := newEntity(1)
		e.Sex = ""
		draws := &testutil.FixedDraws{
			Uniforms:    []float64{0.2},
			Values:      stageValues(),
			Progression: 500,
		}
		err := New(draws).Generate(e)
		assert.True(t, simerr.IsMissingCovariate(err))
	})
}
