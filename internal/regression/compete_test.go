package regression

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/simerr"
)

func TestAttribute_Ratio(t *testing.T) {
	anyEvent := Model{Spec: "FirstEvent", Shape: 1, Scale: 100}
	competing := Model{Spec: "FirstEvent_death", Shape: 1, Scale: 200}

	// p1 = 1-e^-1, p2 = 1-e^-0.5, ratio ≈ 0.6225
	ratio := (1 - math.Exp(-0.5)) / (1 - math.Exp(-1))

	out, err := Attribute(anyEvent, competing, 100, ratio-0.01)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Time: 100, Type: EventCompeting}, out)

	out, err = Attribute(anyEvent, competing, 100, ratio+0.01)
	require.NoError(t, err)
	assert.Equal(t, EventGeneral, out.Type)
}

func TestAttribute_ZeroAnyEventProbability(t *testing.T) {
	anyEvent := Model{Spec: "FirstEvent", Shape: 1, Scale: 100}
	competing := Model{Spec: "FirstEvent_death", Shape: 1, Scale: 100}

	_, err := Attribute(anyEvent, competing, 0, 0.5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZeroAnyEventProbability)
	assert.True(t, simerr.IsSchedulingConflict(err))
}

func TestResolve_IdenticalCurvesAlwaysCompeting(t *testing.T) {
	m := Model{Spec: "X", Shape: 1.5, Scale: 900}
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 1000; i++ {
		out, err := Resolve(m, m, rng)
		require.NoError(t, err)
		assert.Equal(t, EventCompeting, out.Type)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	anyEvent := Model{Shape: 1, Scale: 100}
	competing := Model{Shape: 1, Scale: 300}

	a := rand.New(rand.NewPCG(8, 8))
	b := rand.New(rand.NewPCG(8, 8))
	for i := 0; i < 100; i++ {
		oa, err := Resolve(anyEvent, competing, a)
		require.NoError(t, err)
		ob, err := Resolve(anyEvent, competing, b)
		require.NoError(t, err)
		assert.Equal(t, oa, ob)
	}
}

func TestResolve_CompetingShareTracksRatio(t *testing.T) {
	// With exponential curves the ratio is not constant in t, but a much
	// slower competing curve should win well under half the time.
	anyEvent := Model{Shape: 1, Scale: 100}
	competing := Model{Shape: 1, Scale: 10000}
	rng := rand.New(rand.NewPCG(10, 1))

	wins := 0
	for i := 0; i < 5000; i++ {
		out, err := Resolve(anyEvent, competing, rng)
		require.NoError(t, err)
		if out.Type == EventCompeting {
			wins++
		}
	}
	assert.Less(t, wins, 500)
}

func TestCompete_BindsBoth(t *testing.T) {
	death := firstEventSpec()
	death.Name = "FirstEvent_death"
	tbl := MustTable(firstEventSpec(), death)

	out, err := tbl.Compete("FirstEvent", "FirstEvent_death", testEntity(), rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, EventCompeting, out.Type)
	assert.Greater(t, out.Time, 0.0)

	_, err = tbl.Compete("FirstEvent", "Missing", testEntity(), rand.New(rand.NewPCG(1, 1)))
	assert.True(t, simerr.IsUnknownParameter(err))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "general", EventGeneral.String())
	assert.Equal(t, "competing", EventCompeting.String())
	assert.Equal(t, "event(7)", EventType(7).String())
}
