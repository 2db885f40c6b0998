package estimate

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/simerr"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func sampleMean(t *testing.T, est Estimate, n int) float64 {
	t.Helper()
	rng := newRand(7)
	sum := 0.0
	for i := 0; i < n; i++ {
		v, err := est.Sample("x", rng)
		require.NoError(t, err)
		sum += v
	}
	return sum / float64(n)
}

func TestSample_Static(t *testing.T) {
	v, err := Estimate{Family: FamilyStatic, Mean: 65}.Sample("Prev_startage", newRand(1))
	require.NoError(t, err)
	assert.Equal(t, 65.0, v)
}

func TestSample_BetaMatchesMean(t *testing.T) {
	m := sampleMean(t, Estimate{Family: FamilyBeta, Mean: 0.3, SE: 0.05}, 20000)
	assert.InDelta(t, 0.3, m, 0.005)
}

func TestSample_BetaZeroSEIsDegenerate(t *testing.T) {
	v, err := Estimate{Family: FamilyBeta, Mean: 0.25}.Sample("p", newRand(1))
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestSample_NormalPositiveMeanIsAbsolute(t *testing.T) {
	est := Estimate{Family: FamilyNormal, Mean: 0.1, SE: 1}
	rng := newRand(3)
	for i := 0; i < 1000; i++ {
		v, err := est.Sample("n", rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestSample_GammaMatchesMean(t *testing.T) {
	m := sampleMean(t, Estimate{Family: FamilyGamma, Mean: 180, SE: 30}, 20000)
	assert.InDelta(t, 180, m, 2)
}

func TestSample_LogOddsInUnitInterval(t *testing.T) {
	est := Estimate{Family: FamilyLogOdds, Mean: -1, SE: 0.5}
	rng := newRand(5)
	for i := 0; i < 1000; i++ {
		v, err := est.Sample("lo", rng)
		require.NoError(t, err)
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestSample_TransformedExponential(t *testing.T) {
	// Annual probability 0.5 gives a daily rate of ln2/365.
	m := sampleMean(t, Estimate{Family: FamilyTransformedExponential, Mean: 0.5}, 20000)
	assert.InDelta(t, 365/math.Ln2, m, 20)
}

func TestSample_DirichletAloneIsError(t *testing.T) {
	_, err := Estimate{Family: FamilyDirichlet, Mean: 3}.Sample("Tx_probSurgery", newRand(1))
	require.Error(t, err)
	assert.True(t, simerr.IsUnknownParameter(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		est   Estimate
		valid bool
	}{
		{"beta ok", Estimate{Family: FamilyBeta, Mean: 0.5, SE: 0.1}, true},
		{"beta mean out of range", Estimate{Family: FamilyBeta, Mean: 1.2, SE: 0.1}, false},
		{"beta se too large", Estimate{Family: FamilyBeta, Mean: 0.5, SE: 0.6}, false},
		{"gamma non-positive", Estimate{Family: FamilyGamma, Mean: 0, SE: 1}, false},
		{"negative se", Estimate{Family: FamilyNormal, Mean: 1, SE: -1}, false},
		{"nan", Estimate{Family: FamilyStatic, Mean: math.NaN()}, false},
		{"unknown family", Estimate{Family: 12, Mean: 1}, false},
		{"beta direct", Estimate{Family: FamilyBetaDirect, Mean: 2, SE: 50}, true},
		{"static negative", Estimate{Family: FamilyStatic, Mean: -4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.est.Validate("p")
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, simerr.IsUnknownParameter(err))
		})
	}
}

func TestFamily_String(t *testing.T) {
	assert.Equal(t, "transformed-exponential", FamilyTransformedExponential.String())
	assert.Equal(t, "family(0)", Family(0).String())
}

func TestParseFamily(t *testing.T) {
	for f := FamilyBeta; f <= FamilyStatic; f++ {
		got, ok := ParseFamily(f.String())
		assert.True(t, ok, f.String())
		assert.Equal(t, f, got)
	}
	_, ok := ParseFamily("lognormal")
	assert.False(t, ok)
}
