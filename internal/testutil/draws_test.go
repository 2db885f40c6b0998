package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/simerr"
)

func TestFixedDraws_UniformSequence(t *testing.T) {
	d := &FixedDraws{Uniforms: []float64{0.1, 0.2}, DefaultUniform: 0.9}

	assert.Equal(t, 0.1, d.Uniform())
	assert.Equal(t, 0.2, d.Uniform())
	assert.Equal(t, 0.9, d.Uniform())
	assert.Equal(t, 2, d.Consumed())
}

func TestFixedDraws_Values(t *testing.T) {
	d := &FixedDraws{Values: map[string]float64{"NatHist_timeOPL_NED": 9000}}

	v, err := d.Sample("NatHist_timeOPL_NED")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, v)

	v, err = d.StageTime(entity.New("e", 0), "NatHist_timeOPL_NED")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, v)

	_, err = d.Sample("missing")
	assert.True(t, simerr.IsUnknownParameter(err))
}

func TestFixedDraws_RiskDefaultsLow(t *testing.T) {
	d := &FixedDraws{}
	r, err := d.RiskTier()
	require.NoError(t, err)
	assert.Equal(t, entity.RiskLow, r)

	d.Risk = entity.RiskHigh
	r, _ = d.RiskTier()
	assert.Equal(t, entity.RiskHigh, r)
}

func TestStaticTable(t *testing.T) {
	tbl := StaticTable(map[string]float64{"Util_Well": 0.9})
	s := estimate.NewStream(tbl, rand.New(rand.NewPCG(1, 1)))

	v, err := s.Sample("Util_Well")
	require.NoError(t, err)
	assert.Equal(t, 0.9, v)
}
