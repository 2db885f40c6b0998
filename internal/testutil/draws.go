package testutil

import (
	"sync"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// FixedDraws supplies predetermined values wherever the natural-history
// generator would draw randomly.
//
// Uniforms are consumed in order; once exhausted DefaultUniform is returned.
// Values answers both estimate samples and stage transition times by name.
//
// Thread-safety: FixedDraws is safe for concurrent use via internal mutex.
type FixedDraws struct {
	mu sync.Mutex

	Uniforms       []float64
	DefaultUniform float64
	Values         map[string]float64
	Risk           entity.OPLRisk
	Progression    float64

	next int
}

// Uniform returns the next scripted uniform.
func (d *FixedDraws) Uniform() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next < len(d.Uniforms) {
		u := d.Uniforms[d.next]
		d.next++
		return u
	}
	return d.DefaultUniform
}

// Sample returns the fixed value for name.
func (d *FixedDraws) Sample(name string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.Values[name]
	if !ok {
		return 0, simerr.UnknownParameter(name)
	}
	return v, nil
}

// RiskTier returns the fixed risk tier, low when unset.
func (d *FixedDraws) RiskTier() (entity.OPLRisk, error) {
	if d.Risk == "" {
		return entity.RiskLow, nil
	}
	return d.Risk, nil
}

// OPLProgression returns the fixed progression time regardless of tier.
func (d *FixedDraws) OPLProgression(entity.OPLRisk) (float64, error) {
	return d.Progression, nil
}

// StageTime returns the fixed value for name.
func (d *FixedDraws) StageTime(_ *entity.Entity, name string) (float64, error) {
	return d.Sample(name)
}

// Consumed returns how many scripted uniforms have been used.
func (d *FixedDraws) Consumed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}
