package testutil

import (
	"github.com/roach88/oralsim/internal/estimate"
)

// StaticTable builds an estimate table in which every value is static, so
// sampling is deterministic regardless of the random stream.
func StaticTable(values map[string]float64) *estimate.Table {
	m := make(map[string]estimate.Estimate, len(values))
	for name, v := range values {
		m[name] = estimate.Estimate{Family: estimate.FamilyStatic, Mean: v}
	}
	return estimate.MustTable(m)
}
