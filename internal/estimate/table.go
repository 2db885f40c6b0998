package estimate

import (
	"errors"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distmv"

	"github.com/roach88/oralsim/internal/simerr"
)

// Provider resolves named estimates. Implementations are bound to one
// entity's random stream.
type Provider interface {
	// Sample draws a value for the named estimate.
	Sample(name string) (float64, error)

	// Mean returns the central value of the named estimate.
	Mean(name string) (float64, error)
}

// Table is an immutable set of named estimates.
type Table struct {
	m map[string]Estimate
}

// NewTable validates and copies the given estimates.
func NewTable(m map[string]Estimate) (*Table, error) {
	cp := make(map[string]Estimate, len(m))
	var errs []error
	for _, name := range sortedNames(m) {
		est := m[name]
		if err := est.Validate(name); err != nil {
			errs = append(errs, err)
			continue
		}
		cp[name] = est
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Table{m: cp}, nil
}

// MustTable is NewTable for fixtures; it panics on invalid input.
func MustTable(m map[string]Estimate) *Table {
	t, err := NewTable(m)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the named estimate.
func (t *Table) Lookup(name string) (Estimate, error) {
	est, ok := t.m[name]
	if !ok {
		return Estimate{}, simerr.UnknownParameter(name)
	}
	return est, nil
}

// Has reports whether the table defines name.
func (t *Table) Has(name string) bool {
	_, ok := t.m[name]
	return ok
}

// Len returns the number of estimates.
func (t *Table) Len() int {
	return len(t.m)
}

// Names returns the estimate names in sorted order.
func (t *Table) Names() []string {
	return sortedNames(t.m)
}

// Missing returns the names from required that the table lacks.
func (t *Table) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// With returns a derived table with the given estimates replaced or added.
// The receiver is not modified.
func (t *Table) With(overrides map[string]Estimate) (*Table, error) {
	merged := make(map[string]Estimate, len(t.m)+len(overrides))
	for k, v := range t.m {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return NewTable(merged)
}

func sortedNames(m map[string]Estimate) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stream is a Provider bound to one random stream.
type Stream struct {
	table *Table
	rng   *rand.Rand
}

// NewStream binds a table to a random stream.
func NewStream(t *Table, rng *rand.Rand) *Stream {
	return &Stream{table: t, rng: rng}
}

// Sample draws a value for the named estimate.
func (s *Stream) Sample(name string) (float64, error) {
	est, err := s.table.Lookup(name)
	if err != nil {
		return 0, err
	}
	return est.Sample(name, s.rng)
}

// Mean returns the mean of the named estimate.
func (s *Stream) Mean(name string) (float64, error) {
	est, err := s.table.Lookup(name)
	if err != nil {
		return 0, err
	}
	return est.Mean, nil
}

// Uniform returns a uniform draw in [0, 1).
func (s *Stream) Uniform() float64 {
	return s.rng.Float64()
}

// Rand exposes the underlying random stream.
func (s *Stream) Rand() *rand.Rand {
	return s.rng
}

// Table returns the table the stream samples from.
func (s *Stream) Table() *Table {
	return s.table
}

// Dirichlet draws a probability vector whose concentrations are the means
// of the named estimates, in the given order.
func (s *Stream) Dirichlet(names ...string) ([]float64, error) {
	alpha := make([]float64, len(names))
	for i, name := range names {
		est, err := s.table.Lookup(name)
		if err != nil {
			return nil, err
		}
		alpha[i] = est.Mean
	}
	return SampleDirichlet(alpha, s.rng)
}

// SampleDirichlet draws from Dirichlet(alpha).
func SampleDirichlet(alpha []float64, src rand.Source) ([]float64, error) {
	if len(alpha) < 2 {
		return nil, simerr.InvalidParameter("dirichlet", "at least two categories are required")
	}
	for _, a := range alpha {
		if !(a > 0) {
			return nil, simerr.InvalidParameter("dirichlet", "concentrations must be positive")
		}
	}
	return distmv.NewDirichlet(alpha, src).Rand(nil), nil
}

// Categorical returns the index of the category u falls into when the
// probabilities are laid end to end. Draws past the last boundary because of
// rounding land in the last category.
func Categorical(u float64, probs []float64) int {
	if len(probs) == 0 {
		return -1
	}
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u <= cum {
			return i
		}
	}
	return len(probs) - 1
}
