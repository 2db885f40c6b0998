package testutil

// FixedRunID generates the same run identifier every time.
//
// Batch outputs and trace snapshots carry the run identifier, so a fixed
// value makes them byte-identical across test runs.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run identifier generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed identifier.
//
// Implements batch.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
