package sink

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotBegun is returned by Write before Begin.
var ErrNotBegun = errors.New("sink: write before begin")

// Memory keeps records in memory. It is used by tests, by the replay
// command and by runs with no database.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	run     *Run
	records map[int]Record
	closed  bool
}

// NewMemory creates an empty memory sink.
func NewMemory() *Memory {
	return &Memory{records: make(map[int]Record)}
}

// Begin records the run.
func (m *Memory) Begin(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil {
		return fmt.Errorf("sink: run %s already begun", m.run.ID)
	}
	m.run = &run
	return nil
}

// Write stores rec. A second record for the same entity index is ignored,
// matching the database sink.
func (m *Memory) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run == nil {
		return ErrNotBegun
	}
	if m.closed {
		return errors.New("sink: write after close")
	}
	if _, ok := m.records[rec.Index]; ok {
		return nil
	}
	m.records[rec.Index] = rec
	return nil
}

// Close marks the sink closed. Records stay readable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Run returns the run passed to Begin.
func (m *Memory) Run() (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run == nil {
		return Run{}, false
	}
	return *m.run, true
}

// Records returns the stored records ordered by entity index.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b Record) int { return a.Index - b.Index })
	return out
}

// Digests returns the record digests keyed by entity index.
func (m *Memory) Digests() map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string, len(m.records))
	for idx, rec := range m.records {
		out[idx] = rec.Digest
	}
	return out
}

// Multi fans records out to several sinks in order. The first error stops
// the fan-out.
type Multi []Sink

// Begin begins every sink.
func (ms Multi) Begin(ctx context.Context, run Run) error {
	for _, s := range ms {
		if err := s.Begin(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// Write writes rec to every sink.
func (ms Multi) Write(ctx context.Context, rec Record) error {
	for _, s := range ms {
		if err := s.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (ms Multi) Close() error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
