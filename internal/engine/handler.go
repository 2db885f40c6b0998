package engine

import (
	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/estimate"
)

// Handler processes an entity in one pathway state.
//
// A handler reads and writes the entity's clocks, flags and logs and may
// change its state. The engine never inspects a handler's internals, only
// the entity it leaves behind. A returned error routes the entity to the
// error state.
type Handler interface {
	Process(e *entity.Entity) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(e *entity.Entity) error

// Process calls f(e).
func (f HandlerFunc) Process(e *entity.Entity) error {
	return f(e)
}

// Handlers maps each non-terminal pathway state to its handler.
type Handlers map[entity.State]Handler

// Initializer applies demographics to a new entity and moves it to
// StateInitialized.
type Initializer interface {
	Initialize(e *entity.Entity) error
}

// InitializerFunc adapts a function to the Initializer interface.
type InitializerFunc func(e *entity.Entity) error

// Initialize calls f(e).
func (f InitializerFunc) Initialize(e *entity.Entity) error {
	return f(e)
}

// HistoryGenerator builds an entity's natural history.
type HistoryGenerator interface {
	Generate(e *entity.Entity) error
}

// Env is the set of per-entity collaborators for one run. Every
// collaborator draws from the same entity-owned random stream.
type Env struct {
	Estimates estimate.Provider
	Init      Initializer
	History   HistoryGenerator
	Handlers  Handlers
}
