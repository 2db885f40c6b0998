package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// DefaultMaxSteps is the default maximum number of dispatcher steps per
// entity. It bounds entities whose clocks move but never terminate.
const DefaultMaxSteps = 100000

// Engine is the state dispatcher. It owns no entity state: each call to
// Run advances exactly one entity, on the calling goroutine, from creation
// to a terminal state.
//
// Thread-safety model:
//   - Run(): safe to call concurrently for distinct entities
//   - An entity must never be shared between concurrent Run calls
type Engine struct {
	sync     *Synchronizer
	maxSteps int
	logger   *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxSteps sets the maximum steps quota per entity.
//
// Default: 100000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithSynchronizer replaces the default synchronizer.
func WithSynchronizer(s *Synchronizer) EngineOption {
	return func(e *Engine) {
		e.sync = s
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sync == nil {
		e.sync = NewSynchronizer(WithSyncLogger(e.logger))
	}
	return e
}

// Synchronizer returns the engine's synchronizer.
func (en *Engine) Synchronizer() *Synchronizer {
	return en.sync
}

// MaxSteps returns the per-entity step quota.
func (en *Engine) MaxSteps() int {
	return en.maxSteps
}

// Run advances e until it is dead or failed.
//
// A new entity is initialized, its natural history generated once, and it
// is routed to dental screening or to the no-dentist state. Then each step
// synchronizes the clock and invokes exactly the handler for the resulting
// state. No handler runs for the dead or error states.
//
// ERROR HANDLING: entity-local failures route the entity to the error state
// and Run returns nil; the failure is in e.Err. Run only returns an error
// when ctx is cancelled.
func (en *Engine) Run(ctx context.Context, e *entity.Entity, env Env) error {
	if e.State.Terminal() {
		return nil
	}

	if err := en.start(e, env); err != nil {
		failEntity(en.logger, e, err)
		return nil
	}

	quota := NewQuotaEnforcer(en.maxSteps)
	for !e.State.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := quota.Check(e.ID); err != nil {
			failEntity(en.logger, e, err)
			return nil
		}
		if err := en.Step(e, env); err != nil {
			return nil
		}
	}

	if e.State == entity.StateDead {
		finalize(e)
	}

	en.logger.Debug("entity finished",
		"entity", e.ID,
		"state", e.State.String(),
		"death_type", string(e.DeathType),
		"steps", quota.Current(),
		"all_time", formatClock(e.AllTime))
	return nil
}

// start takes a fresh entity through initialization, natural-history
// generation and dentist routing.
func (en *Engine) start(e *entity.Entity, env Env) error {
	if e.State == entity.StateNew {
		if env.Init == nil {
			return simerr.InvalidState("no initializer for new entity %s", e.ID)
		}
		if err := env.Init.Initialize(e); err != nil {
			return err
		}
		if e.State != entity.StateInitialized {
			return simerr.InvalidState("initializer left %s in state %s", e.ID, e.State)
		}
	}

	if !e.NatHistGenerated() {
		if env.History == nil {
			return simerr.InvalidState("no natural-history generator for %s", e.ID)
		}
		if err := env.History.Generate(e); err != nil {
			return err
		}
	}

	if e.State == entity.StateInitialized {
		if e.HasDentist {
			e.SetState(entity.StateScreening, "1.0 - Start regular dental screening")
		} else {
			e.SetState(entity.StateNoDentist, "1.8 - No access to dentist")
		}
	}
	return nil
}

// Step performs one synchronize-then-handle iteration. A returned error
// has already routed the entity to the error state.
//
// Every step must move at least one clock, the state, the natural-history
// cursor or the loop counter. A step that moves none of them fails the
// entity with RUNAWAY_LOOP instead of repeating until the step quota.
func (en *Engine) Step(e *entity.Entity, env Env) error {
	mark := e.Mark()
	if err := en.sync.CheckTime(e, env.Estimates); err != nil {
		return err
	}
	if e.State.Terminal() {
		return nil
	}

	h, ok := env.Handlers[e.State]
	if !ok || h == nil {
		err := simerr.InvalidState("no handler for state %s", e.State)
		failEntity(en.logger, e, err)
		return err
	}

	before := e.State
	if err := h.Process(e); err != nil {
		failEntity(en.logger, e, err)
		return err
	}
	if !e.State.Valid() {
		err := simerr.InvalidState("handler for %s left unknown state %d", before, int(e.State))
		failEntity(en.logger, e, err)
		return err
	}
	if e.Mark() == mark {
		err := &simerr.Error{
			Code:    simerr.CodeRunawayLoop,
			Message: fmt.Sprintf("step in state %s made no progress at %s", e.State, formatClock(e.AllTime)),
			Details: map[string]string{"guard": "no-progress"},
		}
		failEntity(en.logger, e, err)
		return err
	}
	return nil
}

// finalize closes the record of a dead entity. A natural death at a
// horizon-capped time is a censoring, not a death.
func finalize(e *entity.Entity) {
	e.AddUtility("Dead", 0)
	if e.DeathType == entity.DeathDisease {
		e.HorizonCensored = false
	}
	if e.HorizonCensored {
		e.AddEvent("Entity reaches model time horizon")
		e.DeathType = entity.DeathCensored
		return
	}
	e.AddEvent("Entity dies")
}
