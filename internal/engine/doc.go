// Package engine implements the per-entity discrete-event loop.
//
// The engine has two parts: the Synchronizer, which advances an entity's
// global clock to its next event, and the Engine, which dispatches the
// entity to the handler for the state the synchronizer leaves it in.
//
// ARCHITECTURE:
//
// One Entity, One Goroutine:
// An entity is advanced from creation to a terminal state by a single call
// to Engine.Run with no suspension points. Entities share nothing, so a
// batch runs many Run calls in parallel; determinism comes from every
// entity drawing from its own random stream.
//
// Step Flow:
//  1. New entity initialized (state 0.0 to 0.1)
//  2. Natural history generated exactly once
//  3. Routed to dental screening (1.0) or no dentist access (1.8)
//  4. Synchronizer.CheckTime advances the clock and applies events
//  5. Exactly the handler for the resulting state runs
//  6. Repeat 4-5 until dead (100) or error (99)
//
// CLOCK RULES:
//
// The global clock never moves backwards. Before cancer detection the next
// natural-history event races the system-process clock, with ties going to
// the system process. After detection the synchronizer permanently races
// death of disease, end of life (90 days before death of disease),
// recurrence, natural death and the system-process clock; the globally
// earliest time wins.
//
// TERMINATION:
//
// Three guards guarantee every entity terminates:
//   - No-progress check: a step that leaves the clocks, state, cursor and
//     loop counter unchanged fails at once
//   - Loop ceiling: consecutive checks with the clock on the system-process
//     time and nothing else due (default 1000)
//   - Step quota: total dispatcher steps per entity (default 100000)
//
// All three route the entity to the error state with RUNAWAY_LOOP.
package engine
