// Package harness runs scenario tests against the simulation.
//
// A scenario pins one entity of one seeded run, optionally fixes some
// estimates to static values, simulates it through the real engine and
// care pathway, and checks assertions on the resulting trace and final
// state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	params: path/to/params   # optional, built-in set when empty
//	seed: 42
//	index: 0
//	overrides:
//	  timehorizon: 0.1
//	  Prev_dentist: 0
//	assertions:
//	  - type: trace_contains
//	    event: "Entity reaches model time horizon"
//	  - type: trace_count
//	    event: "OPL Diagnosed"
//	    count: 0
//	  - type: trace_order
//	    events: ["Dental visit", "OPL Diagnosed"]
//	  - type: final_state
//	    expect: { death_type: censored, has_opl: false }
//
// Overrides replace the named estimates with static values, which removes
// their sampling noise and makes the scenario deterministic for the
// quantities that matter to it.
//
// # Assertion Types
//
//   - trace_contains: a trace entry with the label exists (kind defaults to event)
//   - trace_order: the labelled events appear in the given order
//   - trace_count: an event label appears exactly N times
//   - final_state: fields of the finished record equal the expected values
//
// # Trace Kinds
//
// The trace merges the natural history ("nathist"), events ("event"),
// resources ("resource") and utilities ("utility") of the entity, each in
// the order it was recorded.
package harness
