package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/oralsim/internal/sink"
)

// stateFields maps the final_state field names to record accessors.
var stateFields = map[string]func(sink.Record) any{
	"state":           func(r sink.Record) any { return r.State.String() },
	"state_label":     func(r sink.Record) any { return r.StateLabel },
	"death_type":      func(r sink.Record) any { return string(r.DeathType) },
	"censored":        func(r sink.Record) any { return r.Censored },
	"error_code":      func(r sink.Record) any { return string(r.ErrorCode) },
	"sex":             func(r sink.Record) any { return string(r.Sex) },
	"smoke":           func(r sink.Record) any { return string(r.Smoke) },
	"alcohol":         func(r sink.Record) any { return string(r.Alcohol) },
	"has_dentist":     func(r sink.Record) any { return r.HasDentist },
	"has_opl":         func(r sink.Record) any { return r.HasOPL },
	"opl_risk":        func(r sink.Record) any { return string(r.OPLRisk) },
	"first_cancer":    func(r sink.Record) any { return r.FirstCancer },
	"screen_detected": func(r sink.Record) any { return r.ScreenDetected },
	"tx_primary":      func(r sink.Record) any { return r.TxPrimary },
	"tx_recurrence":   func(r sink.Record) any { return r.TxRecurrence },
	"dental_visits":   func(r sink.Record) any { return r.DentalVisits },
	"false_positives": func(r sink.Record) any { return r.FalsePositives },
	"false_negatives": func(r sink.Record) any { return r.FalseNegatives },
}

// StateFields lists the fields a final_state assertion may check.
func StateFields() []string {
	names := make([]string, 0, len(stateFields))
	for name := range stateFields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, event := range e.Trace {
			if event.Kind == KindEvent {
				fmt.Fprintf(&buf, "  %s %s\n", formatTime(event.Time), event.Label)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks that an entry with the label and kind exists.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	kind := a.Kind
	if kind == "" {
		kind = KindEvent
	}
	for _, event := range trace {
		if event.Kind == kind && event.Label == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %q", kind, a.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events appear in the specified order.
// They don't need to be consecutive; the first occurrence of each counts.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	pos := 0
	for _, event := range trace {
		if event.Kind != KindEvent {
			continue
		}
		pos++
		if _, seen := positions[event.Label]; !seen && slices.Contains(a.Events, event.Label) {
			positions[event.Label] = pos
		}
	}

	for _, label := range a.Events {
		if _, ok := positions[label]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == KindEvent && event.Label == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %q", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks record fields with subset semantics. Keys are
// checked in sorted order so the first reported mismatch is stable.
func assertFinalState(rec sink.Record, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		field, ok := stateFields[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("known fields: %v", StateFields()),
			}
		}
		want, got := a.Expect[key], field(rec)
		if !valuesEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// valuesEqual compares a record value with a YAML-decoded expectation.
// YAML numbers decode as int or float64; both compare numerically.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == expected
	}
	if a, ok := toFloat(actual); ok {
		e, ok := toFloat(expected)
		return ok && a == e
	}
	if s, ok := actual.(string); ok {
		e, ok := expected.(string)
		return ok && s == e
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Record, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
