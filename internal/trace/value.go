package trace

import (
	"slices"
	"strconv"
	"unicode/utf16"

	"github.com/roach88/oralsim/internal/entity"
)

// Value is a sealed interface over the value types a trace may hold.
// There is no float type: clock and utility values are rendered as
// decimal strings so that a trace hashes identically on every platform.
type Value interface {
	traceValue()
}

// String is a string value.
type String string

func (String) traceValue() {}

// Int is an integer value.
type Int int64

func (Int) traceValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) traceValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) traceValue() {}

// Object maps keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) traceValue() {}

// Number renders v as the shortest decimal string that round-trips.
func Number(v float64) String {
	return String(strconv.FormatFloat(v, 'f', -1, 64))
}

// Clock renders a clock value, spelling out the unscheduled sentinel.
func Clock(t float64) String {
	if entity.IsNever(t) {
		return "never"
	}
	return Number(t)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// compareKeys orders by UTF-16 code unit. Byte order of the UTF-8
// encoding differs for characters outside the basic multilingual plane.
func compareKeys(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
