package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a single-entity simulation test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Params is a parameter directory. Empty selects the built-in set.
	// Relative paths are resolved against the scenario's base path.
	Params string `yaml:"params,omitempty"`

	// Seed is the run seed.
	Seed uint64 `yaml:"seed"`

	// Index is the entity index within the run.
	Index int `yaml:"index"`

	// Overrides fix estimates to static values.
	Overrides map[string]float64 `yaml:"overrides,omitempty"`

	// SurgeryShift shifts the intercept of the surgery regressions.
	SurgeryShift float64 `yaml:"surgery_shift,omitempty"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event is the trace label (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Kind restricts trace_contains to one trace kind. Defaults to event.
	Kind string `yaml:"kind,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect holds expected record fields (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative params directory against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return parseScenario(data, basePath)
}

func parseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Params != "" && !filepath.IsAbs(scenario.Params) && basePath != "" {
		scenario.Params = filepath.Join(basePath, scenario.Params)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", s.Index)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Params != "" {
		if _, err := os.Stat(s.Params); os.IsNotExist(err) {
			return fmt.Errorf("params directory not found: %s", s.Params)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
		switch a.Kind {
		case "", KindNatHist, KindEvent, KindResource, KindUtility:
		default:
			return fmt.Errorf("assertions[%d]: unknown trace kind %q", index, a.Kind)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for key := range a.Expect {
			if _, ok := stateFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown final_state field %q", index, key)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
