package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SuiteResult contains the results of running a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
}

// ScenarioOutcome is the result of one scenario file. Name is empty when
// the file could not be loaded.
type ScenarioOutcome struct {
	Name   string   `json:"name,omitempty"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// FindScenarios returns the YAML files under dir, sorted by path. A
// non-empty filter is a glob matched against each file's base name
// without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := filepath.Base(path)
			name = name[:len(name)-len(ext)]
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario under dir that matches filter.
// Relative params directories resolve against each scenario's own
// directory. A scenario that cannot be loaded or run counts as failed and
// the suite goes on; only a context cancellation stops it early.
func RunSuite(ctx context.Context, dir, filter string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir, filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: make([]ScenarioOutcome, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := runOne(ctx, path)
		result.Scenarios = append(result.Scenarios, outcome)
		result.Total++
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// Failures returns the failed scenarios.
func (r *SuiteResult) Failures() []ScenarioOutcome {
	var out []ScenarioOutcome
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

func runOne(ctx context.Context, path string) ScenarioOutcome {
	scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		return ScenarioOutcome{Path: path, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}
	outcome := ScenarioOutcome{Name: scenario.Name, Path: path}

	run, err := Run(ctx, scenario)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return outcome
	}
	outcome.Pass = run.Pass
	if !run.Pass {
		outcome.Errors = run.Errors
	}
	return outcome
}
