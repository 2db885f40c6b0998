package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/trace"
)

// RunWithGolden executes a scenario and compares the entity's text trace
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result.Entity); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the text trace of e against the golden file
// testdata/golden/{name}.golden.
func AssertGolden(t *testing.T, name string, e *entity.Entity) error {
	t.Helper()

	var buf bytes.Buffer
	if err := trace.WriteText(&buf, e); err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
	return nil
}
