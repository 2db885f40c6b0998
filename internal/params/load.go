// Package params loads model inputs from CUE.
//
// A parameter directory holds one CUE package with three top-level fields:
// estimates, regressions and lifeTable. Every file must open with the same
// package clause; files without one fail to load with E004. The package is
// unified with an embedded schema, decoded and turned into the immutable
// tables the simulation reads. Nothing is defaulted: a parameter the model needs and
// the files do not define fails Check before any entity is simulated.
package params

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/oralsim/internal/cohort"
	"github.com/roach88/oralsim/internal/estimate"
	"github.com/roach88/oralsim/internal/regression"
)

//go:embed schema.cue
var schemaCUE string

//go:embed defaults/default.cue
var defaultCUE string

// Error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeSchema      = "E007" // Schema violation

	ErrCodeEstimate   = "E201" // Estimate cannot be turned into a distribution
	ErrCodeRegression = "E202" // Invalid regression specification
	ErrCodeLifeTable  = "E203" // Invalid life table

	ErrCodeMissingEstimate   = "E210" // Required estimate not defined
	ErrCodeMissingRegression = "E211" // Required regression not defined
	ErrCodeMissingStageTime  = "E212" // Stage transition neither an estimate nor a regression
	ErrCodeUnknownCovariate  = "E213" // Regression references an attribute outside the schema
)

// LoadError is a failure to load or validate parameters.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Set is a loaded parameter set.
type Set struct {
	Estimates   *estimate.Table
	Regressions *regression.Table
	LifeTable   *cohort.LifeTable

	// Files is the number of CUE files the set was loaded from.
	Files int
}

// Load reads the CUE package in dir. Errors are collected rather than
// returned one at a time, so a single run reports every bad parameter.
func Load(dir string) (*Set, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("parameter directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing parameter directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{convertCUEError(ErrCodeBuildFailed, err)}
	}

	set, errs := decode(ctx, value)
	if set != nil {
		set.Files = len(files)
	}
	return set, errs
}

// LoadString reads parameters from CUE source.
func LoadString(src string) (*Set, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename("params.cue"))
	if err := value.Err(); err != nil {
		return nil, []error{convertCUEError(ErrCodeBuildFailed, err)}
	}
	set, errs := decode(ctx, value)
	if set != nil {
		set.Files = 1
	}
	return set, errs
}

// Default returns the built-in parameter set.
func Default() (*Set, []error) {
	return LoadString(defaultCUE)
}

// DefaultSource returns the CUE source of the built-in parameter set.
func DefaultSource() string {
	return defaultCUE
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCUEError keeps the position of the first CUE error.
func convertCUEError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
