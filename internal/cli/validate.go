package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/params"
)

// ValidationIssue is one problem found in a parameter directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Source      string            `json:"source"`
	Files       int               `json:"files"`
	Estimates   int               `json:"estimates"`
	Regressions int               `json:"regressions"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [params-dir]",
		Short: "Check a parameter directory",
		Long: `Load a CUE parameter directory, unify it with the parameter schema and
check that every estimate, regression and stage transition the model
samples is defined. Without a directory the built-in parameters are
checked.

Every problem is reported, not just the first.

Exit codes:
  0 - Parameters are complete
  1 - Parameters are incomplete or invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source := dir
	if source == "" {
		source = "built-in"
	}

	set, errs := loadParams(dir)
	if len(errs) > 0 && unusableSource(errs[0]) {
		code := errorCode(errs[0])
		_ = formatter.Error(code, errs[0].Error(), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, errs[0].Error()))
	}

	result := ValidationResult{Source: source}
	if set != nil {
		formatter.VerboseLog("Loaded %d CUE file(s) from %s", set.Files, source)
		result.Files = set.Files
		if set.Estimates != nil {
			result.Estimates = set.Estimates.Len()
		}
		if set.Regressions != nil {
			result.Regressions = len(set.Regressions.Names())
		}
		if len(errs) == 0 {
			errs = set.Check()
		}
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, toIssue(err))
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		if opts.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ Parameters valid (%s: %d estimates, %d regressions)\n",
			source, result.Estimates, result.Regressions)
		return nil
	}

	if opts.Format == "json" {
		first := result.Errors[0]
		if err := formatter.Report(result, &CLIError{Code: first.Code, Message: first.Message}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, issue := range result.Errors {
			if issue.Line > 0 {
				fmt.Fprintf(formatter.Writer, "%s line %d\n", issue.File, issue.Line)
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

// unusableSource reports whether err means no parameters could be read
// at all, as opposed to parameters that were read and found wrong.
func unusableSource(err error) bool {
	switch errorCode(err) {
	case params.ErrCodeScanError, params.ErrCodeNoFiles, params.ErrCodeLoadFailed, params.ErrCodeNotFound:
		return true
	}
	return false
}

func toIssue(err error) ValidationIssue {
	var le *params.LoadError
	if !errors.As(err, &le) {
		return ValidationIssue{Code: params.ErrCodeGeneric, Message: err.Error()}
	}
	issue := ValidationIssue{Code: le.Code, Message: le.Message}
	if le.Pos.IsValid() {
		issue.File = le.Pos.Filename()
		issue.Line = le.Pos.Line()
	}
	return issue
}
