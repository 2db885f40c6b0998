package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/oralsim/internal/params"
)

// loadParams reads the parameter set in dir, or the built-in set when dir
// is empty. Load errors are returned in full so a command can report each.
func loadParams(dir string) (*params.Set, []error) {
	if dir == "" {
		return params.Default()
	}
	return params.Load(dir)
}

// loadCheckedParams loads a parameter set that must be complete, failing
// with the first load or check error.
func loadCheckedParams(dir string) (*params.Set, error) {
	set, errs := loadParams(dir)
	if len(errs) == 0 {
		errs = set.Check()
	}
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load parameters", errs[0])
	}
	return set, nil
}

// errorCode returns the load code carried by err, or the generic code.
func errorCode(err error) string {
	var le *params.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return params.ErrCodeGeneric
}

// reportError prints err in the command's format before it is returned
// for the exit code.
func reportError(opts *RootOptions, cmd *cobra.Command, code string, err error) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	_ = formatter.Error(code, err.Error(), nil)
	return err
}

func addParamsFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "params", "", "parameter directory (default: built-in parameters)")
}
