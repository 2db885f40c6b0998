// Command oralsim runs the oral cancer screening microsimulation.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/oralsim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Exit errors have already been reported by their command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
