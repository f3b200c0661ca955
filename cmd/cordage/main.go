// Command cordage inspects configuration-driven experiment runs.
package main

import (
	"os"

	"github.com/plonerma/cordage/internal/cli/cobra"
	"github.com/plonerma/cordage/internal/errors"
)

func main() {
	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		// Use verbose mode if --verbose global flag was set
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.Print(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
