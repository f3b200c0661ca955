// Package cobra provides the Cobra-based CLI command tree for cordage.
package cobra

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/plonerma/cordage/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose    bool
	ConfigPath string
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for cordage.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cordage",
		Short: "Inspect configuration-driven experiment runs",
		Long: `cordage - inspect configuration-driven experiment runs

Cordage expands a base configuration plus a series specification into
trials and records each trial's lifecycle on disk. This CLI reads those
records: it lists experiment trees and shows single experiments.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show detailed error context")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ConfigPath, "config", "", "path to a cordage configuration file")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newLSCmd(),
		newShowCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}
