package cobra

import (
	"github.com/spf13/cobra"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/commands"
)

func newShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show details of one experiment",
		Long: `Show details for a single persisted experiment.

Arguments:
  path    an experiment output directory, or its metadata file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := config.Load(globalOpts.ConfigPath)
			if err != nil {
				return err
			}

			opts := commands.ShowOpts{
				Path: args[0],
				JSON: jsonOutput,
			}

			return commands.Show(global, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON (stable format)")

	return cmd
}
