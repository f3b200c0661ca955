package cobra

import (
	"github.com/spf13/cobra"

	"github.com/plonerma/cordage/config"
	"github.com/plonerma/cordage/internal/commands"
)

func newLSCmd() *cobra.Command {
	var statuses []string
	var tags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls [root]",
		Short: "List persisted experiments",
		Long: `List persisted experiments under a directory tree.
Without an argument, the configured base output directory is scanned.
Series are listed as one entry; their trials are not listed separately.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := config.Load(globalOpts.ConfigPath)
			if err != nil {
				return err
			}

			opts := commands.LSOpts{
				Statuses: statuses,
				Tags:     tags,
				JSON:     jsonOutput,
			}
			if len(args) == 1 {
				opts.Root = args[0]
			}

			return commands.LS(global, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "filter by tag, explicit or comment-derived (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON (stable format)")

	return cmd
}
