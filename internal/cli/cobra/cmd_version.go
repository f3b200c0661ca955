package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plonerma/cordage/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print cordage version",
		Long:  "Print the cordage version string.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cordage %s\n", version.FullVersion())
		},
	}

	return cmd
}
