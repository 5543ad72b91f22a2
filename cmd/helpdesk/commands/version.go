package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/version"
)

// NewVersionCmd constructs the `helpdesk version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the helpdesk version, git commit, and build date",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "helpdesk "+version.String())
		},
	}
}
