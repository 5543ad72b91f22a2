// Package commands defines all Cobra CLI commands for the helpdesk binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/helpdesk-rag/internal/audit"
	"github.com/54b3r/helpdesk-rag/internal/config"
	"github.com/54b3r/helpdesk-rag/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "helpdesk",
		Short: "Helpdesk: a role-aware IT support assistant over your knowledge base",
		Long: `Helpdesk answers IT support questions from an ingested knowledge base of
guides, tables and screenshots. Every answer is grounded in retrieved
documents the caller is allowed to see; anything else is refused.

The chat model is selected via MODEL_PROVIDER or a YAML config file
(~/.helpdesk/config.yaml). See 'helpdesk --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.helpdesk/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewSessionsCmd(),
		NewVersionCmd(),
	)

	return root
}
