package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/mcpserver"
	"github.com/matiasleandrokruk/cropdoctor/internal/version"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the diagnose_crop tool over MCP on stdin/stdout",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing one tool,
diagnose_crop. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background()) //nolint:errcheck

			server := mcpserver.New(a.service, i18n.Default(), log, version.Version)
			return mcpserver.Run(cmd.Context(), server)
		},
	}
}
