package cli

import (
	"context"

	"kimbiofarm-backend/internal/config"

	"github.com/spf13/cobra"
)

// Execute runs the command line against cfg. Without a subcommand the HTTP server starts.
func Execute(ctx context.Context, cfg *config.Config) error {
	return newRootCmd(cfg).ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	serve := newServeCmd(cfg)

	root := &cobra.Command{
		Use:           "kimbiofarm",
		Short:         "Plant nursery inventory service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newImportCmd(cfg), newExportCmd(cfg), newReconcileCmd())
	return root
}
