package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and the retention job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			app, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			// Run closes the app on shutdown.
			return app.Run(cmd.Context())
		},
	}
}
