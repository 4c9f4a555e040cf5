package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobcrawler/internal/server"
)

func newCleanupCmd(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Deletes dismissed listings older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 0 {
				return fmt.Errorf("--days must be >= 0")
			}
			return opts.withApp(cmd.Context(), func(app *server.App) error {
				retention := app.Config().RetentionWindow()
				if days > 0 {
					retention = time.Duration(days) * 24 * time.Hour
				}
				deleted, err := app.Listings().CleanupDismissed(cmd.Context(), retention)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d dismissed listings\n", deleted)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "override retention.days")
	return cmd
}
