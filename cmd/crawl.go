package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobcrawler/internal/server"
)

type crawlOptions struct {
	companyID string
	apiOnly   bool
}

// newCrawlCmd runs one crawl in-process and prints the result as JSON.
func newCrawlCmd(opts *globalOptions) *cobra.Command {
	local := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl <user-id>",
		Short: "Crawls a user's companies once",
		Long: `Crawls every active company of the user, API-backed companies first and
career pages second. With --company only that company is crawled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			return opts.withApp(cmd.Context(), func(app *server.App) error {
				if local.companyID != "" {
					result, err := app.Crawls().CrawlCompany(cmd.Context(), userID, local.companyID)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), result)
				}
				result, err := app.Crawls().CrawlAllCompanies(cmd.Context(), userID, local.apiOnly)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&local.companyID, "company", "", "crawl a single company by id")
	cmd.Flags().BoolVar(&local.apiOnly, "api-only", false, "skip companies that need a browser")
	return cmd
}
