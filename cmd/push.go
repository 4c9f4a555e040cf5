package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/config"
	"github.com/JakeFAU/jobcrawler/internal/remote"
	"github.com/JakeFAU/jobcrawler/internal/server"
)

// newPushCrawler builds the local browser crawler. Tests replace it.
var newPushCrawler = func(cfg config.Config, logger *zap.Logger) remote.Crawler {
	return server.NewBrowserCrawler(cfg, nil, logger)
}

// newPushCmd crawls browser-only companies on this machine and submits the
// results to a remote API.
func newPushCmd(opts *globalOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Crawls career pages locally and pushes results to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if userID == "" {
				userID = cfg.Remote.UserID
			}
			if userID == "" {
				return errors.New("user id is required (--user or remote.user_id)")
			}

			unlock, err := remote.Lock(cfg.Remote.LockFile)
			if errors.Is(err, remote.ErrLocked) {
				logger.Info("another push is running, exiting", zap.String("lock_file", cfg.Remote.LockFile))
				return nil
			}
			if err != nil {
				return err
			}
			defer func() {
				if uerr := unlock(); uerr != nil {
					logger.Warn("release lock failed", zap.Error(uerr))
				}
			}()

			client, err := remote.NewClient(remote.Config{
				BaseURL:   cfg.Remote.APIBaseURL,
				APIKey:    cfg.Remote.APIKey,
				UserAgent: cfg.HTTP.UserAgent,
				Timeout:   cfg.Remote.Timeout,
			})
			if err != nil {
				return err
			}
			crawler := newPushCrawler(cfg, logger.Named("browser"))
			pusher := remote.NewPusher(client, crawler, cfg.Crawl.PacingDelay, nil, logger)
			summary, err := pusher.Run(cmd.Context(), userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "companies=%d submitted=%d failed=%d new_jobs=%d\n",
				summary.Companies, summary.Submitted, summary.Failed, summary.NewJobs)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id whose companies are crawled")
	return cmd
}
