// Package main is the jobcrawler executable.
//
// Subcommands:
//   - serve: HTTP API on server.port plus the daily retention job.
//   - crawl <user-id>: one in-process crawl, printed as JSON.
//   - push: crawls career pages on this machine and submits them to remote.api_base_url.
//     A file lock keeps scheduled runs from overlapping.
//   - cleanup: deletes dismissed listings older than retention.days.
//
// Configuration comes from --config and JOBCRAWLER_* environment variables,
// e.g. JOBCRAWLER_DB_DSN. An empty DSN runs against the in-memory store.
package main

import "github.com/JakeFAU/jobcrawler/cmd"

func main() {
	cmd.Execute()
}
