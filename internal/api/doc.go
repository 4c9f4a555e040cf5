// Package api hosts the HTTP server, middleware, and REST handlers over the
// crawl pipeline. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/users/{userID}/... for crawls, crawl logs, rescoring and listing status.
//   - POST /v1/companies/{companyID}/results for out-of-process crawlers.
package api
