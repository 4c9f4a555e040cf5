// Package metrics exposes Prometheus collectors for the job crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	companyCrawlsTotal         *prometheus.CounterVec
	companyCrawlDuration       *prometheus.HistogramVec
	jobsFoundTotal             *prometheus.CounterVec
	jobsNewTotal               *prometheus.CounterVec
	vendorRequestDuration      *prometheus.HistogramVec
	browserRecyclesTotal       prometheus.Counter
	browserLaunchesTotal       prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	listingsDeletedTotal       prometheus.Counter

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		companyCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_company_crawls_total",
				Help: "Company crawl attempts, labeled by phase and status.",
			},
			[]string{"phase", "status"},
		)

		companyCrawlDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_company_crawl_duration_seconds",
				Help:    "Duration of one company crawl, labeled by phase.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"phase"},
		)

		jobsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_jobs_found_total",
				Help: "Jobs seen by crawls, labeled by ATS type.",
			},
			[]string{"ats"},
		)

		jobsNewTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_jobs_new_total",
				Help: "Listings inserted by crawls, labeled by ATS type.",
			},
			[]string{"ats"},
		)

		vendorRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_vendor_request_duration_seconds",
				Help:    "Latency of vendor API requests, labeled by vendor and outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"vendor", "outcome"},
		)

		browserRecyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_browser_recycles_total",
				Help: "Times the headless browser was closed to bound memory.",
			},
		)

		browserLaunchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_browser_launches_total",
				Help: "Times a headless browser process was started.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		listingsDeletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_retention_deleted_listings_total",
				Help: "Dismissed listings removed by retention cleanup.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveCompanyCrawl records the outcome of one company crawl.
func ObserveCompanyCrawl(phase, status, ats string, found, inserted int, duration time.Duration) {
	Init()
	companyCrawlsTotal.WithLabelValues(phase, status).Inc()
	companyCrawlDuration.WithLabelValues(phase).Observe(duration.Seconds())
	if found > 0 {
		jobsFoundTotal.WithLabelValues(ats).Add(float64(found))
	}
	if inserted > 0 {
		jobsNewTotal.WithLabelValues(ats).Add(float64(inserted))
	}
}

// ObserveVendorRequest records a vendor API call.
func ObserveVendorRequest(vendor, outcome string, duration time.Duration) {
	Init()
	vendorRequestDuration.WithLabelValues(vendor, outcome).Observe(duration.Seconds())
}

// ObserveBrowserLaunch counts a browser start.
func ObserveBrowserLaunch() {
	Init()
	browserLaunchesTotal.Inc()
}

// ObserveBrowserRecycle counts a memory-bounding browser close.
func ObserveBrowserRecycle() {
	Init()
	browserRecyclesTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRetentionDeleted counts listings removed by cleanup.
func ObserveRetentionDeleted(n int64) {
	Init()
	if n > 0 {
		listingsDeletedTotal.Add(float64(n))
	}
}
