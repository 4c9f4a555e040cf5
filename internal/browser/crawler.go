package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/extract"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// CrawlerOptions wires optional collaborators into a Crawler.
type CrawlerOptions struct {
	// Snapshots receives the rendered HTML of pages that yielded no jobs. Nil disables snapshots.
	Snapshots      jobs.BlobStore
	SnapshotPrefix string
	Clock          jobs.Clock
	Logger         *zap.Logger
}

// Crawler renders a company's career page and extracts its postings.
type Crawler struct {
	manager   *Manager
	extractor *extract.Extractor
	snapshots jobs.BlobStore
	prefix    string
	clock     jobs.Clock
	logger    *zap.Logger
}

// NewCrawler builds a Crawler sharing the Manager's browser across calls.
func NewCrawler(manager *Manager, extractor *extract.Extractor, opts CrawlerOptions) *Crawler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = extract.New(nil)
	}
	return &Crawler{
		manager:   manager,
		extractor: extractor,
		snapshots: opts.Snapshots,
		prefix:    strings.Trim(opts.SnapshotPrefix, "/"),
		clock:     opts.Clock,
		logger:    logger.Named("browser_crawler"),
	}
}

// Crawl renders company.CareerPageURL and extracts jobs. Finding no jobs is not
// an error. Render failures are returned as *jobs.NavigationError.
func (c *Crawler) Crawl(ctx context.Context, company jobs.Company) ([]jobs.ParsedJob, error) {
	b, err := c.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.manager.Release()

	page, err := b.Render(ctx, company.CareerPageURL)
	if err != nil {
		if errors.Is(err, ErrBrowserClosed) {
			c.manager.Invalidate()
		}
		return nil, &jobs.NavigationError{URL: company.CareerPageURL, Err: err}
	}
	pageURL := page.URL
	if pageURL == "" {
		pageURL = company.CareerPageURL
	}

	found, method, err := c.extractor.Extract(pageURL, page.HTML)
	if err != nil {
		return nil, fmt.Errorf("extract jobs: %w", err)
	}
	logger := c.logger.With(
		zap.String("company_id", company.ID),
		zap.String("url", pageURL),
		zap.String("method", string(method)),
		zap.Int("load_more_clicks", page.LoadMoreClicks),
	)
	if len(found) == 0 {
		logger.Info("no jobs extracted")
		c.snapshot(ctx, company, page)
		return nil, nil
	}
	logger.Debug("jobs extracted", zap.Int("jobs", len(found)))
	return found, nil
}

// Close releases the browser at the end of a run.
func (c *Crawler) Close() error {
	return c.manager.Close()
}

func (c *Crawler) snapshot(ctx context.Context, company jobs.Company, page Page) {
	if c.snapshots == nil || page.HTML == "" {
		return
	}
	stamp := "latest"
	if c.clock != nil {
		stamp = c.clock.Now().UTC().Format("20060102T150405Z")
	}
	path := fmt.Sprintf("%s/%s.html", company.ID, stamp)
	if c.prefix != "" {
		path = c.prefix + "/" + path
	}
	uri, err := c.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", strings.NewReader(page.HTML))
	if err != nil {
		c.logger.Warn("snapshot failed", zap.String("company_id", company.ID), zap.Error(err))
		return
	}
	c.logger.Info("snapshot stored", zap.String("company_id", company.ID), zap.String("uri", uri))
}
