package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/clock/system"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// ErrLocked means another push crawler holds the host lock.
var ErrLocked = errors.New("another push crawler is running on this host")

// Lock takes the host-level lock at path without blocking. The returned func releases it.
func Lock(path string) (func() error, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}

// Crawler renders and extracts one company.
type Crawler interface {
	Crawl(ctx context.Context, company jobs.Company) ([]jobs.ParsedJob, error)
	Close() error
}

// Summary totals a push run.
type Summary struct {
	Companies int
	Submitted int
	Failed    int
	NewJobs   int
}

// Pusher crawls browser companies locally and submits the results.
type Pusher struct {
	client  *Client
	crawler Crawler
	clock   jobs.Clock
	pacing  time.Duration
	logger  *zap.Logger
}

// NewPusher builds a Pusher. clock and logger may be nil.
func NewPusher(client *Client, crawler Crawler, pacing time.Duration, clock jobs.Clock, logger *zap.Logger) *Pusher {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{client: client, crawler: crawler, clock: clock, pacing: pacing, logger: logger.Named("push")}
}

// Run crawls every browser company of userID. A company that fails to crawl or
// submit is logged and skipped; only failing to list companies aborts the run.
func (p *Pusher) Run(ctx context.Context, userID string) (Summary, error) {
	defer func() {
		if err := p.crawler.Close(); err != nil {
			p.logger.Warn("close crawler failed", zap.Error(err))
		}
	}()

	companies, err := p.client.ListBrowserCompanies(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Companies: len(companies)}
	p.logger.Info("push crawl started", zap.String("user_id", userID), zap.Int("companies", len(companies)))

	for i, company := range companies {
		if i > 0 && p.pacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.pacing):
			}
		}
		if ctx.Err() != nil {
			return sum, fmt.Errorf("push interrupted: %w", ctx.Err())
		}
		logger := p.logger.With(zap.String("company_id", company.ID), zap.String("company", company.Name))

		start := p.clock.Now()
		parsed, err := p.crawl(ctx, company)
		if err != nil {
			sum.Failed++
			logger.Warn("crawl failed, skipping", zap.Error(err))
			continue
		}
		res, err := p.client.SubmitResults(ctx, company.ID, parsed, p.clock.Now().Sub(start))
		if err != nil {
			sum.Failed++
			logger.Warn("submit failed, skipping", zap.Error(err))
			continue
		}
		sum.Submitted++
		sum.NewJobs += res.NewJobs
		logger.Info("company pushed", zap.Int("jobs_found", res.JobsFound), zap.Int("new_jobs", res.NewJobs))
	}
	p.logger.Info("push crawl finished",
		zap.Int("submitted", sum.Submitted),
		zap.Int("failed", sum.Failed),
		zap.Int("new_jobs", sum.NewJobs))
	return sum, nil
}

// crawl runs one local crawl, turning a panic into an error so the remaining
// companies are still pushed.
func (p *Pusher) crawl(ctx context.Context, company jobs.Company) (parsed []jobs.ParsedJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()
	return p.crawler.Crawl(ctx, company)
}
