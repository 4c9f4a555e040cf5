// Package orchestrator runs crawls across a user's companies and merges the
// results into the listing store.
//
// A crawl-all runs in two phases. Companies whose ATS has a vendor API are
// crawled concurrently with bounded parallelism. The remaining companies are
// rendered one at a time through the shared browser, with a pacing delay
// between them. A failure for one company is recorded in its CrawlLog and never
// aborts the batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/ats"
	"github.com/JakeFAU/jobcrawler/internal/clock/system"
	"github.com/JakeFAU/jobcrawler/internal/id/uuid"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// Phase is the stage a user's crawl-all run is in.
type Phase string

const (
	// PhaseIdle means no crawl-all is running.
	PhaseIdle Phase = "idle"
	// PhaseAPI means vendor API companies are being crawled.
	PhaseAPI Phase = "api"
	// PhaseBrowser means browser-only companies are being crawled.
	PhaseBrowser Phase = "browser"
)

// Defaults applied by New.
const (
	DefaultAPIConcurrency = 4
	DefaultPacingDelay    = 2 * time.Second
	DefaultNewJobsTopic   = "new-jobs"
	DefaultLogLimit       = 50
	MaxLogLimit           = 500
)

// ErrBrowserUnavailable is returned for browser-only companies when no browser crawler is configured.
var ErrBrowserUnavailable = errors.New("browser crawling is disabled")

// BrowserCrawler renders and extracts a company's career page.
type BrowserCrawler interface {
	Crawl(ctx context.Context, company jobs.Company) ([]jobs.ParsedJob, error)
	// Close ends the browser session at the end of a run.
	Close() error
}

// Config tunes scheduling.
type Config struct {
	APIConcurrency int
	PacingDelay    time.Duration
	NewJobsTopic   string
}

// Deps are the collaborators of a Service. Store and Registry are required.
type Deps struct {
	Store     jobs.Store
	Registry  *ats.Registry
	Browser   BrowserCrawler
	Publisher jobs.Publisher
	Clock     jobs.Clock
	IDs       jobs.IDGenerator
	Logger    *zap.Logger
}

// Service exposes the crawl operations.
type Service struct {
	store     jobs.Store
	registry  *ats.Registry
	browser   BrowserCrawler
	publisher jobs.Publisher
	clock     jobs.Clock
	ids       jobs.IDGenerator
	cfg       Config
	logger    *zap.Logger

	// sleep is swapped in tests to avoid real pacing delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	running map[string]Phase

	// browserMu serialises every use of the shared browser.
	browserMu sync.Mutex
}

// New validates deps and fills defaults.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("ats registry is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.APIConcurrency <= 0 {
		cfg.APIConcurrency = DefaultAPIConcurrency
	}
	if cfg.PacingDelay < 0 {
		cfg.PacingDelay = 0
	}
	if cfg.NewJobsTopic == "" {
		cfg.NewJobsTopic = DefaultNewJobsTopic
	}
	return &Service{
		store:     deps.Store,
		registry:  deps.Registry,
		browser:   deps.Browser,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		ids:       deps.IDs,
		cfg:       cfg,
		logger:    deps.Logger.Named("orchestrator"),
		sleep:     sleepCtx,
		running:   make(map[string]Phase),
	}, nil
}

// Phase reports the current phase of userID's crawl-all run.
func (s *Service) Phase(userID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.running[userID]; ok {
		return p
	}
	return PhaseIdle
}

func (s *Service) tryLock(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[userID]; busy {
		return false
	}
	s.running[userID] = PhaseAPI
	return true
}

func (s *Service) setPhase(userID string, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[userID] = p
}

func (s *Service) unlock(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, userID)
}

// ListCompanies returns the user's companies. browserOnly keeps those without a vendor parser.
func (s *Service) ListCompanies(ctx context.Context, userID string, activeOnly, browserOnly bool) ([]jobs.Company, error) {
	companies, err := s.store.ListCompanies(ctx, userID, activeOnly)
	if err != nil {
		return nil, &jobs.StoreError{Op: "list companies", Err: err}
	}
	if !browserOnly {
		return companies, nil
	}
	out := make([]jobs.Company, 0, len(companies))
	for _, c := range companies {
		if !s.registry.IsAPI(c.ATSType) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetCrawlLogs returns crawl history newest first. A nil companyID covers all
// the user's companies. limit <= 0 uses DefaultLogLimit and is capped at MaxLogLimit.
func (s *Service) GetCrawlLogs(ctx context.Context, userID string, companyID *string, limit int) ([]jobs.CrawlLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}
	cid := ""
	if companyID != nil && *companyID != "" {
		if _, err := s.store.GetCompany(ctx, userID, *companyID); err != nil {
			return nil, fmt.Errorf("get company: %w", err)
		}
		cid = *companyID
	}
	logs, err := s.store.ListCrawlLogs(ctx, userID, cid, limit)
	if err != nil {
		return nil, &jobs.StoreError{Op: "list crawl logs", Err: err}
	}
	return logs, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
