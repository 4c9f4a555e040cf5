package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/metrics"
)

// CrawlCompany crawls one company owned by userID. Crawl failures are reported
// in the result and the CrawlLog; only store failures are returned as errors.
func (s *Service) CrawlCompany(ctx context.Context, userID, companyID string) (jobs.CrawlResult, error) {
	company, err := s.store.GetCompany(ctx, userID, companyID)
	if err != nil {
		return jobs.CrawlResult{}, fmt.Errorf("get company: %w", err)
	}
	if s.registry.IsAPI(company.ATSType) {
		return s.crawlOne(ctx, company, PhaseAPI)
	}

	s.browserMu.Lock()
	defer s.browserMu.Unlock()
	res, err := s.crawlOne(ctx, company, PhaseBrowser)
	s.closeBrowser()
	return res, err
}

// CrawlAllCompanies crawls every active company of userID. With apiOnly the
// browser phase is skipped and those companies are returned in SkippedCompanyIDs.
// A second call for the same user while one is running fails with
// jobs.ErrCrawlInProgress.
func (s *Service) CrawlAllCompanies(ctx context.Context, userID string, apiOnly bool) (jobs.CrawlAllResult, error) {
	if !s.tryLock(userID) {
		return jobs.CrawlAllResult{}, jobs.ErrCrawlInProgress
	}
	defer s.unlock(userID)

	companies, err := s.store.ListCompanies(ctx, userID, true)
	if err != nil {
		return jobs.CrawlAllResult{}, &jobs.StoreError{Op: "list companies", Err: err}
	}
	var apiCompanies, browserCompanies []jobs.Company
	for _, c := range companies {
		if s.registry.IsAPI(c.ATSType) {
			apiCompanies = append(apiCompanies, c)
		} else {
			browserCompanies = append(browserCompanies, c)
		}
	}

	logger := s.logger.With(zap.String("user_id", userID))
	logger.Info("crawl all started",
		zap.Int("api_companies", len(apiCompanies)),
		zap.Int("browser_companies", len(browserCompanies)),
		zap.Bool("api_only", apiOnly))

	out := jobs.CrawlAllResult{SkippedCompanyIDs: []string{}, Failures: []jobs.CrawlFailure{}}
	out.Results = append(out.Results, s.runAPIPhase(ctx, apiCompanies)...)

	switch {
	case len(browserCompanies) == 0:
	case apiOnly || s.browser == nil:
		if !apiOnly {
			logger.Warn("browser crawling disabled, skipping browser companies", zap.Int("count", len(browserCompanies)))
		}
		for _, c := range browserCompanies {
			out.SkippedCompanyIDs = append(out.SkippedCompanyIDs, c.ID)
		}
	default:
		s.setPhase(userID, PhaseBrowser)
		out.Results = append(out.Results, s.runBrowserPhase(ctx, browserCompanies)...)
	}

	for _, r := range out.Results {
		out.TotalJobsFound += r.JobsFound
		out.NewJobsFound += r.NewJobs
		if !r.Success {
			out.Failures = append(out.Failures, jobs.CrawlFailure{CompanyID: r.CompanyID, CompanyName: r.CompanyName, Error: r.Error})
		}
	}
	logger.Info("crawl all finished",
		zap.Int("crawled", len(out.Results)),
		zap.Int("jobs_found", out.TotalJobsFound),
		zap.Int("new_jobs", out.NewJobsFound),
		zap.Int("failures", len(out.Failures)),
		zap.Int("skipped", len(out.SkippedCompanyIDs)))

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("crawl all interrupted: %w", err)
	}
	return out, nil
}

func (s *Service) runAPIPhase(ctx context.Context, companies []jobs.Company) []jobs.CrawlResult {
	results := make([]jobs.CrawlResult, len(companies))
	scheduled := make([]bool, len(companies))
	var g errgroup.Group
	g.SetLimit(s.cfg.APIConcurrency)
	for i, c := range companies {
		if ctx.Err() != nil {
			break
		}
		scheduled[i] = true
		g.Go(func() error {
			results[i] = s.crawlIsolated(ctx, c, PhaseAPI)
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for i, r := range results {
		if scheduled[i] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) runBrowserPhase(ctx context.Context, companies []jobs.Company) []jobs.CrawlResult {
	s.browserMu.Lock()
	defer s.browserMu.Unlock()
	defer s.closeBrowser()

	var out []jobs.CrawlResult
	for i, c := range companies {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.PacingDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.crawlIsolated(ctx, c, PhaseBrowser))
	}
	return out
}

// crawlIsolated never fails: store errors are folded into the result.
func (s *Service) crawlIsolated(ctx context.Context, company jobs.Company, phase Phase) jobs.CrawlResult {
	res, err := s.crawlOne(ctx, company, phase)
	if err != nil {
		res.CompanyID = company.ID
		res.CompanyName = company.Name
		res.Success = false
		res.Error = err.Error()
	}
	return res
}

const tracerName = "github.com/JakeFAU/jobcrawler/internal/orchestrator"

// crawlOne runs fetch and merge for one company and records the attempt.
func (s *Service) crawlOne(ctx context.Context, company jobs.Company, phase Phase) (res jobs.CrawlResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.crawl_company", trace.WithAttributes(
		attribute.String("company.id", company.ID),
		attribute.String("company.ats", string(company.ATSType)),
		attribute.String("crawl.phase", string(phase)),
	))
	defer func() {
		span.SetAttributes(attribute.Int("crawl.jobs_found", res.JobsFound), attribute.Int("crawl.new_jobs", res.NewJobs))
		if res.Error != "" {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
	}()

	start := s.clock.Now()
	res = jobs.CrawlResult{CompanyID: company.ID, CompanyName: company.Name}
	logger := s.logger.With(
		zap.String("company_id", company.ID),
		zap.String("ats", string(company.ATSType)),
		zap.String("phase", string(phase)))

	log, err := s.startLog(ctx, company.ID, start)
	if err != nil {
		return res, err
	}

	parsed, fetchErr := s.fetch(ctx, company)
	if fetchErr != nil {
		res.Error = fetchErr.Error()
		res.Duration = s.clock.Now().Sub(start)
		logger.Warn("company crawl failed", zap.Error(fetchErr))
		metrics.ObserveCompanyCrawl(string(phase), string(jobs.CrawlFailed), string(company.ATSType), 0, 0, res.Duration)
		return res, s.finishLog(ctx, log, jobs.CrawlFailed, 0, 0, res.Error)
	}

	outcome, err := s.merge(ctx, company, parsed)
	if err != nil {
		res.Error = err.Error()
		res.Duration = s.clock.Now().Sub(start)
		logger.Error("merge failed", zap.Error(err))
		metrics.ObserveCompanyCrawl(string(phase), string(jobs.CrawlFailed), string(company.ATSType), 0, 0, res.Duration)
		if finishErr := s.finishLog(ctx, log, jobs.CrawlFailed, 0, 0, res.Error); finishErr != nil {
			logger.Error("finish crawl log failed", zap.Error(finishErr))
		}
		return res, err
	}

	res.Success = true
	res.JobsFound = outcome.JobsFound
	res.NewJobs = outcome.NewJobs
	res.Duration = s.clock.Now().Sub(start)
	metrics.ObserveCompanyCrawl(string(phase), string(jobs.CrawlSuccess), string(company.ATSType), res.JobsFound, res.NewJobs, res.Duration)
	logger.Info("company crawled",
		zap.Int("jobs_found", res.JobsFound),
		zap.Int("new_jobs", res.NewJobs),
		zap.Duration("duration", res.Duration))

	if err := s.finishLog(ctx, log, jobs.CrawlSuccess, res.JobsFound, res.NewJobs, ""); err != nil {
		return res, err
	}
	s.publishNewJobs(ctx, company, outcome)
	return res, nil
}

// fetch dispatches to the vendor parser or the browser. Panics are converted to errors
// so one misbehaving page cannot take down the batch.
func (s *Service) fetch(ctx context.Context, company jobs.Company) (parsed []jobs.ParsedJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()
	if parser, ok := s.registry.For(company.ATSType); ok {
		return parser.Parse(ctx, company.CareerPageURL)
	}
	if s.browser == nil {
		return nil, ErrBrowserUnavailable
	}
	return s.browser.Crawl(ctx, company)
}

func (s *Service) startLog(ctx context.Context, companyID string, start time.Time) (jobs.CrawlLog, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return jobs.CrawlLog{}, fmt.Errorf("generate crawl log id: %w", err)
	}
	log := jobs.CrawlLog{ID: id, CompanyID: companyID, StartedAt: start, Status: jobs.CrawlRunning}
	if err := s.store.CreateCrawlLog(ctx, log); err != nil {
		return jobs.CrawlLog{}, &jobs.StoreError{Op: "create crawl log", Err: err}
	}
	return log, nil
}

func (s *Service) finishLog(ctx context.Context, log jobs.CrawlLog, status jobs.CrawlStatus, found, inserted int, msg string) error {
	done := s.clock.Now()
	log.CompletedAt = &done
	log.Status = status
	log.JobsFound = found
	log.NewJobs = inserted
	if msg != "" {
		log.Error = &msg
	}
	// Recording the outcome must survive a canceled request context.
	if err := s.store.FinishCrawlLog(context.WithoutCancel(ctx), log); err != nil {
		return &jobs.StoreError{Op: "finish crawl log", Err: err}
	}
	return nil
}

func (s *Service) closeBrowser() {
	if s.browser == nil {
		return
	}
	if err := s.browser.Close(); err != nil {
		s.logger.Warn("close browser failed", zap.Error(err))
	}
}
