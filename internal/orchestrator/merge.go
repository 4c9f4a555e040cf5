package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/match"
)

type mergeOutcome struct {
	JobsFound  int
	NewJobs    int
	ListingIDs []string
	// Invalid counts rows without an external id or title; Duplicates counts
	// repeated external ids after the first. Neither is part of JobsFound.
	Invalid    int
	Duplicates int
}

// merge upserts parsed jobs for company. New rows start as StatusNew with a
// match score; existing rows only get content fields and LastSeenAt refreshed.
func (s *Service) merge(ctx context.Context, company jobs.Company, parsed []jobs.ParsedJob) (mergeOutcome, error) {
	profile, hasProfile, err := s.profile(ctx, company.UserID)
	if err != nil {
		return mergeOutcome{}, err
	}

	var out mergeOutcome
	seen := make(map[string]bool, len(parsed))
	now := s.clock.Now()
	for _, p := range parsed {
		if p.ExternalID == "" || p.Title == "" {
			out.Invalid++
			continue
		}
		if seen[p.ExternalID] {
			out.Duplicates++
			continue
		}
		seen[p.ExternalID] = true
		out.JobsFound++

		id, err := s.ids.NewID()
		if err != nil {
			return out, fmt.Errorf("generate listing id: %w", err)
		}
		listing := jobs.JobListing{
			ID:          id,
			CompanyID:   company.ID,
			ExternalID:  p.ExternalID,
			Title:       p.Title,
			URL:         p.URL,
			Location:    p.Location,
			Remote:      p.Remote,
			Department:  p.Department,
			Description: p.Description,
			PostedAt:    p.PostedAt,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Status:      jobs.StatusNew,
		}
		if hasProfile {
			score := match.Score(listing, profile)
			listing.MatchScore = &score
		}
		rowID, inserted, err := s.store.UpsertListing(ctx, listing)
		if err != nil {
			return out, &jobs.StoreError{Op: "upsert listing", Err: err}
		}
		if inserted {
			out.NewJobs++
			out.ListingIDs = append(out.ListingIDs, rowID)
		}
	}
	if out.Invalid > 0 || out.Duplicates > 0 {
		s.logger.Debug("dropped parsed jobs",
			zap.String("company_id", company.ID),
			zap.Int("parsed", len(parsed)),
			zap.Int("invalid", out.Invalid),
			zap.Int("duplicates", out.Duplicates))
	}
	return out, nil
}

func (s *Service) profile(ctx context.Context, userID string) (jobs.JobProfile, bool, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return jobs.JobProfile{}, false, nil
	case err != nil:
		return jobs.JobProfile{}, false, &jobs.StoreError{Op: "get profile", Err: err}
	}
	return profile, true, nil
}

func (s *Service) publishNewJobs(ctx context.Context, company jobs.Company, outcome mergeOutcome) {
	if s.publisher == nil || outcome.NewJobs == 0 {
		return
	}
	event := jobs.NewJobsEvent{
		UserID:      company.UserID,
		CompanyID:   company.ID,
		CompanyName: company.Name,
		NewJobs:     outcome.NewJobs,
		ListingIDs:  outcome.ListingIDs,
		OccurredAt:  s.clock.Now(),
	}
	msgID, err := s.publisher.Publish(ctx, s.cfg.NewJobsTopic, event)
	if err != nil {
		s.logger.Warn("publish new jobs event failed",
			zap.String("company_id", company.ID),
			zap.Error(err))
		return
	}
	s.logger.Debug("new jobs event published",
		zap.String("company_id", company.ID),
		zap.String("message_id", msgID))
}

// SubmitCrawlResults merges jobs produced by a remote crawler for companyID.
// The crawl log is backdated by duration.
func (s *Service) SubmitCrawlResults(ctx context.Context, companyID string, parsed []jobs.ParsedJob, duration time.Duration) (jobs.CrawlResult, error) {
	company, err := s.store.GetCompanyByID(ctx, companyID)
	if err != nil {
		return jobs.CrawlResult{}, fmt.Errorf("get company: %w", err)
	}
	if duration < 0 {
		duration = 0
	}
	now := s.clock.Now()
	res := jobs.CrawlResult{CompanyID: company.ID, CompanyName: company.Name, Duration: duration}

	log, err := s.startLog(ctx, company.ID, now.Add(-duration))
	if err != nil {
		return res, err
	}
	outcome, err := s.merge(ctx, company, parsed)
	if err != nil {
		res.Error = err.Error()
		if finishErr := s.finishLog(ctx, log, jobs.CrawlFailed, 0, 0, res.Error); finishErr != nil {
			s.logger.Error("finish crawl log failed", zap.Error(finishErr))
		}
		return res, err
	}
	res.Success = true
	res.JobsFound = outcome.JobsFound
	res.NewJobs = outcome.NewJobs
	if err := s.finishLog(ctx, log, jobs.CrawlSuccess, res.JobsFound, res.NewJobs, ""); err != nil {
		return res, err
	}
	s.logger.Info("remote crawl results merged",
		zap.String("company_id", company.ID),
		zap.Int("jobs_found", res.JobsFound),
		zap.Int("new_jobs", res.NewJobs))
	s.publishNewJobs(ctx, company, outcome)
	return res, nil
}

// RecalculateMatchScores rescores every listing of userID against the current
// profile and returns how many scores changed.
func (s *Service) RecalculateMatchScores(ctx context.Context, userID string) (int, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	listings, err := s.store.ListListingsForUser(ctx, userID)
	if err != nil {
		return 0, &jobs.StoreError{Op: "list listings", Err: err}
	}
	updated := 0
	for _, l := range listings {
		score := match.Score(l, profile)
		if l.MatchScore != nil && *l.MatchScore == score {
			continue
		}
		if err := s.store.UpdateMatchScore(ctx, l.ID, &score); err != nil {
			return updated, &jobs.StoreError{Op: "update match score", Err: err}
		}
		updated++
	}
	s.logger.Info("match scores recalculated",
		zap.String("user_id", userID),
		zap.Int("listings", len(listings)),
		zap.Int("updated", updated))
	return updated, nil
}

// ScoreListing explains the score of one listing against userID's profile.
func (s *Service) ScoreListing(ctx context.Context, userID, listingID string) (match.Result, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return match.Result{}, fmt.Errorf("get profile: %w", err)
	}
	found, err := s.store.GetListingsForUser(ctx, userID, []string{listingID})
	if err != nil {
		return match.Result{}, &jobs.StoreError{Op: "get listing", Err: err}
	}
	if len(found) == 0 {
		return match.Result{}, fmt.Errorf("listing %s: %w", listingID, jobs.ErrNotFound)
	}
	return match.CalculateWithBreakdown(found[0], profile), nil
}
