// Package memory provides in-memory implementations of the persistence
// interfaces for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

type listingKey struct {
	companyID  string
	externalID string
}

// Store implements jobs.Store in memory.
type Store struct {
	mu        sync.RWMutex
	seq       int
	companies map[string]jobs.Company
	listings  map[string]jobs.JobListing
	byKey     map[listingKey]string
	logs      []jobs.CrawlLog
	profiles  map[string]jobs.JobProfile
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		companies: make(map[string]jobs.Company),
		listings:  make(map[string]jobs.JobListing),
		byKey:     make(map[listingKey]string),
		profiles:  make(map[string]jobs.JobProfile),
	}
}

// PutCompany inserts or replaces a company.
func (s *Store) PutCompany(c jobs.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

// PutProfile inserts or replaces a user's profile.
func (s *Store) PutProfile(p jobs.JobProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = cloneProfile(p)
}

// GetCompany returns the company when userID owns it.
func (s *Store) GetCompany(_ context.Context, userID, companyID string) (jobs.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok || c.UserID != userID {
		return jobs.Company{}, fmt.Errorf("company %s: %w", companyID, jobs.ErrNotFound)
	}
	return c, nil
}

// GetCompanyByID returns the company regardless of owner.
func (s *Store) GetCompanyByID(_ context.Context, companyID string) (jobs.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return jobs.Company{}, fmt.Errorf("company %s: %w", companyID, jobs.ErrNotFound)
	}
	return c, nil
}

// ListCompanies returns the user's companies ordered by name.
func (s *Store) ListCompanies(_ context.Context, userID string, activeOnly bool) ([]jobs.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.Company
	for _, c := range s.companies {
		if c.UserID != userID || (activeOnly && !c.Active) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertListing inserts a new listing or refreshes an existing one in place.
func (s *Store) UpsertListing(_ context.Context, l jobs.JobListing) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey{companyID: l.CompanyID, externalID: l.ExternalID}
	if id, ok := s.byKey[key]; ok {
		cur := s.listings[id]
		cur.Title = l.Title
		cur.URL = l.URL
		cur.Location = l.Location
		cur.Remote = l.Remote
		cur.Department = l.Department
		cur.Description = l.Description
		cur.PostedAt = l.PostedAt
		cur.LastSeenAt = l.LastSeenAt
		s.listings[id] = cur
		return id, false, nil
	}
	if l.ID == "" {
		s.seq++
		l.ID = fmt.Sprintf("listing-%d", s.seq)
	}
	if l.Status == "" {
		l.Status = jobs.StatusNew
	}
	s.listings[l.ID] = l
	s.byKey[key] = l.ID
	return l.ID, true, nil
}

// ListListingsForUser returns every listing of the user's companies, oldest first.
func (s *Store) ListListingsForUser(_ context.Context, userID string) ([]jobs.JobListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.JobListing
	for _, l := range s.listings {
		if s.ownedLocked(userID, l) {
			out = append(out, l)
		}
	}
	sortListings(out)
	return out, nil
}

// GetListingsForUser returns the subset of ids owned by userID.
func (s *Store) GetListingsForUser(_ context.Context, userID string, ids []string) ([]jobs.JobListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.JobListing
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		l, ok := s.listings[id]
		if !ok || seen[id] || !s.ownedLocked(userID, l) {
			continue
		}
		seen[id] = true
		out = append(out, l)
	}
	sortListings(out)
	return out, nil
}

// UpdateMatchScore sets or clears a listing's score.
func (s *Store) UpdateMatchScore(_ context.Context, listingID string, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return fmt.Errorf("listing %s: %w", listingID, jobs.ErrNotFound)
	}
	if score != nil {
		v := *score
		score = &v
	}
	l.MatchScore = score
	s.listings[listingID] = l
	return nil
}

// SetListingStatus moves listings currently in one of from to status.
func (s *Store) SetListingStatus(_ context.Context, ids []string, from []jobs.ListingStatus, status jobs.ListingStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := make(map[jobs.ListingStatus]bool, len(from))
	for _, f := range from {
		allowed[f] = true
	}
	var n int64
	for _, id := range ids {
		l, ok := s.listings[id]
		if !ok || !allowed[l.Status] {
			continue
		}
		l.Status = status
		s.listings[id] = l
		n++
	}
	return n, nil
}

// DeleteDismissedBefore removes dismissed listings last seen before cutoff.
func (s *Store) DeleteDismissedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, l := range s.listings {
		if l.Status != jobs.StatusDismissed || !l.LastSeenAt.Before(cutoff) {
			continue
		}
		delete(s.listings, id)
		delete(s.byKey, listingKey{companyID: l.CompanyID, externalID: l.ExternalID})
		n++
	}
	return n, nil
}

// CreateCrawlLog appends a crawl log.
func (s *Store) CreateCrawlLog(_ context.Context, log jobs.CrawlLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.logs {
		if existing.ID == log.ID {
			return fmt.Errorf("crawl log %s already exists", log.ID)
		}
	}
	s.logs = append(s.logs, log)
	return nil
}

// FinishCrawlLog replaces the stored log with the final state.
func (s *Store) FinishCrawlLog(_ context.Context, log jobs.CrawlLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if s.logs[i].ID == log.ID {
			s.logs[i] = log
			return nil
		}
	}
	return fmt.Errorf("crawl log %s: %w", log.ID, jobs.ErrNotFound)
}

// ListCrawlLogs returns the user's logs newest first.
func (s *Store) ListCrawlLogs(_ context.Context, userID, companyID string, limit int) ([]jobs.CrawlLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.CrawlLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		log := s.logs[i]
		c, ok := s.companies[log.CompanyID]
		if !ok || c.UserID != userID || (companyID != "" && log.CompanyID != companyID) {
			continue
		}
		out = append(out, log)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetProfile returns the user's profile.
func (s *Store) GetProfile(_ context.Context, userID string) (jobs.JobProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return jobs.JobProfile{}, fmt.Errorf("profile for %s: %w", userID, jobs.ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (s *Store) ownedLocked(userID string, l jobs.JobListing) bool {
	c, ok := s.companies[l.CompanyID]
	return ok && c.UserID == userID
}

func sortListings(in []jobs.JobListing) {
	sort.Slice(in, func(i, j int) bool {
		if !in[i].FirstSeenAt.Equal(in[j].FirstSeenAt) {
			return in[i].FirstSeenAt.Before(in[j].FirstSeenAt)
		}
		return in[i].ID < in[j].ID
	})
}

func cloneProfile(p jobs.JobProfile) jobs.JobProfile {
	p.Keywords = append([]string(nil), p.Keywords...)
	p.Titles = append([]string(nil), p.Titles...)
	p.Locations = append([]string(nil), p.Locations...)
	p.ExcludedLocations = append([]string(nil), p.ExcludedLocations...)
	return p
}

var _ jobs.Store = (*Store)(nil)
