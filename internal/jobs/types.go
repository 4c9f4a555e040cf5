// Package jobs defines the domain model shared by the crawl pipeline: companies,
// job listings, crawl logs, match profiles and the listing status machine.
package jobs

import (
	"strings"
	"time"
)

// ATSType identifies the applicant tracking system a company publishes jobs through.
type ATSType string

const (
	// ATSGreenhouse is served by the Greenhouse boards API.
	ATSGreenhouse ATSType = "greenhouse"
	// ATSLever is served by the Lever postings API.
	ATSLever ATSType = "lever"
	// ATSAshby is served by the Ashby job board API.
	ATSAshby ATSType = "ashby"
	// ATSSmartRecruiters is served by the SmartRecruiters postings API.
	ATSSmartRecruiters ATSType = "smartrecruiters"
	// ATSWorkday career sites are rendered with the browser.
	ATSWorkday ATSType = "workday"
	// ATSCustom covers hand-built career pages.
	ATSCustom ATSType = "custom"
)

// Valid reports whether t is a known ATS type.
func (t ATSType) Valid() bool {
	switch t {
	case ATSGreenhouse, ATSLever, ATSAshby, ATSSmartRecruiters, ATSWorkday, ATSCustom:
		return true
	default:
		return false
	}
}

// Company is a tracked employer owned by a single user.
type Company struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Name            string  `json:"name"`
	CareerPageURL   string  `json:"career_page_url"`
	ATSType         ATSType `json:"ats_type"`
	Active          bool    `json:"active"`
	Headquarters    string  `json:"headquarters,omitempty"`
	FoundedYear     *int    `json:"founded_year,omitempty"`
	RevenueEstimate string  `json:"revenue_estimate,omitempty"`
	Stage           string  `json:"stage,omitempty"`
}

// ListingStatus is the user-owned lifecycle state of a listing.
type ListingStatus string

const (
	// StatusNew marks a listing nobody has looked at yet.
	StatusNew ListingStatus = "new"
	// StatusViewed marks a listing the user opened.
	StatusViewed ListingStatus = "viewed"
	// StatusApplied is terminal.
	StatusApplied ListingStatus = "applied"
	// StatusDismissed is terminal.
	StatusDismissed ListingStatus = "dismissed"
)

var transitions = map[ListingStatus][]ListingStatus{
	StatusNew:    {StatusViewed, StatusApplied, StatusDismissed},
	StatusViewed: {StatusApplied, StatusDismissed},
}

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusNew, StatusViewed, StatusApplied, StatusDismissed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s ListingStatus) Terminal() bool {
	return s == StatusApplied || s == StatusDismissed
}

// CanTransition reports whether a listing may move from one status to another.
// Writing the current status again is not a transition and returns false.
func CanTransition(from, to ListingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom lists the statuses a listing may be in to move to target, in a stable order.
func AllowedFrom(target ListingStatus) []ListingStatus {
	var out []ListingStatus
	for _, from := range []ListingStatus{StatusNew, StatusViewed, StatusApplied, StatusDismissed} {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

// JobListing is a persisted posting, unique per (CompanyID, ExternalID).
type JobListing struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	ExternalID  string        `json:"external_id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Location    string        `json:"location"`
	Remote      bool          `json:"remote"`
	Department  string        `json:"department"`
	Description string        `json:"description"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	FirstSeenAt time.Time     `json:"first_seen_at"`
	LastSeenAt  time.Time     `json:"last_seen_at"`
	Status      ListingStatus `json:"status"`
	MatchScore  *float64      `json:"match_score,omitempty"`
}

// ParsedJob is the vendor-agnostic record produced by a parser or the browser crawler.
type ParsedJob struct {
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Location    string     `json:"location"`
	Remote      bool       `json:"remote"`
	Department  string     `json:"department"`
	Description string     `json:"description"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

// CrawlStatus is the state of one crawl attempt.
type CrawlStatus string

const (
	// CrawlRunning is written when the attempt starts.
	CrawlRunning CrawlStatus = "running"
	// CrawlSuccess marks a finished attempt, including ones that found nothing.
	CrawlSuccess CrawlStatus = "success"
	// CrawlFailed marks an attempt that errored.
	CrawlFailed CrawlStatus = "failed"
)

// CrawlLog is one append-only record per company crawl attempt.
type CrawlLog struct {
	ID          string      `json:"id"`
	CompanyID   string      `json:"company_id"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Status      CrawlStatus `json:"status"`
	JobsFound   int         `json:"jobs_found"`
	NewJobs     int         `json:"new_jobs"`
	Error       *string     `json:"error,omitempty"`
}

// JobProfile holds a user's search preferences.
type JobProfile struct {
	UserID            string   `json:"user_id"`
	Keywords          []string `json:"keywords"`
	Titles            []string `json:"titles"`
	Locations         []string `json:"locations"`
	ExcludedLocations []string `json:"excluded_locations"`
	RemoteOnly        bool     `json:"remote_only"`
}

// CrawlResult summarises one company crawl.
type CrawlResult struct {
	CompanyID   string        `json:"company_id"`
	CompanyName string        `json:"company_name"`
	Success     bool          `json:"success"`
	JobsFound   int           `json:"jobs_found"`
	NewJobs     int           `json:"new_jobs"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// CrawlFailure is the human readable failure entry of a crawl-all run.
type CrawlFailure struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Error       string `json:"error"`
}

// CrawlAllResult aggregates a crawl-all run.
type CrawlAllResult struct {
	Results           []CrawlResult  `json:"results"`
	TotalJobsFound    int            `json:"total_jobs_found"`
	NewJobsFound      int            `json:"new_jobs_found"`
	SkippedCompanyIDs []string       `json:"skipped_company_ids"`
	Failures          []CrawlFailure `json:"failures"`
}

var remoteLexicon = []string{"remote", "work from home", "wfh", "anywhere", "distributed"}

// IsRemote reports whether a location string describes remote work.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	for _, phrase := range remoteLexicon {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
