package jobs

import (
	"context"
	"io"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator issues unique identifiers for new rows.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces stable digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// CompanyStore reads companies. Company CRUD lives outside this service.
type CompanyStore interface {
	// GetCompany returns the company only if it is owned by userID.
	GetCompany(ctx context.Context, userID, companyID string) (Company, error)
	GetCompanyByID(ctx context.Context, companyID string) (Company, error)
	ListCompanies(ctx context.Context, userID string, activeOnly bool) ([]Company, error)
}

// ListingStore persists job listings.
type ListingStore interface {
	// UpsertListing inserts the listing or, when (CompanyID, ExternalID) already exists,
	// refreshes its mutable fields and LastSeenAt. Status, FirstSeenAt and MatchScore of
	// an existing row are never modified. It returns the row id and whether it was inserted.
	UpsertListing(ctx context.Context, listing JobListing) (string, bool, error)
	ListListingsForUser(ctx context.Context, userID string) ([]JobListing, error)
	GetListingsForUser(ctx context.Context, userID string, ids []string) ([]JobListing, error)
	UpdateMatchScore(ctx context.Context, listingID string, score *float64) error
	// SetListingStatus moves the given listings to status, touching only rows whose current
	// status is one of from. It returns the number of rows changed.
	SetListingStatus(ctx context.Context, ids []string, from []ListingStatus, status ListingStatus) (int64, error)
	DeleteDismissedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CrawlLogStore records crawl attempts.
type CrawlLogStore interface {
	CreateCrawlLog(ctx context.Context, log CrawlLog) error
	FinishCrawlLog(ctx context.Context, log CrawlLog) error
	// ListCrawlLogs returns newest first. An empty companyID lists every company of the user.
	ListCrawlLogs(ctx context.Context, userID, companyID string, limit int) ([]CrawlLog, error)
}

// ProfileStore reads match profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (JobProfile, error)
}

// Store is the full persistence surface used by the crawl pipeline.
type Store interface {
	CompanyStore
	ListingStore
	CrawlLogStore
	ProfileStore
}

// BlobStore keeps raw page snapshots and returns a URI for each object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes events such as NewJobsEvent to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
