// Package postgres provides the Postgres-backed jobs.Store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

//go:embed schema.sql
var schemaSQL string

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements jobs.Store on Postgres.
type Store struct {
	pool pool
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewWithPool wraps an existing pool (primarily for testing).
func NewWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const companyColumns = `id, user_id, name, career_page_url, ats_type, active,
	headquarters, founded_year, revenue_estimate, stage`

// GetCompany returns the company when userID owns it.
func (s *Store) GetCompany(ctx context.Context, userID, companyID string) (jobs.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1 AND user_id = $2`,
		companyID, userID)
	c, err := scanCompany(row)
	if err != nil {
		return jobs.Company{}, notFound(err, "failed to get company")
	}
	return c, nil
}

// GetCompanyByID returns the company regardless of owner.
func (s *Store) GetCompanyByID(ctx context.Context, companyID string) (jobs.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, companyID)
	c, err := scanCompany(row)
	if err != nil {
		return jobs.Company{}, notFound(err, "failed to get company")
	}
	return c, nil
}

// ListCompanies returns the user's companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context, userID string, activeOnly bool) ([]jobs.Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		WHERE user_id = $1 AND (NOT $2 OR active)
		ORDER BY name, id`, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()
	var out []jobs.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return out, nil
}

// UpsertListing inserts the listing or refreshes the mutable columns of the
// existing (company_id, external_id) row. status, first_seen_at and match_score
// are only ever written on insert.
func (s *Store) UpsertListing(ctx context.Context, l jobs.JobListing) (string, bool, error) {
	if l.ID == "" {
		return "", false, fmt.Errorf("listing id is required")
	}
	status := l.Status
	if status == "" {
		status = jobs.StatusNew
	}
	var (
		id       string
		inserted bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO job_listings (
			id, company_id, external_id, title, url, location, remote, department,
			description, posted_at, first_seen_at, last_seen_at, status, match_score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (company_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			location = EXCLUDED.location,
			remote = EXCLUDED.remote,
			department = EXCLUDED.department,
			description = EXCLUDED.description,
			posted_at = EXCLUDED.posted_at,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, (xmax = 0) AS inserted`,
		l.ID, l.CompanyID, l.ExternalID, l.Title, l.URL, l.Location, l.Remote, l.Department,
		l.Description, l.PostedAt, l.FirstSeenAt, l.LastSeenAt, string(status), l.MatchScore,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert listing: %w", err)
	}
	return id, inserted, nil
}

const listingColumns = `l.id, l.company_id, l.external_id, l.title, l.url, l.location, l.remote,
	l.department, l.description, l.posted_at, l.first_seen_at, l.last_seen_at, l.status, l.match_score`

// ListListingsForUser returns every listing of the user's companies.
func (s *Store) ListListingsForUser(ctx context.Context, userID string) ([]jobs.JobListing, error) {
	return s.queryListings(ctx, `
		SELECT `+listingColumns+`
		FROM job_listings l
		JOIN companies c ON c.id = l.company_id
		WHERE c.user_id = $1
		ORDER BY l.first_seen_at, l.id`, userID)
}

// GetListingsForUser returns the subset of ids owned by userID.
func (s *Store) GetListingsForUser(ctx context.Context, userID string, ids []string) ([]jobs.JobListing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryListings(ctx, `
		SELECT `+listingColumns+`
		FROM job_listings l
		JOIN companies c ON c.id = l.company_id
		WHERE c.user_id = $1 AND l.id = ANY($2)
		ORDER BY l.first_seen_at, l.id`, userID, ids)
}

func (s *Store) queryListings(ctx context.Context, query string, args ...any) ([]jobs.JobListing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()
	var out []jobs.JobListing
	for rows.Next() {
		var (
			l      jobs.JobListing
			status string
		)
		if err := rows.Scan(
			&l.ID, &l.CompanyID, &l.ExternalID, &l.Title, &l.URL, &l.Location, &l.Remote,
			&l.Department, &l.Description, &l.PostedAt, &l.FirstSeenAt, &l.LastSeenAt, &status, &l.MatchScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.Status = jobs.ListingStatus(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	return out, nil
}

// UpdateMatchScore sets or clears a listing's score.
func (s *Store) UpdateMatchScore(ctx context.Context, listingID string, score *float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE job_listings SET match_score = $2 WHERE id = $1`, listingID, score)
	if err != nil {
		return fmt.Errorf("failed to update match score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", listingID, jobs.ErrNotFound)
	}
	return nil
}

// SetListingStatus moves listings currently in one of from to status.
func (s *Store) SetListingStatus(ctx context.Context, ids []string, from []jobs.ListingStatus, status jobs.ListingStatus) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	fromText := make([]string, len(from))
	for i, f := range from {
		fromText[i] = string(f)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE job_listings SET status = $1
		WHERE id = ANY($2) AND status = ANY($3)`, string(status), ids, fromText)
	if err != nil {
		return 0, fmt.Errorf("failed to update listing status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteDismissedBefore removes dismissed listings last seen before cutoff.
func (s *Store) DeleteDismissedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM job_listings
		WHERE status = 'dismissed' AND last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete dismissed listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateCrawlLog inserts a crawl log row.
func (s *Store) CreateCrawlLog(ctx context.Context, log jobs.CrawlLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_logs (id, company_id, started_at, completed_at, status, jobs_found, new_jobs, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		log.ID, log.CompanyID, log.StartedAt, log.CompletedAt, string(log.Status), log.JobsFound, log.NewJobs, log.Error)
	if err != nil {
		return fmt.Errorf("failed to create crawl log: %w", err)
	}
	return nil
}

// FinishCrawlLog writes the final state of a crawl log.
func (s *Store) FinishCrawlLog(ctx context.Context, log jobs.CrawlLog) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crawl_logs
		SET completed_at = $2, status = $3, jobs_found = $4, new_jobs = $5, error = $6
		WHERE id = $1`,
		log.ID, log.CompletedAt, string(log.Status), log.JobsFound, log.NewJobs, log.Error)
	if err != nil {
		return fmt.Errorf("failed to finish crawl log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crawl log %s: %w", log.ID, jobs.ErrNotFound)
	}
	return nil
}

// ListCrawlLogs returns the user's logs newest first.
func (s *Store) ListCrawlLogs(ctx context.Context, userID, companyID string, limit int) ([]jobs.CrawlLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.company_id, l.started_at, l.completed_at, l.status, l.jobs_found, l.new_jobs, l.error
		FROM crawl_logs l
		JOIN companies c ON c.id = l.company_id
		WHERE c.user_id = $1 AND ($2 = '' OR l.company_id = $2)
		ORDER BY l.started_at DESC, l.id DESC
		LIMIT $3`, userID, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl logs: %w", err)
	}
	defer rows.Close()
	var out []jobs.CrawlLog
	for rows.Next() {
		var (
			log    jobs.CrawlLog
			status string
		)
		if err := rows.Scan(&log.ID, &log.CompanyID, &log.StartedAt, &log.CompletedAt, &status,
			&log.JobsFound, &log.NewJobs, &log.Error); err != nil {
			return nil, fmt.Errorf("failed to scan crawl log: %w", err)
		}
		log.Status = jobs.CrawlStatus(status)
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list crawl logs: %w", err)
	}
	return out, nil
}

// GetProfile returns the user's profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (jobs.JobProfile, error) {
	p := jobs.JobProfile{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT keywords, titles, locations, excluded_locations, remote_only
		FROM job_profiles WHERE user_id = $1`, userID,
	).Scan(&p.Keywords, &p.Titles, &p.Locations, &p.ExcludedLocations, &p.RemoteOnly)
	if err != nil {
		return jobs.JobProfile{}, notFound(err, "failed to get profile")
	}
	return p, nil
}

func scanCompany(row pgx.Row) (jobs.Company, error) {
	var (
		c   jobs.Company
		ats string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CareerPageURL, &ats, &c.Active,
		&c.Headquarters, &c.FoundedYear, &c.RevenueEstimate, &c.Stage); err != nil {
		return jobs.Company{}, err
	}
	c.ATSType = jobs.ATSType(ats)
	return c, nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, jobs.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var _ jobs.Store = (*Store)(nil)
