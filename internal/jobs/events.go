package jobs

import "time"

// NewJobsEvent is published after a merge inserted at least one listing.
type NewJobsEvent struct {
	UserID      string    `json:"user_id"`
	CompanyID   string    `json:"company_id"`
	CompanyName string    `json:"company_name"`
	NewJobs     int       `json:"new_jobs"`
	ListingIDs  []string  `json:"listing_ids"`
	OccurredAt  time.Time `json:"occurred_at"`
}
