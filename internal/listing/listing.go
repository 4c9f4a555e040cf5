// Package listing implements user-driven listing maintenance: batch status
// changes and retention cleanup of dismissed listings.
package listing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/clock/system"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/metrics"
)

// DefaultRetention is how long dismissed listings are kept after they were last seen.
const DefaultRetention = 30 * 24 * time.Hour

// UpdateResult reports a batch status change.
type UpdateResult struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped"`
}

// Service applies status changes and cleanup.
type Service struct {
	store  jobs.ListingStore
	clock  jobs.Clock
	logger *zap.Logger
}

// New returns a Service. clock and logger may be nil.
func New(store jobs.ListingStore, clock jobs.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clock: clock, logger: logger.Named("listing")}
}

// UpdateStatus moves the listings in ids owned by userID to status. Ids the user
// does not own, unknown ids, and listings whose transition is not allowed are
// returned in Skipped.
func (s *Service) UpdateStatus(ctx context.Context, userID string, ids []string, status jobs.ListingStatus) (UpdateResult, error) {
	if !status.Valid() {
		return UpdateResult{}, fmt.Errorf("%w: %q", jobs.ErrInvalidStatus, status)
	}
	res := UpdateResult{Skipped: []string{}}
	if len(ids) == 0 {
		return res, nil
	}
	owned, err := s.store.GetListingsForUser(ctx, userID, ids)
	if err != nil {
		return res, &jobs.StoreError{Op: "get listings", Err: err}
	}

	current := make(map[string]jobs.ListingStatus, len(owned))
	for _, l := range owned {
		current[l.ID] = l.Status
	}
	var movable []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		from, ok := current[id]
		if !ok || !jobs.CanTransition(from, status) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		movable = append(movable, id)
	}
	if len(movable) == 0 {
		return res, nil
	}

	n, err := s.store.SetListingStatus(ctx, movable, jobs.AllowedFrom(status), status)
	if err != nil {
		return res, &jobs.StoreError{Op: "set listing status", Err: err}
	}
	res.Updated = int(n)
	s.logger.Info("listing status updated",
		zap.String("user_id", userID),
		zap.String("status", string(status)),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// CleanupDismissed deletes dismissed listings last seen more than retention ago.
// A non-positive retention uses DefaultRetention.
func (s *Service) CleanupDismissed(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := s.clock.Now().Add(-retention)
	n, err := s.store.DeleteDismissedBefore(ctx, cutoff)
	if err != nil {
		return 0, &jobs.StoreError{Op: "delete dismissed listings", Err: err}
	}
	metrics.ObserveRetentionDeleted(n)
	s.logger.Info("dismissed listings cleaned up",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", n))
	return n, nil
}

// RunRetention calls CleanupDismissed every interval until ctx is done.
// Failures are logged and the loop keeps going.
func (s *Service) RunRetention(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupDismissed(ctx, retention); err != nil {
				s.logger.Error("retention cleanup failed", zap.Error(err))
			}
		}
	}
}
