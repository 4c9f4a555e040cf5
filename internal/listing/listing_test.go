package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.PutCompany(jobs.Company{ID: "c1", UserID: "u1", Name: "Acme", Active: true})
	store.PutCompany(jobs.Company{ID: "c2", UserID: "u2", Name: "Other", Active: true})
	for _, l := range []jobs.JobListing{
		{ID: "new", CompanyID: "c1", ExternalID: "1", Status: jobs.StatusNew, LastSeenAt: now},
		{ID: "viewed", CompanyID: "c1", ExternalID: "2", Status: jobs.StatusViewed, LastSeenAt: now},
		{ID: "applied", CompanyID: "c1", ExternalID: "3", Status: jobs.StatusApplied, LastSeenAt: now},
		{ID: "foreign", CompanyID: "c2", ExternalID: "1", Status: jobs.StatusNew, LastSeenAt: now},
		{ID: "old-dismissed", CompanyID: "c1", ExternalID: "4", Status: jobs.StatusDismissed, LastSeenAt: now.AddDate(0, 0, -45)},
		{ID: "recent-dismissed", CompanyID: "c1", ExternalID: "5", Status: jobs.StatusDismissed, LastSeenAt: now.AddDate(0, 0, -5)},
	} {
		_, _, err := store.UpsertListing(context.Background(), l)
		require.NoError(t, err)
	}
	return store
}

func statusOf(t *testing.T, store *memory.Store, user, id string) jobs.ListingStatus {
	t.Helper()
	got, err := store.GetListingsForUser(context.Background(), user, []string{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0].Status
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	store := seed(t)
	svc := New(store, fixedClock{now}, zap.NewNop())

	res, err := svc.UpdateStatus(context.Background(), "u1",
		[]string{"new", "viewed", "applied", "foreign", "missing", "new"}, jobs.StatusDismissed)
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, []string{"applied", "foreign", "missing"}, res.Skipped)

	require.Equal(t, jobs.StatusDismissed, statusOf(t, store, "u1", "new"))
	require.Equal(t, jobs.StatusDismissed, statusOf(t, store, "u1", "viewed"))
	require.Equal(t, jobs.StatusApplied, statusOf(t, store, "u1", "applied"))
	require.Equal(t, jobs.StatusNew, statusOf(t, store, "u2", "foreign"))
}

func TestUpdateStatusNeverLeavesTerminal(t *testing.T) {
	t.Parallel()

	store := seed(t)
	svc := New(store, fixedClock{now}, nil)

	for _, target := range []jobs.ListingStatus{jobs.StatusNew, jobs.StatusViewed, jobs.StatusDismissed} {
		res, err := svc.UpdateStatus(context.Background(), "u1", []string{"applied"}, target)
		require.NoError(t, err)
		require.Zero(t, res.Updated)
		require.Equal(t, []string{"applied"}, res.Skipped)
	}
	require.Equal(t, jobs.StatusApplied, statusOf(t, store, "u1", "applied"))
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	t.Parallel()

	svc := New(seed(t), fixedClock{now}, nil)
	res, err := svc.UpdateStatus(context.Background(), "u1", []string{"viewed"}, jobs.StatusViewed)
	require.NoError(t, err)
	require.Zero(t, res.Updated)
	require.Equal(t, []string{"viewed"}, res.Skipped)
}

func TestUpdateStatusInvalid(t *testing.T) {
	t.Parallel()

	svc := New(seed(t), fixedClock{now}, nil)
	_, err := svc.UpdateStatus(context.Background(), "u1", []string{"new"}, "archived")
	require.ErrorIs(t, err, jobs.ErrInvalidStatus)

	res, err := svc.UpdateStatus(context.Background(), "u1", nil, jobs.StatusViewed)
	require.NoError(t, err)
	require.Zero(t, res.Updated)
	require.Empty(t, res.Skipped)
}

func TestCleanupDismissed(t *testing.T) {
	t.Parallel()

	store := seed(t)
	svc := New(store, fixedClock{now}, nil)

	n, err := svc.CleanupDismissed(context.Background(), 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	left, err := store.ListListingsForUser(context.Background(), "u1")
	require.NoError(t, err)
	ids := make([]string, 0, len(left))
	for _, l := range left {
		ids = append(ids, l.ID)
	}
	require.NotContains(t, ids, "old-dismissed")
	require.Contains(t, ids, "recent-dismissed")

	n, err = svc.CleanupDismissed(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

type failingStore struct {
	jobs.ListingStore
}

func (failingStore) DeleteDismissedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestCleanupDismissedStoreError(t *testing.T) {
	t.Parallel()

	svc := New(failingStore{}, fixedClock{now}, nil)
	_, err := svc.CleanupDismissed(context.Background(), time.Hour)
	var storeErr *jobs.StoreError
	require.ErrorAs(t, err, &storeErr)
}

func TestRunRetentionStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := seed(t)
	svc := New(store, fixedClock{now}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunRetention(ctx, 5*time.Millisecond, 24*time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		left, _ := store.ListListingsForUser(context.Background(), "u1")
		return len(left) == 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
