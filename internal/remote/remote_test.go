package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

type fakeAPI struct {
	mu        sync.Mutex
	companies []jobs.Company
	submitted map[string]submitRequest
	failFor   string
	apiKey    string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users/{userID}/companies", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != f.apiKey {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if r.URL.Query().Get("browser_only") != "true" || r.URL.Query().Get("active") != "true" {
			http.Error(w, `{"error":"expected browser_only and active"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"companies": f.companies})
	})
	mux.HandleFunc("POST /v1/companies/{companyID}/results", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("companyID")
		if id == f.failFor {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"company not found"}`))
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submitted[id] = req
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(jobs.CrawlResult{CompanyID: id, Success: true, JobsFound: len(req.Jobs), NewJobs: len(req.Jobs)})
	})
	return mux
}

type fakeCrawler struct {
	results map[string][]jobs.ParsedJob
	errs    map[string]error
	panics  map[string]bool
	closed  bool
}

func (c *fakeCrawler) Crawl(_ context.Context, company jobs.Company) ([]jobs.ParsedJob, error) {
	if c.panics[company.ID] {
		panic("renderer crashed")
	}
	if err := c.errs[company.ID]; err != nil {
		return nil, err
	}
	return c.results[company.ID], nil
}

func (c *fakeCrawler) Close() error {
	c.closed = true
	return nil
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(750 * time.Millisecond)
	return c.now
}

func TestNewClientValidates(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "::not a url"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{apiKey: "secret", submitted: map[string]submitRequest{}, failFor: "gone"}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "wrong"})
	require.NoError(t, err)
	_, err = client.ListBrowserCompanies(context.Background(), "u1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "unauthorized", apiErr.Message)

	_, err = client.SubmitResults(context.Background(), "gone", nil, time.Second)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestPusherRun(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		apiKey: "secret",
		companies: []jobs.Company{
			{ID: "w1", Name: "Workday Co", ATSType: jobs.ATSWorkday},
			{ID: "w2", Name: "Broken Co", ATSType: jobs.ATSCustom},
			{ID: "gone", Name: "Deleted Co", ATSType: jobs.ATSCustom},
			{ID: "w3", Name: "Empty Co", ATSType: jobs.ATSCustom},
		},
		submitted: map[string]submitRequest{},
		failFor:   "gone",
	}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: 2 * time.Second})
	require.NoError(t, err)
	crawler := &fakeCrawler{
		results: map[string][]jobs.ParsedJob{
			"w1": {{ExternalID: "1", Title: "Engineer"}, {ExternalID: "2", Title: "Analyst"}},
		},
		errs: map[string]error{"w2": &jobs.NavigationError{URL: "https://broken", Err: errors.New("timeout")}},
	}
	pusher := NewPusher(client, crawler, 0, &stepClock{now: time.Unix(0, 0)}, zap.NewNop())

	sum, err := pusher.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, Summary{Companies: 4, Submitted: 2, Failed: 2, NewJobs: 2}, sum)
	require.True(t, crawler.closed)

	require.Len(t, api.submitted["w1"].Jobs, 2)
	require.EqualValues(t, 750, api.submitted["w1"].DurationMs)
	require.NotNil(t, api.submitted["w3"].Jobs, "empty crawls are still reported")
	require.Empty(t, api.submitted["w3"].Jobs)
}

func TestPusherListFailureAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	crawler := &fakeCrawler{}
	_, err = NewPusher(client, crawler, 0, nil, nil).Run(context.Background(), "u1")
	require.Error(t, err)
	require.True(t, crawler.closed)
}

func TestPusherRunSurvivesCrawlPanic(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		apiKey: "secret",
		companies: []jobs.Company{
			{ID: "p1", Name: "Panicky Co", ATSType: jobs.ATSCustom},
			{ID: "w1", Name: "Workday Co", ATSType: jobs.ATSWorkday},
		},
		submitted: map[string]submitRequest{},
	}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	crawler := &fakeCrawler{
		results: map[string][]jobs.ParsedJob{"w1": {{ExternalID: "1", Title: "Engineer"}}},
		panics:  map[string]bool{"p1": true},
	}

	sum, err := NewPusher(client, crawler, 0, nil, zap.NewNop()).Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, Summary{Companies: 2, Submitted: 1, Failed: 1, NewJobs: 1}, sum)
	require.True(t, crawler.closed)
	require.NotContains(t, api.submitted, "p1")
	require.Len(t, api.submitted["w1"].Jobs, 1)
}

func TestLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "push.lock")
	unlock, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())
	unlock, err = Lock(path)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
