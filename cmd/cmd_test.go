package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/config"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/remote"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `logging:
  development: false
  level: error
headless:
  enabled: false
` + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommandPrintsResult(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out, err := execute(t, "crawl", "user-1", "--config", cfgPath, "--env-file", "", "--api-only")
	require.NoError(t, err)

	var result jobs.CrawlAllResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Zero(t, result.TotalJobsFound)
	require.Empty(t, result.Failures)
}

func TestCrawlCommandUnknownCompany(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, err := execute(t, "crawl", "user-1", "--company", "missing", "--config", cfgPath, "--env-file", "")
	require.Error(t, err)
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestCrawlCommandRequiresUser(t *testing.T) {
	_, err := execute(t, "crawl", "--env-file", "")
	require.Error(t, err)
}

func TestCleanupCommand(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out, err := execute(t, "cleanup", "--days", "7", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	require.Equal(t, "deleted 0 dismissed listings\n", out)

	_, err = execute(t, "cleanup", "--days", "-1", "--config", cfgPath, "--env-file", "")
	require.Error(t, err)
}

func TestBadConfigFails(t *testing.T) {
	cfgPath := writeConfig(t, "crawl:\n  api_concurrency: 0\n")

	_, err := execute(t, "cleanup", "--config", cfgPath, "--env-file", "")
	require.ErrorContains(t, err, "crawl.api_concurrency")
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JOBCRAWLER_TEST_ONLY_VALUE=from-file\n"), 0o600))
	t.Setenv("JOBCRAWLER_TEST_ONLY_VALUE", "")
	require.NoError(t, os.Unsetenv("JOBCRAWLER_TEST_ONLY_VALUE"))
	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "from-file", os.Getenv("JOBCRAWLER_TEST_ONLY_VALUE"))
}

type stubCrawler struct {
	crawled []string
	closed  bool
}

func (s *stubCrawler) Crawl(_ context.Context, company jobs.Company) ([]jobs.ParsedJob, error) {
	s.crawled = append(s.crawled, company.ID)
	return []jobs.ParsedJob{{ExternalID: "1", Title: "Engineer"}}, nil
}

func (s *stubCrawler) Close() error {
	s.closed = true
	return nil
}

func TestPushCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users/user-7/companies", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"companies": []jobs.Company{
			{ID: "c1", Name: "Acme"},
			{ID: "c2", Name: "Globex"},
		}})
	})
	mux.HandleFunc("POST /v1/companies/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jobs.CrawlResult{CompanyID: r.PathValue("id"), Success: true, JobsFound: 1, NewJobs: 1})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	stub := &stubCrawler{}
	prev := newPushCrawler
	newPushCrawler = func(config.Config, *zap.Logger) remote.Crawler { return stub }
	t.Cleanup(func() { newPushCrawler = prev })

	lock := filepath.Join(t.TempDir(), "push.lock")
	cfgPath := writeConfig(t, "crawl:\n  pacing_delay: 0s\nremote:\n  api_base_url: "+srv.URL+"\n  lock_file: "+lock+"\n")

	out, err := execute(t, "push", "--user", "user-7", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	require.Equal(t, "companies=2 submitted=2 failed=0 new_jobs=2\n", out)
	require.Equal(t, []string{"c1", "c2"}, stub.crawled)
	require.True(t, stub.closed)
}

func TestPushCommandSkipsWhenLocked(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "push.lock")
	unlock, err := remote.Lock(lock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unlock() })

	cfgPath := writeConfig(t, "remote:\n  lock_file: "+lock+"\n")
	out, err := execute(t, "push", "--user", "user-7", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	require.False(t, strings.Contains(out, "companies="))
}

func TestPushCommandRequiresUser(t *testing.T) {
	cfgPath := writeConfig(t, "")
	_, err := execute(t, "push", "--config", cfgPath, "--env-file", "")
	require.ErrorContains(t, err, "user id is required")
}
