package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStaticBrowserRender(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/careers":
			if r.UserAgent() != "jobcrawler-test" {
				http.Error(w, "unexpected user agent", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, careersHTML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := NewStaticLauncher(StaticConfig{UserAgent: "jobcrawler-test", Timeout: 5 * time.Second}).Launch(context.Background())
	require.NoError(t, err)
	defer b.Close()

	page, err := b.Render(context.Background(), srv.URL+"/careers")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/careers", page.URL)
	require.Contains(t, page.HTML, "Staff Engineer")

	// Revisiting the same page must work across crawl runs.
	_, err = b.Render(context.Background(), srv.URL+"/careers")
	require.NoError(t, err)

	_, err = b.Render(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func TestStaticBrowserHonoursCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	b, err := NewStaticLauncher(StaticConfig{}).Launch(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Render(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
