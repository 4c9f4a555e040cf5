package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig controls the colly-backed renderer.
type StaticConfig struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// StaticLauncher hands out static renderers for hosts without Chrome. Pages
// are fetched over plain HTTP with no JavaScript, so load-more is never attempted.
type StaticLauncher struct {
	cfg StaticConfig
}

// NewStaticLauncher returns a Launcher backed by colly.
func NewStaticLauncher(cfg StaticConfig) *StaticLauncher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &StaticLauncher{cfg: cfg}
}

// Launch builds a collector sharing one connection pool for its lifetime.
func (l *StaticLauncher) Launch(context.Context) (Browser, error) {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &staticBrowser{cfg: l.cfg, base: c}, nil
}

type staticBrowser struct {
	cfg  StaticConfig
	base *colly.Collector
}

func (b *staticBrowser) Render(ctx context.Context, url string) (Page, error) {
	collector := b.base.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = !b.cfg.RespectRobots
	if b.cfg.UserAgent != "" {
		collector.UserAgent = b.cfg.UserAgent
	}
	collector.SetRequestTimeout(b.cfg.Timeout)

	var (
		page     Page
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		page = Page{URL: r.Request.URL.String(), HTML: string(r.Body)}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return Page{}, err
	}
	return page, nil
}

func (b *staticBrowser) Close() error { return nil }

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
