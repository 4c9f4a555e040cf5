// Package browser owns the page renderers used for career pages that have no
// vendor API: a chromedp-driven headless Chrome and a colly-based static
// fetcher for hosts without Chrome. A Manager shares one renderer across
// companies and recycles it after a fixed number of crawls.
package browser

import (
	"context"
	"errors"
)

// ErrBrowserClosed is returned by Render once the underlying browser process is gone.
var ErrBrowserClosed = errors.New("browser closed")

// Page is the rendered result of one navigation.
type Page struct {
	// URL is the final location after redirects.
	URL            string
	HTML           string
	LoadMoreClicks int
}

// Browser renders pages. Implementations must be safe to Close more than once.
type Browser interface {
	Render(ctx context.Context, url string) (Page, error)
	Close() error
}

// Launcher starts a new Browser.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}
