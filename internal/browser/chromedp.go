package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeConfig controls headless Chrome rendering.
type ChromeConfig struct {
	// ExecPath overrides Chrome discovery when set.
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	// NetworkIdle is the quiet period with no in-flight requests that counts as idle.
	NetworkIdle time.Duration
	// NetworkIdleMax bounds each idle wait; idle is best effort.
	NetworkIdleMax   time.Duration
	LoadMoreAttempts int
	LoadMoreTimeout  time.Duration
}

func (c ChromeConfig) withDefaults() ChromeConfig {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.NetworkIdle <= 0 {
		c.NetworkIdle = 500 * time.Millisecond
	}
	if c.NetworkIdleMax <= 0 {
		c.NetworkIdleMax = 5 * time.Second
	}
	if c.LoadMoreAttempts < 0 {
		c.LoadMoreAttempts = 0
	}
	if c.LoadMoreTimeout <= 0 {
		c.LoadMoreTimeout = 3 * time.Second
	}
	return c
}

// ChromedpLauncher starts headless Chrome processes.
type ChromedpLauncher struct {
	cfg ChromeConfig
}

// NewChromedpLauncher returns a Launcher backed by chromedp.
func NewChromedpLauncher(cfg ChromeConfig) *ChromedpLauncher {
	return &ChromedpLauncher{cfg: cfg.withDefaults()}
}

// Launch starts a browser process and opens its initial target.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch canceled: %w", err)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &chromeBrowser{
		cfg:         l.cfg,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		tabs:        chromedpTabs{},
	}, nil
}

// tabDriver is the slice of chromedp used by Render.
type tabDriver interface {
	NewTab(parent context.Context) (context.Context, context.CancelFunc)
	Listen(tabCtx context.Context, fn func(ev any))
	Run(ctx context.Context, actions ...chromedp.Action) error
}

type chromedpTabs struct{}

func (chromedpTabs) NewTab(parent context.Context) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(parent)
}

func (chromedpTabs) Listen(tabCtx context.Context, fn func(ev any)) {
	chromedp.ListenTarget(tabCtx, fn)
}

func (chromedpTabs) Run(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

type chromeBrowser struct {
	cfg         ChromeConfig
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	tabs        tabDriver
	closeOnce   sync.Once
}

// Render opens a tab, navigates, waits for the network to settle, clicks any
// "load more" control and returns the rendered DOM. The tab is closed on return.
func (b *chromeBrowser) Render(ctx context.Context, url string) (Page, error) {
	if b.ctx.Err() != nil {
		return Page{}, ErrBrowserClosed
	}
	tabCtx, closeTab := b.tabs.NewTab(b.ctx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	idle := newIdleTracker()
	b.tabs.Listen(tabCtx, idle.handle)

	// chromedp binds the tab's event loop to the context of its first Run,
	// so the tab is opened on tabCtx and only later steps get deadlines.
	if err := b.tabs.Run(tabCtx); err != nil {
		return Page{}, b.renderErr(ctx, "open tab", err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
	err := b.tabs.Run(navCtx,
		b.setupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		idle.wait(b.cfg.NetworkIdle, b.cfg.NetworkIdleMax),
	)
	cancelNav()
	if err != nil {
		return Page{}, b.renderErr(ctx, "navigate", err)
	}

	clicks := b.loadMore(tabCtx, idle)

	var page Page
	page.LoadMoreClicks = clicks
	captureCtx, cancelCapture := context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
	defer cancelCapture()
	if err := b.tabs.Run(captureCtx,
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	); err != nil {
		return Page{}, b.renderErr(ctx, "capture html", err)
	}
	return page, nil
}

const loadMoreScript = `(() => {
  const re = /^\s*(load|show|view|see)\s+more\b/i;
  const candidates = document.querySelectorAll('button, a, [role="button"]');
  for (const el of candidates) {
    const text = (el.innerText || el.textContent || '').trim();
    if (!re.test(text) || el.disabled) continue;
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') continue;
    el.click();
    return true;
  }
  return false;
})()`

// loadMore clicks expansion controls up to LoadMoreAttempts times. Each attempt
// has its own timeout and any failure simply ends the loop.
func (b *chromeBrowser) loadMore(tabCtx context.Context, idle *idleTracker) int {
	clicks := 0
	for i := 0; i < b.cfg.LoadMoreAttempts; i++ {
		attemptCtx, cancel := context.WithTimeout(tabCtx, b.cfg.LoadMoreTimeout)
		var clicked bool
		err := b.tabs.Run(attemptCtx, chromedp.Evaluate(loadMoreScript, &clicked))
		if err != nil || !clicked {
			cancel()
			break
		}
		clicks++
		_ = b.tabs.Run(attemptCtx, idle.wait(b.cfg.NetworkIdle, b.cfg.LoadMoreTimeout))
		cancel()
	}
	return clicks
}

func (b *chromeBrowser) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (b *chromeBrowser) renderErr(callerCtx context.Context, step string, err error) error {
	switch {
	case b.ctx.Err() != nil:
		return fmt.Errorf("%s: %w", step, ErrBrowserClosed)
	case callerCtx.Err() != nil:
		return fmt.Errorf("%s: %w", step, callerCtx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: timed out after %s: %w", step, b.cfg.NavigationTimeout, err)
	default:
		return fmt.Errorf("%s: %w", step, err)
	}
}

// Close terminates the browser process.
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		b.allocCancel()
	})
	return nil
}

// idleTracker counts in-flight network requests for one tab.
type idleTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastSeen time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[network.RequestID]struct{}),
		lastSeen: time.Now(),
	}
}

func (t *idleTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.lastSeen = time.Now()
}

func (t *idleTracker) idleFor(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inflight) > 0 {
		return 0
	}
	return now.Sub(t.lastSeen)
}

// wait blocks until no request has been in flight for quiet, or max elapses.
// Reaching max is not an error.
func (t *idleTracker) wait(quiet, maxWait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(maxWait)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			now := time.Now()
			if t.idleFor(now) >= quiet || now.After(deadline) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}
