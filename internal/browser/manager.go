package browser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/metrics"
)

// DefaultRecycleAfter is the number of completed crawls served by one browser instance.
const DefaultRecycleAfter = 5

// Stats counts browser lifecycle events.
type Stats struct {
	Launches int
	Recycles int
}

// Manager lazily launches a Browser, hands it out for one company at a time and
// closes it after every RecycleAfter completed crawls. The next Acquire launches
// a fresh instance.
type Manager struct {
	mu           sync.Mutex
	launcher     Launcher
	recycleAfter int
	logger       *zap.Logger

	current   Browser
	completed int
	stats     Stats
}

// NewManager builds a Manager. recycleAfter <= 0 uses DefaultRecycleAfter.
func NewManager(launcher Launcher, recycleAfter int, logger *zap.Logger) *Manager {
	if recycleAfter <= 0 {
		recycleAfter = DefaultRecycleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		launcher:     launcher,
		recycleAfter: recycleAfter,
		logger:       logger.Named("browser"),
	}
}

// Acquire returns the live browser, launching one if needed.
func (m *Manager) Acquire(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return m.current, nil
	}
	b, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	m.current = b
	m.completed = 0
	m.stats.Launches++
	metrics.ObserveBrowserLaunch()
	m.logger.Debug("browser launched", zap.Int("launches", m.stats.Launches))
	return b, nil
}

// Release marks one company crawl as finished and recycles the browser when due.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.completed++
	if m.completed < m.recycleAfter {
		return
	}
	m.closeLocked()
	m.stats.Recycles++
	metrics.ObserveBrowserRecycle()
	m.logger.Debug("browser recycled", zap.Int("after", m.recycleAfter))
}

// Invalidate drops the current browser without counting a recycle, e.g. after it crashed.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// Close shuts the browser down. A later Acquire launches a new one.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

// Stats returns a copy of the lifecycle counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) closeLocked() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	m.completed = 0
	if err != nil {
		m.logger.Warn("browser close failed", zap.Error(err))
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
