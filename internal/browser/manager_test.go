package browser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	mu     sync.Mutex
	pages  map[string]Page
	err    error
	closed int
	calls  []string
}

func (b *fakeBrowser) Render(_ context.Context, url string) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, url)
	if b.err != nil {
		return Page{}, b.err
	}
	page, ok := b.pages[url]
	if !ok {
		return Page{URL: url, HTML: "<html><body></body></html>"}, nil
	}
	return page, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	newFn    func() *fakeBrowser
	err      error
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{}
	if l.newFn != nil {
		b = l.newFn()
	}
	l.launched = append(l.launched, b)
	return b, nil
}

func TestManagerLaunchesLazily(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	m := NewManager(launcher, 5, nil)
	require.Empty(t, launcher.launched)
	require.NoError(t, m.Close())

	b1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	b2, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.Same(t, b1, b2)
	require.Len(t, launcher.launched, 1)
}

func TestManagerRecyclesEveryN(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	m := NewManager(launcher, 5, nil)
	for i := 0; i < 12; i++ {
		_, err := m.Acquire(context.Background())
		require.NoError(t, err)
		m.Release()
	}
	require.NoError(t, m.Close())

	require.Equal(t, Stats{Launches: 3, Recycles: 2}, m.Stats())
	require.Len(t, launcher.launched, 3)
	for _, b := range launcher.launched {
		require.Equal(t, 1, b.closed)
	}
}

func TestManagerInvalidateRelaunches(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	m := NewManager(launcher, 0, nil)
	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Invalidate()
	m.Release()
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)

	require.Equal(t, Stats{Launches: 2}, m.Stats())
	require.Equal(t, 1, launcher.launched[0].closed)
}

func TestManagerLaunchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no chrome")
	m := NewManager(&fakeLauncher{err: boom}, 5, nil)
	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, Stats{}, m.Stats())
}
