package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	path   string
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func countingOpener() (Opener, *int) {
	calls := 0
	return func(ctx context.Context, path string) (any, error) {
		calls++
		return &fakeConn{path: path}, nil
	}, &calls
}

func alwaysHealthy(ctx context.Context, conn any) error { return nil }

func TestPool_GetConnectionOpensOnceThenReusesHealthyHandle(t *testing.T) {
	open, calls := countingOpener()
	p := New(DefaultConfig(), open, alwaysHealthy, nil)
	defer p.Dispose()

	_, err := p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)
	_, err = p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
}

func TestPool_SizeNeverExceedsMaxInstances(t *testing.T) {
	open, _ := countingOpener()
	cfg := DefaultConfig()
	cfg.MaxInstances = 2
	p := New(cfg, open, alwaysHealthy, nil)
	defer p.Dispose()

	for _, path := range []string{"/a", "/b", "/c", "/d"} {
		_, err := p.GetConnection(context.Background(), path)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.Stats().Size, cfg.MaxInstances)
	}
	assert.Equal(t, cfg.MaxInstances, p.Stats().Size)
}

func TestPool_DisposeClosesHandlesAndZeroesSize(t *testing.T) {
	open, _ := countingOpener()
	p := New(DefaultConfig(), open, alwaysHealthy, nil)

	_, err := p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)
	require.Equal(t, 1, p.Stats().Size)

	p.Dispose()

	assert.Zero(t, p.Stats().Size)
}

func TestPool_DisposeIsIdempotent(t *testing.T) {
	open, _ := countingOpener()
	p := New(DefaultConfig(), open, alwaysHealthy, nil)
	_, err := p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.Dispose()
		p.Dispose()
	})
}

func TestPool_BorrowReleaseTracksLeaks(t *testing.T) {
	open, _ := countingOpener()
	cfg := DefaultConfig()
	cfg.LeakDetectionThreshold = 10 * time.Millisecond
	p := New(cfg, open, alwaysHealthy, nil)
	defer p.Dispose()

	_, err := p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)
	p.Borrow("/tmp/a")

	time.Sleep(20 * time.Millisecond)
	stats := p.Stats()
	assert.Equal(t, 1, stats.BorrowedCount)
	assert.Equal(t, 1, stats.PotentialLeaks)

	p.Release("/tmp/a")
	stats = p.Stats()
	assert.Zero(t, stats.BorrowedCount)
}

func TestPool_GetConnectionReopensAfterOpenError(t *testing.T) {
	calls := 0
	open := func(ctx context.Context, path string) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return &fakeConn{path: path}, nil
	}
	p := New(DefaultConfig(), open, alwaysHealthy, nil)
	defer p.Dispose()

	_, err := p.GetConnection(context.Background(), "/tmp/a")
	assert.Error(t, err)

	_, err = p.GetConnection(context.Background(), "/tmp/a")
	assert.NoError(t, err)
}

func TestPool_ConcurrentGetConnectionForNewPathKeepsOneHandleAndClosesTheOther(t *testing.T) {
	var mu sync.Mutex
	var opened []*fakeConn
	open := func(ctx context.Context, path string) (any, error) {
		time.Sleep(10 * time.Millisecond) // widen the race window
		c := &fakeConn{path: path}
		mu.Lock()
		opened = append(opened, c)
		mu.Unlock()
		return c, nil
	}
	p := New(DefaultConfig(), open, alwaysHealthy, nil)
	defer p.Dispose()

	var wg sync.WaitGroup
	results := make([]any, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := p.GetConnection(context.Background(), "/tmp/race")
			require.NoError(t, err)
			results[i] = conn
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, p.Stats().Size, "only one entry should survive for the shared path")
	assert.Same(t, results[0], results[1], "both callers must observe the same connection")

	require.Len(t, opened, 2, "both goroutines raced past the initial miss and opened")
	closedCount := 0
	for _, c := range opened {
		if c.closed {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount, "the losing connection must be closed, not leaked")
}

func TestPool_StatsReportsHitRate(t *testing.T) {
	open, _ := countingOpener()
	p := New(DefaultConfig(), open, alwaysHealthy, nil)
	defer p.Dispose()

	_, err := p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)
	_, err = p.GetConnection(context.Background(), "/tmp/a")
	require.NoError(t, err)

	stats := p.Stats()
	assert.Greater(t, stats.HitRate, 0.0)
}
