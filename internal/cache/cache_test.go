package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()

	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "covid_api.sqlite"))
	require.NoError(t, err)

	c := New(backend, zap.NewNop())
	t.Cleanup(func() { c.Close() })

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func countingFetch(calls *atomic.Int64, body string) FetchFunc {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(body), nil
	}
}

func TestGetOrFetchServesFromCacheWithinTTL(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int64

	body, err := c.GetOrFetch(ctx, "https://example.test/MEX", time.Hour, countingFetch(&calls, `{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(body))

	*now = now.Add(59 * time.Minute)
	body, err = c.GetOrFetch(ctx, "https://example.test/MEX", time.Hour, countingFetch(&calls, `{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(body))
	assert.Equal(t, int64(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrFetchRefetchesAfterExpiry(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int64

	_, err := c.GetOrFetch(ctx, "k", time.Hour, countingFetch(&calls, "old"))
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	body, err := c.GetOrFetch(ctx, "k", time.Hour, countingFetch(&calls, "new"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(body))
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrFetch(ctx, "k", time.Hour, func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	var calls atomic.Int64
	body, err := c.GetOrFetch(ctx, "k", time.Hour, countingFetch(&calls, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrFetchCollapsesConcurrentIdenticalKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.GetOrFetch(ctx, "same", time.Hour, fetch)
			assert.NoError(t, err)
			results[i] = string(body)
		}()
	}

	// Give the callers time to pile up behind the first fetch.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrFetchSharedFetchOutlivesFirstCaller(t *testing.T) {
	c, _ := newTestCache(t)

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		close(started)
		<-release
		fetchErr <- ctx.Err()
		return []byte("shared"), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(firstCtx, "same", time.Hour, fetch)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan string, 1)
	go func() {
		body, err := c.GetOrFetch(context.Background(), "same", time.Hour, fetch)
		assert.NoError(t, err)
		secondDone <- string(body)
	}()

	// Let the second caller join the flight before the first one gives up.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.NoError(t, <-fetchErr)
	assert.Equal(t, "shared", <-secondDone)
	assert.Equal(t, int64(1), calls.Load())

	e, err := c.backend.Get(context.Background(), "same")
	require.NoError(t, err)
	assert.Equal(t, "shared", string(e.Body))
}

func TestGetOrFetchZeroTTLBypassesCache(t *testing.T) {
	c, _ := newTestCache(t)
	var calls atomic.Int64

	for i := 0; i < 3; i++ {
		_, err := c.GetOrFetch(context.Background(), "k", 0, countingFetch(&calls, "x"))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), calls.Load())
}

func TestPurgeRemovesExpiredEntries(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int64

	_, err := c.GetOrFetch(ctx, "short", time.Minute, countingFetch(&calls, "a"))
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, "long", 2*time.Hour, countingFetch(&calls, "b"))
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.backend.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	e, err := c.backend.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "b", string(e.Body))
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	ctx := context.Background()
	stored := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "k", Entry{Body: []byte("v"), StoredAt: stored, ExpiresAt: stored.Add(time.Hour)}))
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	e, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(e.Body))
	assert.True(t, e.StoredAt.Equal(stored))
	assert.False(t, e.Expired(stored.Add(59*time.Minute)))
	assert.True(t, e.Expired(stored.Add(time.Hour)))
}
