package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by backends when a key is absent.
var ErrMiss = errors.New("cache miss")

// DefaultFlightTimeout bounds a shared fetch once it no longer follows the
// context of the caller that started it.
const DefaultFlightTimeout = 2 * time.Minute

// Entry is a stored response body.
type Entry struct {
	Body      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Backend is the storage behind a Cache (SQLite, Redis).
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	// Purge deletes expired entries and returns how many were removed.
	Purge(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

// FetchFunc produces a fresh body for a key on a miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Stats are cumulative counters since the cache was created.
type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Fetches int64  `json:"fetches"`
}

// Cache is a response cache keyed by request URL. Concurrent misses on the
// same key share a single fetch; different keys proceed in parallel.
type Cache struct {
	backend Backend
	logger  *zap.Logger
	group   singleflight.Group
	now     func() time.Time

	flightTimeout time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// New wraps a backend.
func New(backend Backend, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		backend:       backend,
		logger:        logger,
		now:           time.Now,
		flightTimeout: DefaultFlightTimeout,
	}
}

// GetOrFetch returns the cached body for key if it is younger than ttl,
// otherwise calls fetch and stores its result. Errors from fetch are never
// cached. A ttl <= 0 bypasses the cache entirely.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if ttl <= 0 {
		c.fetches.Add(1)
		return fetch(ctx)
	}

	if body, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		return body, nil
	}
	c.misses.Add(1)

	// The fetch is shared by every caller waiting on key, so it must not die
	// with whichever caller happened to start it. Each caller still stops
	// waiting when its own context is done.
	flight := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()

		// Another flight may have stored the key while we were waiting.
		if body, ok := c.lookup(fctx, key); ok {
			return body, nil
		}

		c.fetches.Add(1)
		body, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		now := c.now()
		entry := Entry{Body: body, StoredAt: now, ExpiresAt: now.Add(ttl)}
		if err := c.backend.Set(fctx, key, entry); err != nil {
			c.logger.Warn("cache store failed",
				zap.String("backend", c.backend.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("cache fetch shared", zap.String("key", key))
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	e, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache read failed",
				zap.String("backend", c.backend.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}
	if e.Expired(c.now()) {
		return nil, false
	}
	return e.Body, true
}

// Purge removes expired entries from the backend.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	return c.backend.Purge(ctx, c.now())
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Backend: c.backend.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetches: c.fetches.Load(),
	}
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
