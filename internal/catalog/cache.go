// Package catalog caches the backend's language catalog for a fixed TTL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
)

// DefaultTTL is how long a fetched catalog is served without refetching.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Lookup when no entry matches.
var ErrNotFound = errors.New("language not found")

// Fetcher loads the full catalog from the backend.
type Fetcher interface {
	Runtimes(ctx context.Context) ([]model.Language, error)
}

// Snapshot is one fetched catalog. Snapshots are never modified after being
// stored; a refresh stores a new one.
type Snapshot struct {
	Languages []model.Language
	FetchedAt time.Time
}

// Cache holds the most recently fetched catalog. It is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache in front of f.
func New(f Fetcher, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		fetcher: f,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Valid reports whether a catalog fetched at fetchedAt is still fresh at now.
// A catalog exactly ttl old is stale.
func Valid(fetchedAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(fetchedAt) < ttl
}

// Get returns the cached catalog when fresh (hit reports true). Otherwise it
// fetches a new one. A failed fetch leaves the previous snapshot in place.
func (c *Cache) Get(ctx context.Context) (Snapshot, bool, error) {
	if s := c.current.Load(); s != nil && Valid(s.FetchedAt, c.ttl, c.now()) {
		lookupsTotal.WithLabelValues(resultHit).Inc()
		return *s, true, nil
	}
	lookupsTotal.WithLabelValues(resultMiss).Inc()

	s, err := c.refresh(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	return *s, false, nil
}

// Lookup finds an entry by language name or alias, ignoring case. The cached
// catalog is used as-is when present; an empty cache is filled first.
func (c *Cache) Lookup(ctx context.Context, name string) (model.Language, error) {
	s := c.current.Load()
	if s == nil || len(s.Languages) == 0 {
		snap, _, err := c.Get(ctx)
		if err != nil {
			return model.Language{}, err
		}
		s = &snap
	}

	for _, l := range s.Languages {
		if l.Matches(name) {
			return l, nil
		}
	}
	return model.Language{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Prime fetches the catalog once. Failure is logged and leaves the cache empty.
func (c *Cache) Prime(ctx context.Context) {
	snap, _, err := c.Get(ctx)
	if err != nil {
		c.logger.Warn("catalog prime failed", "error", err)
		return
	}
	c.logger.Info("catalog primed", "languages", len(snap.Languages))
}

// refresh fetches and stores a new snapshot. Concurrent misses share one
// backend call.
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("runtimes", func() (any, error) {
		langs, err := c.fetcher.Runtimes(ctx)
		if err != nil {
			refreshFailuresTotal.Inc()
			return nil, err
		}
		if langs == nil {
			langs = []model.Language{}
		}
		s := &Snapshot{Languages: langs, FetchedAt: c.now()}
		c.current.Store(s)
		return s, nil
	})
	if err != nil {
		if s := c.current.Load(); s != nil {
			c.logger.Warn("catalog refresh failed, keeping previous catalog",
				"fetched_at", s.FetchedAt, "error", err)
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}
