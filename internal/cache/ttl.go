package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/observability"
)

// FetchFunc loads the full list from upstream.
type FetchFunc[V any] func(ctx context.Context) ([]V, error)

// Info describes the current snapshot.
type Info struct {
	Valid bool          `json:"isValid"`
	Count int           `json:"count"`
	Age   time.Duration `json:"age"`
}

// TTL is a read-through cache over a single upstream list. A snapshot is
// valid while it exists and is younger than the TTL; a refresh replaces it
// wholesale. There is no partial invalidation.
type TTL[V any] struct {
	name  string
	ttl   time.Duration
	fetch FetchFunc[V]
	store Store
	now   func() time.Time

	mu sync.Mutex // serializes refreshes
}

// Option customizes a TTL.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now; used by tests to step past the TTL.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewTTL builds a cache named name (also its store key).
func NewTTL[V any](name string, ttl time.Duration, store Store, fetch FetchFunc[V], opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &TTL[V]{name: name, ttl: ttl, fetch: fetch, store: store, now: o.now}
}

// Get returns the cached list, fetching when the snapshot is missing,
// stale, or force is set. Fetch errors are returned as-is and leave the
// previous snapshot untouched.
func (c *TTL[V]) Get(ctx context.Context, force bool) ([]V, error) {
	if !force {
		if v, ok := c.load(ctx); ok {
			observability.ObserveCache(c.name, "hit")
			return v, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if !force {
		if v, ok := c.load(ctx); ok {
			observability.ObserveCache(c.name, "hit")
			return v, nil
		}
	}

	observability.ObserveCache(c.name, "miss")
	fresh, err := c.fetch(ctx)
	if err != nil {
		observability.ObserveCache(c.name, "error")
		return nil, err
	}
	if fresh == nil {
		fresh = []V{}
	}

	raw, err := json.Marshal(fresh)
	if err == nil {
		err = c.store.Save(ctx, c.name, Entry{Data: raw, StoredAt: c.now()}, c.ttl)
	}
	if err != nil {
		// Serve the fresh list anyway; the next call simply refetches.
		log.Warn().Err(err).Str("cache", c.name).Msg("cache store failed")
	}
	return fresh, nil
}

// Clear drops the snapshot so the next Get refetches.
func (c *TTL[V]) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, c.name)
}

// Info reports validity, size and age of the current snapshot. Age is zero
// when there is no snapshot.
func (c *TTL[V]) Info(ctx context.Context) Info {
	e, ok, err := c.store.Load(ctx, c.name)
	if err != nil || !ok {
		return Info{}
	}
	var v []V
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return Info{}
	}
	age := c.now().Sub(e.StoredAt)
	return Info{Valid: age < c.ttl, Count: len(v), Age: age}
}

func (c *TTL[V]) load(ctx context.Context) ([]V, bool) {
	e, ok, err := c.store.Load(ctx, c.name)
	if err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("cache load failed")
		return nil, false
	}
	if !ok || c.now().Sub(e.StoredAt) >= c.ttl {
		return nil, false
	}
	var v []V
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return nil, false
	}
	return v, true
}
