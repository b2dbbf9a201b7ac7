// Package cache implements the Bytecode Cache of spec.md 4.9: a
// hierarchical parent/child cache of rewritten class bytes, with an
// optional external cache consulted before local storage on read and
// updated on write.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// Entry is one immutable cached rewrite result: the final bytes and the
// sandbox-namespace names it referenced, for callers that need to walk
// a rewritten class's dependency set without re-parsing it.
type Entry struct {
	Bytes []byte
	Refs  []string
}

// External is the optional side-channel cache spec.md 4.9 describes:
// "a pure side-channel shared across configurations, keyed by sandbox
// name." Consulted before local storage on Get, and updated on
// PutIfAbsent.
type External interface {
	Get(ctx context.Context, sandboxName string) ([]byte, bool, error)
	Put(ctx context.Context, sandboxName string, data []byte) error
}

// Cache is one level of the hierarchy. get(name) checks the external
// cache, then the parent, then this level's own storage, in that order;
// putIfAbsent(name, ...) only ever writes to this level (and the
// external cache, if configured), never to the parent, per spec.md 4.9.
type Cache struct {
	parent   *Cache
	external External

	mu    sync.RWMutex
	local map[string]Entry

	group singleflight.Group

	hits   prometheus.Counter
	misses prometheus.Counter

	// hitCount/missCount mirror hits/misses as plain atomic counters, for
	// Stats to report back to a CLI caller without reaching into
	// prometheus's internal sample representation.
	hitCount   uint64
	missCount  uint64
}

// New builds a Cache level. parent is nil for the root cache. external is
// nil when no side-channel cache is configured. registerer is nil to
// skip metrics registration entirely (tests typically pass nil); when
// non-nil, hit/miss counters are registered on it rather than on the
// global default registry, per the §9 design note against package-level
// state.
func New(parent *Cache, external External, registerer prometheus.Registerer) *Cache {
	c := &Cache{parent: parent, external: external, local: make(map[string]Entry)}
	c.hits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dsandbox_cache_hits_total",
		Help: "Bytecode cache lookups satisfied without a rewrite.",
	})
	c.misses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dsandbox_cache_misses_total",
		Help: "Bytecode cache lookups that required a rewrite.",
	})
	if registerer != nil {
		registerer.MustRegister(c.hits, c.misses)
	}
	return c
}

// Get returns the cached bytes for name, checking the external cache,
// then the parent chain, then local storage.
func (c *Cache) Get(ctx context.Context, name string) ([]byte, bool) {
	if c.external != nil {
		if data, ok, err := c.external.Get(ctx, name); err == nil && ok {
			c.recordHit()
			return data, true
		}
	}
	if c.parent != nil {
		if data, ok := c.parent.Get(ctx, name); ok {
			c.recordHit()
			return data, true
		}
	}
	c.mu.RLock()
	e, ok := c.local[name]
	c.mu.RUnlock()
	if ok {
		c.recordHit()
		return e.Bytes, true
	}
	c.recordMiss()
	return nil, false
}

func (c *Cache) recordHit() {
	c.hits.Inc()
	atomic.AddUint64(&c.hitCount, 1)
}

func (c *Cache) recordMiss() {
	c.misses.Inc()
	atomic.AddUint64(&c.missCount, 1)
}

// Stats returns this cache level's own hit/miss counts (not the parent's
// or external's), for a CLI or admin endpoint to report.
func (c *Cache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hitCount), atomic.LoadUint64(&c.missCount)
}

// PutIfAbsent installs data for name at this level only, and through the
// external cache if configured. A name already present locally is left
// untouched: cache entries are immutable once written, per spec.md 4.9.
func (c *Cache) PutIfAbsent(ctx context.Context, name string, data []byte, refs []string) {
	c.mu.Lock()
	if _, exists := c.local[name]; exists {
		c.mu.Unlock()
		return
	}
	c.local[name] = Entry{Bytes: append([]byte(nil), data...), Refs: append([]string(nil), refs...)}
	c.mu.Unlock()

	if c.external != nil {
		_ = c.external.Put(ctx, name, data)
	}
}

// GetOrRewrite returns the cached bytes for name if present; otherwise it
// calls rewrite to produce them, installing the result via PutIfAbsent.
// Concurrent calls for the same name are collapsed into a single rewrite
// via singleflight -- this deduplicates identical work already in
// flight, it does not introduce speculative parallelism the rewrite
// pipeline doesn't otherwise have.
func (c *Cache) GetOrRewrite(ctx context.Context, name string, rewrite func() ([]byte, []string, error)) ([]byte, error) {
	if data, ok := c.Get(ctx, name); ok {
		return data, nil
	}
	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		if data, ok := c.Get(ctx, name); ok {
			return data, nil
		}
		data, refs, err := rewrite()
		if err != nil {
			return nil, err
		}
		c.PutIfAbsent(ctx, name, data, refs)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
