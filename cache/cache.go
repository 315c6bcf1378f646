// Package cache holds recently fetched documents for a bounded time.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value    V
	inserted time.Time
}

// TTL is a size bounded cache whose entries expire after a fixed age.
// It is safe for concurrent use.
type TTL[K comparable, V any] struct {
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
	now func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type Config struct {
	Size int
	TTL  time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// New creates a new TTL cache
func New[K comparable, V any](cfg Config) (*TTL[K, V], error) {
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	c, err := lru.New[K, entry[V]](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &TTL[K, V]{lru: c, ttl: cfg.TTL, now: cfg.Clock}, nil
}

// Get returns the value stored under key and the time it was stored.
// Expired entries are evicted and reported as missing.
func (c *TTL[K, V]) Get(key K) (V, time.Time, bool) {
	e, ok := c.lru.Get(key)
	if ok && !c.Fresh(e.inserted) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, time.Time{}, false
	}
	c.hits.Add(1)
	return e.value, e.inserted, true
}

func (c *TTL[K, V]) Put(key K, value V) {
	c.lru.Add(key, entry[V]{value: value, inserted: c.now()})
}

// Fresh reports whether an entry stored at inserted is still valid.
func (c *TTL[K, V]) Fresh(inserted time.Time) bool {
	return c.now().Sub(inserted) < c.ttl
}

func (c *TTL[K, V]) Purge() {
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns hit and miss counters since the last purge.
func (c *TTL[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
