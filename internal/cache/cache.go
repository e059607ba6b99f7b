// Package cache provides the bounded key/value caches behind wikid's caching
// page and attachment providers.
//
// Two backends implement [Cache]:
//
//   - memory: an in-process LRU (container/list plus map)
//   - badger: entries JSON-encoded into a badger database, on disk when a
//     directory is configured and in memory otherwise
//
// Backends only store values. Hit and miss accounting belongs to the caller,
// because only the caller knows whether a stored negative result counts as a
// hit; [Counter] keeps those numbers and mirrors them to prometheus.
package cache

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrBackend indicates an unknown cache backend name.
var ErrBackend = errors.New("unknown cache backend")

// Cache is a bounded map from string keys to values of type V.
// Implementations are safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value stored under key.
	Get(key string) (V, bool)
	// Put stores v under key, evicting another entry if the cache is full.
	Put(key string, v V)
	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string)
	// Keys returns a snapshot of the stored keys in no particular order.
	Keys() []string
	// Len returns the number of stored entries.
	Len() int
	// Capacity returns the maximum number of entries.
	Capacity() int
	// Purge removes every entry.
	Purge()
}

// Stats is a point-in-time copy of a Counter.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Counter records hits and misses for one named cache.
type Counter struct {
	name   string
	hits   atomic.Uint64
	misses atomic.Uint64
	hitC   prometheus.Counter
	missC  prometheus.Counter
}

// Name returns the cache name the counter reports under.
func (c *Counter) Name() string { return c.name }

// Hit records a cache hit.
func (c *Counter) Hit() {
	c.hits.Add(1)
	if c.hitC != nil {
		c.hitC.Inc()
	}
}

// Miss records a cache miss.
func (c *Counter) Miss() {
	c.misses.Add(1)
	if c.missC != nil {
		c.missC.Inc()
	}
}

// Stats returns the current totals.
func (c *Counter) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
