// factory.go builds named caches from configuration.
//
// Design: one Factory per process. It owns the badger database (when the
// badger backend is selected) and the prometheus collectors, so every cache
// it creates shares them and Close releases both.

package cache

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend names accepted by Config.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config selects the backend for every cache made by a Factory.
type Config struct {
	Backend string // memory (default) or badger
	Dir     string // badger directory, empty for in-memory badger
}

// Factory creates caches and counters that share a backend and registry.
type Factory struct {
	cfg      Config
	db       *badger.DB
	requests *prometheus.CounterVec
	entries  *prometheus.GaugeVec
}

// NewFactory validates cfg and opens shared resources. A nil registerer
// disables prometheus export; counters still work.
func NewFactory(cfg Config, reg prometheus.Registerer) (*Factory, error) {
	f := &Factory{cfg: cfg}
	switch cfg.Backend {
	case "", BackendMemory:
		f.cfg.Backend = BackendMemory
	case BackendBadger:
		db, err := OpenBadger(cfg.Dir)
		if err != nil {
			return nil, err
		}
		f.db = db
	default:
		return nil, fmt.Errorf("%w: %q (supported: memory, badger)", ErrBackend, cfg.Backend)
	}

	if reg != nil {
		f.requests = promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikid_cache_requests_total",
				Help: "Cache lookups by cache name and result (hit or miss)",
			},
			[]string{"cache", "result"},
		)
		f.entries = promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wikid_cache_capacity_entries",
				Help: "Configured maximum entries per cache",
			},
			[]string{"cache"},
		)
	}
	return f, nil
}

// Backend returns the selected backend name.
func (f *Factory) Backend() string { return f.cfg.Backend }

// Counter returns a hit/miss counter reporting under name.
func (f *Factory) Counter(name string) *Counter {
	c := &Counter{name: name}
	if f != nil && f.requests != nil {
		c.hitC = f.requests.WithLabelValues(name, "hit")
		c.missC = f.requests.WithLabelValues(name, "miss")
	}
	return c
}

// Close releases the badger database, if any.
func (f *Factory) Close() error {
	if f != nil && f.db != nil {
		return f.db.Close()
	}
	return nil
}

// New creates a cache named name with room for maxSize entries using the
// factory's backend. A nil factory yields a memory LRU.
func New[V any](f *Factory, name string, maxSize int) (Cache[V], error) {
	if f != nil && f.entries != nil {
		f.entries.WithLabelValues(name).Set(float64(maxSize))
	}
	if f == nil || f.db == nil {
		return NewLRU[V](maxSize), nil
	}
	return NewBadger[V](f.db, name, maxSize)
}
