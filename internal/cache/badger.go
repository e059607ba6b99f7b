// badger.go implements the badger backend.
//
// Several named caches share one badger database; each owns the key range
// "{name}\x00". Values are JSON-encoded, so V must round-trip through
// encoding/json (a nil pointer is stored as "null" and read back as nil,
// which lets callers cache negative results).
//
// Design: badger keeps no recency order, so a full cache evicts the first
// key in its range. Entries left over from a previous process are dropped
// when the cache is created because the stores may have changed while the
// process was down.

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/jpl-au/wikid/internal/log"
)

// OpenBadger opens the shared badger database. An empty dir keeps the
// database in memory.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache at %q: %w", dir, err)
	}
	return db, nil
}

// Badger is a Cache stored in a badger database.
type Badger[V any] struct {
	db      *badger.DB
	name    string
	prefix  []byte
	maxSize int

	mu    sync.Mutex // serialises writes so count stays exact
	count int
}

var _ Cache[int] = (*Badger[int])(nil)

// NewBadger returns a cache named name in db holding at most maxSize entries.
func NewBadger[V any](db *badger.DB, name string, maxSize int) (*Badger[V], error) {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Badger[V]{
		db:      db,
		name:    name,
		prefix:  []byte(name + "\x00"),
		maxSize: maxSize,
	}
	if err := db.DropPrefix(c.prefix); err != nil {
		return nil, fmt.Errorf("reset badger cache %s: %w", name, err)
	}
	return c, nil
}

func (c *Badger[V]) key(k string) []byte {
	b := make([]byte, 0, len(c.prefix)+len(k))
	b = append(b, c.prefix...)
	return append(b, k...)
}

func (c *Badger[V]) Get(key string) (V, bool) {
	var v V
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return v, false
	}
	if err == nil {
		err = json.Unmarshal(raw, &v)
	}
	if err != nil {
		log.Event("cache:"+c.name, "get").Detail("key", key).Write(err)
		var zero V
		return zero, false
	}
	return v, true
}

func (c *Badger[V]) Put(key string, v V) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Event("cache:"+c.name, "put").Detail("key", key).Write(err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delta := 0
	err = c.db.Update(func(txn *badger.Txn) error {
		delta = 0
		k := c.key(key)
		_, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if c.count >= c.maxSize {
				evicted, err := c.evictOne(txn)
				if err != nil {
					return err
				}
				if evicted {
					delta--
				}
			}
			delta++
		case err != nil:
			return err
		}
		return txn.Set(k, raw)
	})
	if err != nil {
		log.Event("cache:"+c.name, "put").Detail("key", key).Write(err)
		return
	}
	c.count += delta
}

// evictOne deletes the first key in the cache's range.
func (c *Badger[V]) evictOne(txn *badger.Txn) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var victim []byte
	it.Seek(c.prefix)
	if it.ValidForPrefix(c.prefix) {
		victim = it.Item().KeyCopy(nil)
	}
	it.Close()
	if victim == nil {
		return false, nil
	}
	return true, txn.Delete(victim)
}

func (c *Badger[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	err := c.db.Update(func(txn *badger.Txn) error {
		k := c.key(key)
		if _, err := txn.Get(k); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		removed = true
		return txn.Delete(k)
	})
	if err != nil {
		log.Event("cache:"+c.name, "remove").Detail("key", key).Write(err)
		return
	}
	if removed {
		c.count--
	}
}

func (c *Badger[V]) Keys() []string {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(c.prefix); it.ValidForPrefix(c.prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(c.prefix):]))
		}
		return nil
	})
	if err != nil {
		log.Event("cache:"+c.name, "keys").Write(err)
	}
	return keys
}

func (c *Badger[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Badger[V]) Capacity() int { return c.maxSize }

func (c *Badger[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DropPrefix(c.prefix); err != nil {
		log.Event("cache:"+c.name, "purge").Write(err)
		return
	}
	c.count = 0
}
