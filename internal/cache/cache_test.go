package cache

import (
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Name    string
	Version int
}

// backends returns one cache per backend so each test runs against both.
func backends(t *testing.T, maxSize int) map[string]Cache[*page] {
	t.Helper()
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b, err := NewBadger[*page](db, "pages", maxSize)
	require.NoError(t, err)

	return map[string]Cache[*page]{
		BackendMemory: NewLRU[*page](maxSize),
		BackendBadger: b,
	}
}

func TestCache_PutGetRemove(t *testing.T) {
	for name, c := range backends(t, 10) {
		t.Run(name, func(t *testing.T) {
			_, ok := c.Get("Main")
			assert.False(t, ok)

			c.Put("Main", &page{Name: "Main", Version: 2})
			got, ok := c.Get("Main")
			require.True(t, ok)
			assert.Equal(t, 2, got.Version)

			c.Put("Main", &page{Name: "Main", Version: 3})
			got, _ = c.Get("Main")
			assert.Equal(t, 3, got.Version)
			assert.Equal(t, 1, c.Len())

			c.Remove("Main")
			c.Remove("Main")
			_, ok = c.Get("Main")
			assert.False(t, ok)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCache_NegativeEntry(t *testing.T) {
	for name, c := range backends(t, 10) {
		t.Run(name, func(t *testing.T) {
			c.Put("Ghost", nil)
			got, ok := c.Get("Ghost")
			assert.True(t, ok, "stored nil is distinct from absent")
			assert.Nil(t, got)
		})
	}
}

func TestCache_Capacity(t *testing.T) {
	for name, c := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"a", "b", "c", "d", "e"} {
				c.Put(k, &page{Name: k})
			}
			assert.Equal(t, 3, c.Len())
			assert.Equal(t, 3, c.Capacity())
			assert.Len(t, c.Keys(), 3)

			c.Purge()
			assert.Equal(t, 0, c.Len())
			assert.Empty(t, c.Keys())
		})
	}
}

func TestLRU_EvictsLeastRecent(t *testing.T) {
	c := NewLRU[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	keys := c.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestBadger_Namespaces(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	defer db.Close()

	texts, err := NewBadger[string](db, "texts", 5)
	require.NoError(t, err)
	hist, err := NewBadger[string](db, "histories", 5)
	require.NoError(t, err)

	texts.Put("Main", "hello")
	hist.Put("Main", "v1,v2")

	got, _ := texts.Get("Main")
	assert.Equal(t, "hello", got)
	assert.Equal(t, []string{"Main"}, hist.Keys())

	texts.Purge()
	_, ok := hist.Get("Main")
	assert.True(t, ok, "purging one cache leaves the others")
}

func TestFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f, err := NewFactory(Config{Backend: BackendBadger}, reg)
	require.NoError(t, err)
	defer f.Close()

	c, err := New[string](f, "texts", 4)
	require.NoError(t, err)
	_, isBadger := c.(*Badger[string])
	assert.True(t, isBadger)

	ctr := f.Counter("texts")
	ctr.Hit()
	ctr.Hit()
	ctr.Miss()
	assert.Equal(t, Stats{Hits: 2, Misses: 1}, ctr.Stats())

	n, err := testutil.GatherAndCount(reg, "wikid_cache_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per result label")

	_, err = NewFactory(Config{Backend: "ehcache"}, nil)
	assert.ErrorIs(t, err, ErrBackend)

	mem, err := New[int](nil, "x", 2)
	require.NoError(t, err)
	_, isLRU := mem.(*LRU[int])
	assert.True(t, isLRU)
}
