// caching.go implements the caching page store decorator.
//
// Three caches sit in front of the wrapped store: page info (latest version,
// with nil recording a page known not to exist), latest page text, and
// version histories. Hit/miss counters are reported by ProviderInfo and
// exported as prometheus counters when the cache factory has a registry.
//
// Design: writes delegate first, then bump the page's generation and
// invalidate. A loader notes the generation before asking the wrapped store
// and drops its result if a write has happened since, so a read that races
// a write never puts the old value back. Once AllPages has
// loaded every page into the info cache, a miss means "does not exist"
// without asking the wrapped store. That shortcut is only trusted while
// the info cache has never been full, since a full cache may have evicted
// live pages.

package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jpl-au/wikid/internal/cache"
	"github.com/jpl-au/wikid/internal/log"
)

// CachingProvider wraps a PageProvider with bounded caches.
type CachingProvider struct {
	inner  PageProvider
	parser MetadataParser

	// mu serialises a store write with its cache invalidation.
	mu sync.Mutex

	pages     cache.Cache[*Page]
	texts     cache.Cache[string]
	histories cache.Cache[[]Page]

	pageStats    *cache.Counter
	textStats    *cache.Counter
	historyStats *cache.Counter

	gens   generations
	gotAll atomic.Bool
	group  singleflight.Group
}

var _ PageProvider = (*CachingProvider)(nil)

// generations counts completed writes per key.
type generations struct {
	mu sync.Mutex
	n  map[string]uint64
}

func (g *generations) get(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n[key]
}

// bump records a write to each key. Call it after the wrapped store has
// committed and before invalidating.
func (g *generations) bump(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n == nil {
		g.n = make(map[string]uint64)
	}
	for _, k := range keys {
		g.n[k]++
	}
}

// storeIf runs put while key is still at generation gen and reports
// whether it ran.
func (g *generations) storeIf(key string, gen uint64, put func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n[key] != gen {
		return false
	}
	put()
	return true
}

// flightKey scopes a singleflight call to one generation, so a caller
// arriving after a write never joins a load that started before it.
func flightKey(kind, name string, gen uint64) string {
	return kind + ":" + strconv.FormatUint(gen, 10) + ":" + name
}

// NewCachingProvider wraps inner using the cache backend in opts.
func NewCachingProvider(inner PageProvider, opts Options, s CachingSettings) (*CachingProvider, error) {
	pages, err := cache.New[*Page](opts.Caches, "pages", s.Pages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	texts, err := cache.New[string](opts.Caches, "texts", s.Texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	histories, err := cache.New[[]Page](opts.Caches, "histories", s.Histories)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return &CachingProvider{
		inner:        inner,
		parser:       opts.Parser,
		pages:        pages,
		texts:        texts,
		histories:    histories,
		pageStats:    opts.Caches.Counter("pages"),
		textStats:    opts.Caches.Counter("texts"),
		historyStats: opts.Caches.Counter("histories"),
	}, nil
}

// Inner returns the wrapped store.
func (c *CachingProvider) Inner() PageProvider { return c.inner }

// allLoaded reports whether a miss in the info cache proves absence.
func (c *CachingProvider) allLoaded() bool {
	return c.gotAll.Load() && c.pages.Len() < c.pages.Capacity()
}

func (c *CachingProvider) putPage(name string, p *Page) {
	c.pages.Put(name, p)
	if c.pages.Len() >= c.pages.Capacity() {
		c.gotAll.Store(false)
	}
}

// page returns the latest info for name, or nil when the page does not
// exist. The result is shared with the cache and must not be modified.
func (c *CachingProvider) page(ctx context.Context, name string) (*Page, error) {
	if p, ok := c.pages.Get(name); ok {
		c.pageStats.Hit()
		if p != nil && c.parser != nil && !p.HasMetadata {
			gen := c.gens.get(name)
			p = p.Clone()
			c.refreshMetadata(ctx, p)
			c.gens.storeIf(name, gen, func() { c.pages.Put(name, p) })
		}
		return p, nil
	}
	if c.allLoaded() {
		c.pageStats.Hit()
		return nil, nil
	}
	c.pageStats.Miss()

	v, err, _ := c.group.Do(flightKey("info", name, c.gens.get(name)), func() (any, error) {
		return c.load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// load fetches name from the wrapped store and caches the outcome,
// including absence, unless a write lands while it reads.
func (c *CachingProvider) load(ctx context.Context, name string) (*Page, error) {
	gen := c.gens.get(name)
	p, err := c.inner.PageInfo(ctx, name, Latest)
	if errors.Is(err, ErrNotFound) {
		c.gens.storeIf(name, gen, func() { c.putPage(name, nil) })
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.refreshMetadata(ctx, p)
	c.gens.storeIf(name, gen, func() { c.putPage(name, p) })
	return p, nil
}

// refreshMetadata extracts [{SET}] variables for a page that has never been
// scanned. Failures are logged and the page is returned as it is. A page
// whose text could be read is marked scanned even if parsing failed, so a
// broken page is not reparsed on every request.
func (c *CachingProvider) refreshMetadata(ctx context.Context, p *Page) {
	if c.parser == nil || p.HasMetadata {
		return
	}
	text, err := c.inner.PageText(ctx, p.Name, p.Version)
	if err != nil {
		log.Event("provider:caching", "metadata").Page(p.Name).Version(p.Version).Warn(err)
		return
	}
	if err := c.parser.ParseMetadata(p, text); err != nil {
		log.Event("provider:caching", "metadata").Page(p.Name).Version(p.Version).Warn(err)
	}
	p.HasMetadata = true
}

func (c *CachingProvider) PutPageText(ctx context.Context, p *Page, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.PutPageText(ctx, p, text); err != nil {
		return err
	}
	c.gens.bump(p.Name)
	c.invalidate(p.Name)
	if _, err := c.load(ctx, p.Name); err != nil {
		c.gotAll.Store(false)
		log.Event("provider:caching", "reload").Page(p.Name).Warn(err)
	}
	return nil
}

func (c *CachingProvider) PageText(ctx context.Context, name string, version int) (string, error) {
	p, err := c.page(ctx, name)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", notFound("page", name)
	}
	if version != Latest && version != p.Version {
		return c.inner.PageText(ctx, name, version)
	}

	if text, ok := c.texts.Get(name); ok {
		c.textStats.Hit()
		return text, nil
	}
	c.textStats.Miss()
	gen := c.gens.get(name)
	v, err, _ := c.group.Do(flightKey("text", name, gen), func() (any, error) {
		text, err := c.inner.PageText(ctx, name, Latest)
		if err != nil {
			return "", err
		}
		c.gens.storeIf(name, gen, func() { c.texts.Put(name, text) })
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *CachingProvider) PageExists(ctx context.Context, name string, version int) (bool, error) {
	p, err := c.page(ctx, name)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	if version == Latest || version == p.Version {
		return true, nil
	}
	return c.inner.PageExists(ctx, name, version)
}

// AllPages serves from the info cache once it holds every page. When the
// wiki has more pages than the cache can hold, every call goes to the
// wrapped store and a warning is logged.
func (c *CachingProvider) AllPages(ctx context.Context) ([]Page, error) {
	if c.allLoaded() {
		var out []Page
		for _, name := range c.pages.Keys() {
			if p, ok := c.pages.Get(name); ok && p != nil {
				out = append(out, *p.Clone())
			}
		}
		// Eviction between Keys and Get would drop a page.
		if c.allLoaded() {
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return out, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.inner.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) >= c.pages.Capacity() {
		log.Event("provider:caching", "all-pages").
			Detail("pages", fmt.Sprint(len(all))).
			Detail("capacity", fmt.Sprint(c.pages.Capacity())).
			Warn(fmt.Errorf("page cache holds %d entries but the wiki has %d pages; increase cache.pages", c.pages.Capacity(), len(all)))
		return all, nil
	}
	for i := range all {
		p := all[i].Clone()
		if cached, ok := c.pages.Get(p.Name); ok && cached != nil && cached.HasMetadata && cached.Version == p.Version {
			p.Attributes = cached.Clone().Attributes
			p.HasMetadata = true
		}
		c.putPage(p.Name, p)
	}
	c.gotAll.Store(c.pages.Len() < c.pages.Capacity())
	return all, nil
}

func (c *CachingProvider) AllChangedSince(ctx context.Context, since time.Time) ([]Page, error) {
	all, err := c.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	return changedSince(all, since), nil
}

func (c *CachingProvider) PageCount(ctx context.Context) (int, error) {
	if !c.allLoaded() {
		return c.inner.PageCount(ctx)
	}
	all, err := c.AllPages(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (c *CachingProvider) PageInfo(ctx context.Context, name string, version int) (*Page, error) {
	p, err := c.page(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("page", name)
	}
	if version == Latest || version == p.Version {
		return p.Clone(), nil
	}
	return c.inner.PageInfo(ctx, name, version)
}

func (c *CachingProvider) VersionHistory(ctx context.Context, name string) ([]Page, error) {
	if h, ok := c.histories.Get(name); ok {
		c.historyStats.Hit()
		return clonePages(h), nil
	}
	c.historyStats.Miss()
	gen := c.gens.get(name)
	v, err, _ := c.group.Do(flightKey("history", name, gen), func() (any, error) {
		h, err := c.inner.VersionHistory(ctx, name)
		if err != nil {
			return nil, err
		}
		c.gens.storeIf(name, gen, func() { c.histories.Put(name, h) })
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return clonePages(v.([]Page)), nil
}

func clonePages(in []Page) []Page {
	out := make([]Page, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}

func (c *CachingProvider) DeleteVersion(ctx context.Context, name string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.DeleteVersion(ctx, name, version); err != nil {
		return err
	}
	c.gens.bump(name)
	c.invalidate(name)
	// The page may or may not survive; record whichever it is so a trusted
	// full listing stays correct.
	if _, err := c.load(ctx, name); err != nil {
		c.gotAll.Store(false)
		log.Event("provider:caching", "reload").Page(name).Warn(err)
	}
	return nil
}

func (c *CachingProvider) DeletePage(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.DeletePage(ctx, name); err != nil {
		return err
	}
	c.gens.bump(name)
	c.invalidate(name)
	return nil
}

func (c *CachingProvider) MovePage(ctx context.Context, from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.MovePage(ctx, from, to); err != nil {
		return err
	}
	c.gens.bump(from, to)
	c.invalidate(from)
	c.invalidate(to)
	if _, err := c.load(ctx, to); err != nil {
		c.gotAll.Store(false)
		log.Event("provider:caching", "reload").Page(to).Warn(err)
	}
	return nil
}

func (c *CachingProvider) invalidate(name string) {
	c.pages.Remove(name)
	c.texts.Remove(name)
	c.histories.Remove(name)
}

func (c *CachingProvider) ProviderInfo() string {
	p, t, h := c.pageStats.Stats(), c.textStats.Stats(), c.historyStats.Stats()
	return fmt.Sprintf("Real provider: %s. Cache misses: %d. Cache hits: %d. Text cache misses: %d. Text cache hits: %d. History cache misses: %d. History cache hits: %d",
		c.inner.ProviderInfo(), p.Misses, p.Hits, t.Misses, t.Hits, h.Misses, h.Hits)
}
