package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/cache"
)

// countingPages records how often the wrapped store is asked for data.
type countingPages struct {
	PageProvider
	infos atomic.Int64
	texts atomic.Int64
	lists atomic.Int64
}

func (c *countingPages) PageInfo(ctx context.Context, name string, version int) (*Page, error) {
	c.infos.Add(1)
	return c.PageProvider.PageInfo(ctx, name, version)
}

func (c *countingPages) PageText(ctx context.Context, name string, version int) (string, error) {
	c.texts.Add(1)
	return c.PageProvider.PageText(ctx, name, version)
}

func (c *countingPages) AllPages(ctx context.Context) ([]Page, error) {
	c.lists.Add(1)
	return c.PageProvider.AllPages(ctx)
}

// setParser extracts "key: value" lines as attributes.
type setParser struct{ fail bool }

func (p setParser) ParseMetadata(pg *Page, text string) error {
	if p.fail {
		return errors.New("render failed")
	}
	for _, line := range strings.Split(text, "\n") {
		if k, v, ok := strings.Cut(line, ": "); ok {
			pg.SetAttribute(k, v)
		}
	}
	return nil
}

func newCaching(t *testing.T, opts Options, s CachingSettings) (*CachingProvider, *countingPages) {
	t.Helper()
	opts.PageDir = t.TempDir()
	inner, err := NewVersioningProvider(opts)
	require.NoError(t, err)
	counting := &countingPages{PageProvider: inner}
	if s.Pages == 0 {
		s = CachingSettings{Pages: 100, Texts: 100, Histories: 100}
	}
	c, err := NewCachingProvider(counting, opts, s)
	require.NoError(t, err)
	return c, counting
}

func cacheFactories(t *testing.T) map[string]*cache.Factory {
	t.Helper()
	mem, err := cache.NewFactory(cache.Config{Backend: cache.BackendMemory}, nil)
	require.NoError(t, err)
	bdg, err := cache.NewFactory(cache.Config{Backend: cache.BackendBadger}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { bdg.Close() })
	return map[string]*cache.Factory{
		cache.BackendMemory: mem,
		cache.BackendBadger: bdg,
	}
}

func TestCaching_NoStaleReadAfterPut(t *testing.T) {
	for name, f := range cacheFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := newCaching(t, Options{Caches: f}, CachingSettings{})

			save(t, c, "Main", "a", "old")
			text, err := c.PageText(ctx, "Main", Latest)
			require.NoError(t, err)
			assert.Equal(t, "old", text)

			save(t, c, "Main", "b", "X")
			text, err = c.PageText(ctx, "Main", Latest)
			require.NoError(t, err)
			assert.Equal(t, "X", text)

			info, err := c.PageInfo(ctx, "Main", Latest)
			require.NoError(t, err)
			assert.Equal(t, 2, info.Version)
			assert.Equal(t, "b", info.Author)

			history, err := c.VersionHistory(ctx, "Main")
			require.NoError(t, err)
			assert.Len(t, history, 2)
			save(t, c, "Main", "c", "Y")
			history, err = c.VersionHistory(ctx, "Main")
			require.NoError(t, err)
			assert.Len(t, history, 3)
		})
	}
}

func TestCaching_TextServedFromCache(t *testing.T) {
	ctx := context.Background()
	c, inner := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "Main", "a", "hello")

	for range 3 {
		text, err := c.PageText(ctx, "Main", Latest)
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	}
	assert.EqualValues(t, 1, inner.texts.Load())

	// Historical versions bypass the text cache.
	save(t, c, "Main", "a", "again")
	text, err := c.PageText(ctx, "Main", 1)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestCaching_NegativeEntries(t *testing.T) {
	ctx := context.Background()
	c, inner := newCaching(t, Options{}, CachingSettings{})

	for range 3 {
		ok, err := c.PageExists(ctx, "Missing", Latest)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.EqualValues(t, 1, inner.infos.Load(), "absence is cached")

	_, err := c.PageText(ctx, "Missing", Latest)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.PageInfo(ctx, "Missing", Latest)
	assert.ErrorIs(t, err, ErrNotFound)

	save(t, c, "Missing", "a", "now here")
	ok, err := c.PageExists(ctx, "Missing", Latest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCaching_AllPagesShortCircuitsMisses(t *testing.T) {
	ctx := context.Background()
	c, inner := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "A", "a", "a")
	save(t, c, "B", "a", "b")

	all, err := c.AllPages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	before := inner.infos.Load()
	ok, err := c.PageExists(ctx, "Nope", Latest)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, inner.infos.Load(), "full listing answers misses")

	all, err = c.AllPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.EqualValues(t, 1, inner.lists.Load())

	n, err := c.PageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.DeletePage(ctx, "A"))
	all, err = c.AllPages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].Name)
}

func TestCaching_OverflowBypassesCache(t *testing.T) {
	ctx := context.Background()
	c, inner := newCaching(t, Options{}, CachingSettings{Pages: 2, Texts: 2, Histories: 2})
	for _, n := range []string{"A", "B", "C"} {
		save(t, c, n, "a", n)
	}

	for range 3 {
		all, err := c.AllPages(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	}
	assert.EqualValues(t, 3, inner.lists.Load())

	ok, err := c.PageExists(ctx, "C", Latest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCaching_MetadataRepair(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{Parser: setParser{}}, CachingSettings{})
	save(t, c, "Main", "a", "status: draft\nbody")

	info, err := c.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.True(t, info.HasMetadata)
	assert.Equal(t, "draft", info.Attributes["status"])

	all, err := c.AllPages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	info, err = c.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Equal(t, "draft", info.Attributes["status"])
}

func TestCaching_MetadataFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{Parser: setParser{fail: true}}, CachingSettings{})
	save(t, c, "Main", "a", "status: draft")

	info, err := c.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Empty(t, info.Attributes)
}

func TestCaching_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "Main", "a", "x")

	info, err := c.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	info.Author = "mallory"
	info.SetAttribute("k", "v")

	again, err := c.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Author)
	assert.Empty(t, again.Attributes)
}

func TestCaching_MoveAndDeleteVersion(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "From", "a", "one")
	save(t, c, "From", "b", "two")
	_, err := c.AllPages(ctx)
	require.NoError(t, err)

	require.NoError(t, c.MovePage(ctx, "From", "To"))
	ok, err := c.PageExists(ctx, "From", Latest)
	require.NoError(t, err)
	assert.False(t, ok)
	text, err := c.PageText(ctx, "To", Latest)
	require.NoError(t, err)
	assert.Equal(t, "two", text)

	require.NoError(t, c.DeleteVersion(ctx, "To", Latest))
	text, err = c.PageText(ctx, "To", Latest)
	require.NoError(t, err)
	assert.Equal(t, "one", text)
	ok, err = c.PageExists(ctx, "To", Latest)
	require.NoError(t, err)
	assert.True(t, ok, "page survives and the full listing still knows it")
}

func TestCaching_ConcurrentMissesCollapse(t *testing.T) {
	ctx := context.Background()
	c, inner := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "Main", "a", "x")
	c.texts.Purge()
	base := inner.texts.Load()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := c.PageText(ctx, "Main", Latest)
			assert.NoError(t, err)
			assert.Equal(t, "x", text)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.texts.Load()-base, int64(20))
	assert.GreaterOrEqual(t, inner.texts.Load()-base, int64(1))
}

func TestCaching_ProviderInfo(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "Main", "a", "x")
	_, err := c.PageText(ctx, "Main", Latest)
	require.NoError(t, err)
	_, err = c.PageText(ctx, "Main", Latest)
	require.NoError(t, err)

	info := c.ProviderInfo()
	assert.Contains(t, info, "Real provider: VersioningProvider")
	assert.Contains(t, info, "Text cache misses: 1. Text cache hits: 1")
}

func newCachingAttachments(t *testing.T) (*CachingAttachmentProvider, *BasicAttachmentProvider) {
	t.Helper()
	inner, _ := newAttachments(t, "")
	c, err := NewCachingAttachmentProvider(inner, Options{}, CachingSettings{Attachments: 100, Lists: 100})
	require.NoError(t, err)
	return c, inner
}

func TestCachingAttachments_ListInvalidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newCachingAttachments(t)
	attach(t, c, "Main", "a.txt", "a", "1")
	attach(t, c, "Main", "b.txt", "a", "1")

	list, err := c.ListAttachments(ctx, "Main")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.DeleteAttachment(ctx, &Attachment{Page: "Main", FileName: "a.txt"}))
	list, err = c.ListAttachments(ctx, "Main")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b.txt", list[0].FileName)

	attach(t, c, "Main", "b.txt", "z", "2")
	info, err := c.AttachmentInfo(ctx, "Main", "b.txt", Latest)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
	assert.Equal(t, "z", info.Author)
}

func TestCachingAttachments_ListAllChangedFiltersCachedSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newCachingAttachments(t)
	attach(t, c, "A", "a.txt", "a", "1")
	attach(t, c, "B", "b.txt", "a", "1")

	all, err := c.ListAllChanged(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, c.allLoaded())

	none, err := c.ListAllChanged(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	list, err := c.ListAttachments(ctx, "Empty")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCachingAttachments_MoveInvalidates(t *testing.T) {
	ctx := context.Background()
	c, _ := newCachingAttachments(t)
	attach(t, c, "Old", "a.txt", "a", "1")
	_, err := c.AttachmentInfo(ctx, "Old", "a.txt", Latest)
	require.NoError(t, err)
	_, err = c.ListAllChanged(ctx, time.Time{})
	require.NoError(t, err)

	require.NoError(t, c.MoveAttachmentsForPage(ctx, "Old", "New"))

	_, err = c.AttachmentInfo(ctx, "Old", "a.txt", Latest)
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := c.ListAttachments(ctx, "New")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "New", list[0].Page)

	assert.Contains(t, c.ProviderInfo(), "Real provider: BasicAttachmentProvider")
}

// gate holds one call to the wrapped store after it has read its result,
// so a test can complete a write in between.
type gate struct {
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) pass() {
	if g.armed.CompareAndSwap(true, false) {
		g.reached <- struct{}{}
		<-g.release
	}
}

type gatedPages struct {
	PageProvider
	info *gate
	text *gate
}

func (g *gatedPages) PageInfo(ctx context.Context, name string, version int) (*Page, error) {
	p, err := g.PageProvider.PageInfo(ctx, name, version)
	g.info.pass()
	return p, err
}

func (g *gatedPages) PageText(ctx context.Context, name string, version int) (string, error) {
	text, err := g.PageProvider.PageText(ctx, name, version)
	g.text.pass()
	return text, err
}

func newGatedCaching(t *testing.T) (*CachingProvider, *gatedPages) {
	t.Helper()
	inner, err := NewVersioningProvider(Options{PageDir: t.TempDir()})
	require.NoError(t, err)
	gated := &gatedPages{PageProvider: inner, info: newGate(), text: newGate()}
	c, err := NewCachingProvider(gated, Options{}, CachingSettings{Pages: 100, Texts: 100, Histories: 100})
	require.NoError(t, err)
	return c, gated
}

func TestCaching_ReadRacingPutDoesNotRestoreOldText(t *testing.T) {
	ctx := context.Background()
	c, gated := newGatedCaching(t)
	save(t, c, "Main", "a", "old")
	c.texts.Purge()

	gated.text.armed.Store(true)
	done := make(chan string)
	go func() {
		text, err := c.PageText(ctx, "Main", Latest)
		assert.NoError(t, err)
		done <- text
	}()

	<-gated.text.reached
	save(t, c, "Main", "b", "new")
	close(gated.text.release)
	assert.Equal(t, "old", <-done, "the racing read saw the store before the write")

	text, err := c.PageText(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Equal(t, "new", text)
}

func TestCaching_ReadRacingWritesDoesNotRestoreOldInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("put", func(t *testing.T) {
		c, gated := newGatedCaching(t)
		save(t, c, "Main", "a", "old")
		c.pages.Purge()

		gated.info.armed.Store(true)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := c.PageInfo(ctx, "Main", Latest)
			assert.NoError(t, err)
		}()

		<-gated.info.reached
		save(t, c, "Main", "b", "new")
		close(gated.info.release)
		<-done

		info, err := c.PageInfo(ctx, "Main", Latest)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Version)
		assert.Equal(t, "b", info.Author)
	})

	t.Run("delete", func(t *testing.T) {
		c, gated := newGatedCaching(t)
		save(t, c, "Main", "a", "old")
		c.pages.Purge()

		gated.info.armed.Store(true)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.PageInfo(ctx, "Main", Latest)
		}()

		<-gated.info.reached
		require.NoError(t, c.DeletePage(ctx, "Main"))
		close(gated.info.release)
		<-done

		ok, err := c.PageExists(ctx, "Main", Latest)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

type gatedAttachments struct {
	AttachmentProvider
	list *gate
}

func (g *gatedAttachments) ListAttachments(ctx context.Context, page string) ([]Attachment, error) {
	l, err := g.AttachmentProvider.ListAttachments(ctx, page)
	g.list.pass()
	return l, err
}

func TestCachingAttachments_ListRacingPut(t *testing.T) {
	ctx := context.Background()
	inner, _ := newAttachments(t, "")
	gated := &gatedAttachments{AttachmentProvider: inner, list: newGate()}
	c, err := NewCachingAttachmentProvider(gated, Options{}, CachingSettings{Attachments: 100, Lists: 100})
	require.NoError(t, err)
	attach(t, c, "Main", "a.txt", "a", "1")

	gated.list.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.ListAttachments(ctx, "Main")
		assert.NoError(t, err)
	}()

	<-gated.list.reached
	attach(t, c, "Main", "b.txt", "a", "2")
	close(gated.list.release)
	<-done

	list, err := c.ListAttachments(ctx, "Main")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCaching_ProviderInfoOrder(t *testing.T) {
	ctx := context.Background()
	c, _ := newCaching(t, Options{}, CachingSettings{})
	save(t, c, "Main", "a", "x")
	_, err := c.VersionHistory(ctx, "Main")
	require.NoError(t, err)
	_, err = c.VersionHistory(ctx, "Main")
	require.NoError(t, err)

	assert.Contains(t, c.ProviderInfo(), "History cache misses: 1. History cache hits: 1")
}
