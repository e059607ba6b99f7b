// caching_attachment.go implements the caching attachment store decorator.
//
// Two caches: per-page attachment lists (the collection cache) and latest
// attachment info keyed by "page/file" (the item cache). Attachment bytes
// are never cached. Both caches share a write generation per page, as the
// page decorator does, so a list or info load that races a write is not
// stored.

package provider

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jpl-au/wikid/internal/cache"
	"github.com/jpl-au/wikid/internal/log"
)

// CachingAttachmentProvider wraps an AttachmentProvider with bounded caches.
type CachingAttachmentProvider struct {
	inner AttachmentProvider

	mu sync.Mutex

	lists cache.Cache[[]Attachment]
	atts  cache.Cache[*Attachment]

	listStats *cache.Counter
	attStats  *cache.Counter

	// gotAll is set once every page's list has been loaded by
	// ListAllChanged. Any write clears it.
	gens   generations
	gotAll atomic.Bool
	group  singleflight.Group
}

var _ AttachmentProvider = (*CachingAttachmentProvider)(nil)

// NewCachingAttachmentProvider wraps inner using the cache backend in opts.
func NewCachingAttachmentProvider(inner AttachmentProvider, opts Options, s CachingSettings) (*CachingAttachmentProvider, error) {
	lists, err := cache.New[[]Attachment](opts.Caches, "attachment-lists", s.Lists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	atts, err := cache.New[*Attachment](opts.Caches, "attachments", s.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return &CachingAttachmentProvider{
		inner:     inner,
		lists:     lists,
		atts:      atts,
		listStats: opts.Caches.Counter("attachment-lists"),
		attStats:  opts.Caches.Counter("attachments"),
	}, nil
}

// Inner returns the wrapped store.
func (c *CachingAttachmentProvider) Inner() AttachmentProvider { return c.inner }

func (c *CachingAttachmentProvider) allLoaded() bool {
	return c.gotAll.Load() && c.lists.Len() < c.lists.Capacity()
}

func (c *CachingAttachmentProvider) PutAttachmentData(ctx context.Context, att *Attachment, r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.PutAttachmentData(ctx, att, r); err != nil {
		return err
	}
	c.invalidate(att.Page, att.FileName)
	return nil
}

// AttachmentData always reads from the wrapped store.
func (c *CachingAttachmentProvider) AttachmentData(ctx context.Context, att *Attachment) (io.ReadCloser, error) {
	return c.inner.AttachmentData(ctx, att)
}

func (c *CachingAttachmentProvider) ListAttachments(ctx context.Context, page string) ([]Attachment, error) {
	if l, ok := c.lists.Get(page); ok {
		c.listStats.Hit()
		return cloneAttachments(l), nil
	}
	if c.allLoaded() {
		c.listStats.Hit()
		return nil, nil
	}
	c.listStats.Miss()
	gen := c.gens.get(page)
	v, err, _ := c.group.Do(flightKey("list", page, gen), func() (any, error) {
		l, err := c.inner.ListAttachments(ctx, page)
		if err != nil {
			return nil, err
		}
		c.gens.storeIf(page, gen, func() { c.lists.Put(page, l) })
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAttachments(v.([]Attachment)), nil
}

// ListAllChanged loads every attachment once and then filters the cached
// set by since. When there are more attachments than the item cache can
// hold each call goes to the wrapped store.
func (c *CachingAttachmentProvider) ListAllChanged(ctx context.Context, since time.Time) ([]Attachment, error) {
	if c.allLoaded() {
		var all []Attachment
		for _, page := range c.lists.Keys() {
			l, _ := c.lists.Get(page)
			all = append(all, l...)
		}
		if c.allLoaded() {
			return changedAttachments(all, since), nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.inner.ListAllChanged(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(all) >= c.atts.Capacity() {
		log.Event("provider:caching", "all-attachments").
			Detail("attachments", fmt.Sprint(len(all))).
			Warn(fmt.Errorf("attachment cache holds %d entries but the wiki has %d attachments; increase cache.attachments", c.atts.Capacity(), len(all)))
		return changedAttachments(all, since), nil
	}

	byPage := make(map[string][]Attachment)
	for _, a := range all {
		byPage[a.Page] = append(byPage[a.Page], a)
	}
	c.lists.Purge()
	for page, l := range byPage {
		sort.Slice(l, func(i, j int) bool { return l[i].FileName < l[j].FileName })
		c.lists.Put(page, l)
	}
	c.gotAll.Store(c.lists.Len() < c.lists.Capacity())
	return changedAttachments(all, since), nil
}

func changedAttachments(all []Attachment, since time.Time) []Attachment {
	var out []Attachment
	for _, a := range all {
		if a.LastModified.After(since) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out
}

func (c *CachingAttachmentProvider) AttachmentInfo(ctx context.Context, page, file string, version int) (*Attachment, error) {
	if version != Latest {
		return c.inner.AttachmentInfo(ctx, page, file, version)
	}
	key := page + "/" + file
	if a, ok := c.atts.Get(key); ok && a != nil {
		c.attStats.Hit()
		c2 := *a
		return &c2, nil
	}
	c.attStats.Miss()
	gen := c.gens.get(page)
	v, err, _ := c.group.Do(flightKey("info", key, gen), func() (any, error) {
		a, err := c.inner.AttachmentInfo(ctx, page, file, Latest)
		if err != nil {
			return nil, err
		}
		c.gens.storeIf(page, gen, func() { c.atts.Put(key, a) })
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	a := *v.(*Attachment)
	return &a, nil
}

func (c *CachingAttachmentProvider) VersionHistory(ctx context.Context, att *Attachment) ([]Attachment, error) {
	return c.inner.VersionHistory(ctx, att)
}

func (c *CachingAttachmentProvider) DeleteVersion(ctx context.Context, att *Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.DeleteVersion(ctx, att); err != nil {
		return err
	}
	c.invalidate(att.Page, att.FileName)
	return nil
}

func (c *CachingAttachmentProvider) DeleteAttachment(ctx context.Context, att *Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.DeleteAttachment(ctx, att); err != nil {
		return err
	}
	c.invalidate(att.Page, att.FileName)
	return nil
}

func (c *CachingAttachmentProvider) MoveAttachmentsForPage(ctx context.Context, oldPage, newPage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.inner.MoveAttachmentsForPage(ctx, oldPage, newPage); err != nil {
		return err
	}
	c.gens.bump(oldPage, newPage)
	c.gotAll.Store(false)
	c.lists.Remove(oldPage)
	c.lists.Remove(newPage)
	for _, key := range c.atts.Keys() {
		if strings.HasPrefix(key, oldPage+"/") || strings.HasPrefix(key, newPage+"/") {
			c.atts.Remove(key)
		}
	}
	return nil
}

// invalidate drops cached state for one attachment and its page list.
func (c *CachingAttachmentProvider) invalidate(page, file string) {
	c.gens.bump(page)
	c.gotAll.Store(false)
	c.lists.Remove(page)
	c.atts.Remove(page + "/" + file)
}

func cloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}

func (c *CachingAttachmentProvider) ProviderInfo() string {
	l, a := c.listStats.Stats(), c.attStats.Stats()
	return fmt.Sprintf("Real provider: %s. List cache misses: %d. List cache hits: %d. Attachment cache misses: %d. Attachment cache hits: %d",
		c.inner.ProviderInfo(), l.Misses, l.Hits, a.Misses, a.Hits)
}
