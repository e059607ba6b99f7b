// resolver.go implements canonicalisation of page paths and the
// UUID to path caches.
//
// Design: the repository stores paths lower-cased and keeps each segment's
// original spelling as a title. Canonicalising walks the segments of a
// lower-cased fragment and collects titles, trying the uncreated stubs first
// and then real pages. Results are memoised until Clear.

package wikipath

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jpl-au/wikid/internal/cache"
)

// ErrNotFound is returned when no node matches the path or identifier.
var ErrNotFound = errors.New("path not found")

// DefaultCacheSize bounds each of the resolver's caches.
const DefaultCacheSize = 1000

// Tree is the node store the resolver reads. Missing nodes must be reported
// with an error matching ErrNotFound.
type Tree interface {
	// Title returns the stored title of the node at a repository path.
	Title(ctx context.Context, repoPath string) (string, error)
	// UUID returns the identifier of the node at a repository path.
	UUID(ctx context.Context, repoPath string) (string, error)
	// PathOf returns the repository path of the node with identifier id.
	PathOf(ctx context.Context, id string) (string, error)
}

// Resolver maps between WikiPaths, repository paths and node identifiers.
// It is safe for concurrent use.
type Resolver struct {
	tree   Tree
	byUUID *cache.LRU[string]   // uuid -> repository path
	byPath *cache.LRU[string]   // lower-cased repository path -> uuid
	canon  *cache.LRU[WikiPath] // lower-cased fragment -> canonical path
}

// NewResolver returns a resolver over tree with caches of size entries
// (DefaultCacheSize when size is not positive).
func NewResolver(tree Tree, size int) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Resolver{
		tree:   tree,
		byUUID: cache.NewLRU[string](size),
		byPath: cache.NewLRU[string](size),
		canon:  cache.NewLRU[WikiPath](size),
	}
}

// Canonical returns the original-case WikiPath for a fragment of the form
// "space/path" in any case. Uncreated stubs are searched before pages.
func (r *Resolver) Canonical(ctx context.Context, fragment string) (WikiPath, error) {
	key := strings.ToLower(strings.Trim(fragment, "/"))
	if p, ok := r.canon.Get(key); ok {
		return p, nil
	}

	for _, root := range []string{UncreatedRoot, PagesRoot} {
		p, err := r.walk(ctx, root, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return WikiPath{}, err
		}
		r.canon.Put(key, p)
		return p, nil
	}
	return WikiPath{}, fmt.Errorf("canonicalise %q: %w", fragment, ErrNotFound)
}

func (r *Resolver) walk(ctx context.Context, root, key string) (WikiPath, error) {
	segs := strings.Split(key, "/")
	if key == "" || len(segs) == 0 {
		return WikiPath{}, ErrNotFound
	}
	titles := make([]string, 0, len(segs))
	cur := root
	for _, seg := range segs {
		cur += "/" + seg
		t, err := r.tree.Title(ctx, cur)
		if err != nil {
			return WikiPath{}, err
		}
		titles = append(titles, t)
	}
	return New(titles[0], strings.Join(titles[1:], "/")), nil
}

// CanonicalPath canonicalises p, returning p unchanged when no node matches.
func (r *Resolver) CanonicalPath(ctx context.Context, p WikiPath) WikiPath {
	c, err := r.Canonical(ctx, strings.ToLower(p.space+"/"+p.path))
	if err != nil {
		return p
	}
	return c
}

// UUID returns the identifier of the page p.
func (r *Resolver) UUID(ctx context.Context, p WikiPath) (string, error) {
	rp := strings.ToLower(p.RepoPath())
	if id, ok := r.byPath.Get(rp); ok {
		return id, nil
	}
	id, err := r.tree.UUID(ctx, rp)
	if err != nil {
		return "", fmt.Errorf("uuid of %s: %w", p, err)
	}
	r.remember(id, rp)
	return id, nil
}

// PathOf returns the canonical WikiPath of the node with identifier id.
func (r *Resolver) PathOf(ctx context.Context, id string) (WikiPath, error) {
	rp, ok := r.byUUID.Get(id)
	if !ok {
		var err error
		if rp, err = r.tree.PathOf(ctx, id); err != nil {
			return WikiPath{}, fmt.Errorf("path of %s: %w", id, err)
		}
		rp = strings.ToLower(rp)
		r.remember(id, rp)
	}
	frag, ok := Fragment(rp)
	if !ok {
		return WikiPath{}, fmt.Errorf("path of %s: %q is outside the page subtrees", id, rp)
	}
	return r.Canonical(ctx, frag)
}

func (r *Resolver) remember(id, rp string) {
	r.byUUID.Put(id, rp)
	r.byPath.Put(rp, id)
}

// Clear drops every cached mapping. Callers clear after moves and deletes.
func (r *Resolver) Clear() {
	r.byUUID.Purge()
	r.byPath.Purge()
	r.canon.Purge()
}
