// Package wikipath names pages in the hierarchical store. A WikiPath is a
// space plus a slash-separated path ("Main:Projects/Wikid"). Comparison is
// case-insensitive over the string form, so "main:projects/wikid" names the
// same page; the original case is recovered by a [Resolver].
package wikipath

import (
	"cmp"
	"fmt"
	"path"
	"strings"
)

// DefaultSpace is used by ValueOf when a name carries no space prefix.
const DefaultSpace = "Main"

// Repository subtrees holding real pages and stubs for pages that are
// referenced but not yet created.
const (
	PagesRoot     = "/pages"
	UncreatedRoot = "/wiki:uncreated"
)

// WikiPath identifies a page by space and path. The zero value is not a
// valid page.
type WikiPath struct {
	space string
	path  string
}

// New returns the path in space. Leading and trailing slashes of p are
// dropped.
func New(space, p string) WikiPath {
	return WikiPath{space: strings.TrimSpace(space), path: cleanPath(p)}
}

func cleanPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Parse splits s at its first colon into space and path. Without a colon the
// whole string is the path in defaultSpace.
func Parse(s, defaultSpace string) WikiPath {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return New(s[:i], s[i+1:])
	}
	return New(defaultSpace, s)
}

// ValueOf parses s with DefaultSpace.
func ValueOf(s string) WikiPath {
	return Parse(s, DefaultSpace)
}

// Space returns the space name.
func (p WikiPath) Space() string { return p.space }

// Path returns the path within the space.
func (p WikiPath) Path() string { return p.path }

// Name returns the last path segment.
func (p WikiPath) Name() string {
	if i := strings.LastIndexByte(p.path, '/'); i >= 0 {
		return p.path[i+1:]
	}
	return p.path
}

// IsZero reports whether p names nothing.
func (p WikiPath) IsZero() bool {
	return p.path == ""
}

// Parent returns the enclosing page, and false for a top-level page.
func (p WikiPath) Parent() (WikiPath, bool) {
	i := strings.LastIndexByte(p.path, '/')
	if i < 0 {
		return WikiPath{}, false
	}
	return WikiPath{space: p.space, path: p.path[:i]}, true
}

// Child returns the page named name beneath p.
func (p WikiPath) Child(name string) WikiPath {
	return New(p.space, p.path+"/"+name)
}

// String returns "space:path".
func (p WikiPath) String() string {
	return p.space + ":" + p.path
}

// Key is the case-folded string form used for maps and comparisons.
func (p WikiPath) Key() string {
	return strings.ToLower(p.String())
}

// Equal compares case-insensitively.
func (p WikiPath) Equal(o WikiPath) bool {
	return strings.EqualFold(p.String(), o.String())
}

// EqualString compares p with a name parsed in p's space.
func (p WikiPath) EqualString(s string) bool {
	return p.Equal(Parse(s, p.space))
}

// Compare orders paths case-insensitively.
func (p WikiPath) Compare(o WikiPath) int {
	return cmp.Compare(p.Key(), o.Key())
}

// MarshalText implements encoding.TextMarshaler.
func (p WikiPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *WikiPath) UnmarshalText(b []byte) error {
	*p = ValueOf(string(b))
	return nil
}

// RepoPath is the location of p under the pages subtree.
func (p WikiPath) RepoPath() string {
	return under(PagesRoot, p)
}

// UncreatedPath is the location of p's stub under the uncreated subtree.
func (p WikiPath) UncreatedPath() string {
	return under(UncreatedRoot, p)
}

func under(root string, p WikiPath) string {
	if p.path == "" {
		return root + "/" + p.space
	}
	return root + "/" + p.space + "/" + p.path
}

// FromRepoPath recovers the WikiPath stored at a repository path under
// either subtree. Case is taken from rp as given.
func FromRepoPath(rp string) (WikiPath, error) {
	rel, ok := Fragment(rp)
	if !ok {
		return WikiPath{}, fmt.Errorf("%q is outside the page subtrees", rp)
	}
	space, p, _ := strings.Cut(rel, "/")
	if space == "" {
		return WikiPath{}, fmt.Errorf("%q has no space", rp)
	}
	return New(space, p), nil
}

// Fragment strips the subtree root from a repository path, returning the
// "space/path" remainder.
func Fragment(rp string) (string, bool) {
	for _, root := range []string{PagesRoot, UncreatedRoot} {
		if len(rp) > len(root) && strings.EqualFold(rp[:len(root)], root) && rp[len(root)] == '/' {
			return rp[len(root)+1:], true
		}
	}
	return "", false
}
