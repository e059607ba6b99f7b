// Package glob provides glob pattern matching for page names.
//
// Extends path.Match with ** for any number of sub-page segments, so
// "Project/**" matches every page below Project however deeply nested.
// Page names are case-insensitive and so is matching.
package glob

import (
	"path"
	"strings"
)

// Match reports whether name matches pattern. Supports *, ? and character
// classes per segment plus ** across segments. A pattern without "/" also
// matches the last segment of a sub-page name. Returns an error if the
// pattern is malformed.
func Match(pattern, name string) (bool, error) {
	pattern = strings.ToLower(pattern)
	name = strings.ToLower(name)

	if prefix, suffix, ok := strings.Cut(pattern, "**"); ok {
		prefix = strings.TrimSuffix(prefix, "/")
		suffix = strings.TrimPrefix(suffix, "/")

		rest := name
		if prefix != "" {
			m, err := matchPrefix(prefix, name)
			if err != nil || m < 0 {
				return false, err
			}
			rest = strings.TrimPrefix(name[m:], "/")
		}
		if suffix == "" {
			return true, nil
		}
		segments := strings.Split(rest, "/")
		for i := range segments {
			ok, err := path.Match(suffix, strings.Join(segments[i:], "/"))
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}

	matched, err := path.Match(pattern, name)
	if err != nil || matched || strings.Contains(pattern, "/") {
		return matched, err
	}
	return path.Match(pattern, path.Base(name))
}

// matchPrefix matches the leading segments of name against prefix and
// returns the byte offset where they end, or -1.
func matchPrefix(prefix, name string) (int, error) {
	want := strings.Count(prefix, "/") + 1
	segments := strings.SplitN(name, "/", want+1)
	if len(segments) < want {
		return -1, nil
	}
	head := strings.Join(segments[:want], "/")
	ok, err := path.Match(prefix, head)
	if err != nil || !ok {
		return -1, err
	}
	return len(head), nil
}

// Filter returns the names matching pattern, in order. An empty pattern
// matches everything.
func Filter(pattern string, names []string) ([]string, error) {
	out := []string{}
	for _, n := range names {
		if pattern == "" {
			out = append(out, n)
			continue
		}
		ok, err := Match(pattern, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}
