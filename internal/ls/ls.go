// Package ls provides page listing with sorting and filtering.
//
// Listing works from page metadata only; no page text is loaded, so long
// listings of large wikis stay cheap on both backends.
package ls

import (
	"cmp"
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// SortField specifies how to sort results.
type SortField string

const (
	SortName SortField = "name"
	SortTime SortField = "time" // newest first
	SortSize SortField = "size" // largest first
)

// Options configures a list operation.
type Options struct {
	Prefix  string    // case-insensitive name prefix
	Since   time.Time // only pages changed after this
	Tree    bool      // display as tree
	Long    bool      // long format with metadata
	Sort    SortField // defaults to name
	Reverse bool
}

// Result contains the outcome of a list operation.
type Result struct {
	Pages []provider.Page `json:"pages"`
}

// Count returns the number of pages in the result.
func (r Result) Count() int { return len(r.Pages) }

// Run lists pages and writes formatted output to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, opts Options) (Result, error) {
	var result Result

	pages, err := svc.List(ctx, service.ListOptions{Prefix: opts.Prefix, Since: opts.Since})
	if err != nil {
		return result, err
	}
	Sort(pages, opts.Sort, opts.Reverse)
	result.Pages = pages

	switch {
	case opts.Tree:
		err = format.Tree(w, pages)
	case opts.Long:
		err = format.Long(w, pages)
	default:
		err = format.List(w, pages)
	}
	return result, err
}

// Sort orders pages by field. Ties fall back to the case-insensitive name
// so output is stable across runs.
func Sort(pages []provider.Page, field SortField, reverse bool) {
	byName := func(a, b provider.Page) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
	var fn func(a, b provider.Page) int
	switch field {
	case SortTime:
		fn = func(a, b provider.Page) int {
			if c := b.LastModified.Compare(a.LastModified); c != 0 {
				return c
			}
			return byName(a, b)
		}
	case SortSize:
		fn = func(a, b provider.Page) int {
			if c := cmp.Compare(b.Size, a.Size); c != 0 {
				return c
			}
			return byName(a, b)
		}
	default:
		fn = byName
	}
	slices.SortStableFunc(pages, fn)
	if reverse {
		slices.Reverse(pages)
	}
}
