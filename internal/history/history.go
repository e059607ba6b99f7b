// Package history provides page version history with optional diffs.
//
// Every save creates a new version; the diff view shows what each version
// changed, newest first.
package history

import (
	"context"
	"fmt"
	"io"

	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// Options configures a history operation.
type Options struct {
	Limit    int  // maximum versions to return (0 = all)
	ShowDiff bool // show diffs between versions
	Colour   bool // colourise diff output
}

// Result contains the outcome of a history operation.
type Result struct {
	Versions []provider.Page `json:"versions"`
}

// Run retrieves a page's history and writes output to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, name string, opts Options) (Result, error) {
	var result Result

	versions, err := svc.History(ctx, name)
	if err != nil {
		return result, err
	}
	if len(versions) == 0 {
		return result, fmt.Errorf("no history found for %s", name)
	}
	if opts.Limit > 0 && len(versions) > opts.Limit {
		versions = versions[:opts.Limit]
	}
	result.Versions = versions

	if !opts.ShowDiff {
		return result, format.History(w, versions)
	}

	texts := make([]string, len(versions))
	for i, v := range versions {
		if texts[i], err = svc.Text(ctx, name, v.Version); err != nil {
			return result, fmt.Errorf("read %s v%d: %w", name, v.Version, err)
		}
	}
	return result, format.HistoryDiff(w, versions, texts, opts.Colour)
}
