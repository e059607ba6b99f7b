// Package search provides page discovery and content searching.
// Registers commands: find, grep, glob, reindex; and the wiki_search and
// wiki_grep MCP tools.
//
// The extension owns the full-text index. It creates the page_search table
// in the workspace database on Init and keeps it current from page events.
package search

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/find"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the search extension.
type Extension struct {
	svc service.Service
	ix  *find.Index
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.EventHandler  = (*Extension)(nil)
)

// Name returns "search".
func (e *Extension) Name() string { return "search" }

// Init opens the full-text index, building it on first use.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	ix, err := find.Open(context.Background(), ctx.DB(), e.svc)
	if err != nil {
		return fmt.Errorf("open search index: %w", err)
	}
	e.ix = ix
	return nil
}

// Commands returns find, grep, glob and reindex.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newFindCmd(),
		e.newGrepCmd(),
		e.newGlobCmd(),
		e.newReindexCmd(),
	}
}

// HandleEvent keeps the index in step with page changes. Saves carry the
// new text; deletes and renames re-read what is left.
func (e *Extension) HandleEvent(ctx extension.Context, ev extension.Event) error {
	if e.ix == nil {
		return nil
	}
	bg := context.Background()
	src := ctx.Service()

	var err error
	switch ev := ev.(type) {
	case extension.PageSavedEvent:
		err = e.ix.Put(bg, ev.Page, ev.Text)
	case extension.PageDeletedEvent:
		if ev.Version == 0 {
			err = e.ix.Remove(bg, ev.Page)
		} else {
			err = e.ix.Refresh(bg, src, ev.Page)
		}
	case extension.PageRenamedEvent:
		if err = e.ix.Remove(bg, ev.From); err == nil {
			err = e.ix.Refresh(bg, src, ev.To)
		}
	}
	return err
}
