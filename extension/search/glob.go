// glob.go implements the "wikid glob" command for page name patterns.
//
// Separated from search.go because glob looks only at names, never at
// page text.

package search

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/glob"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/service"
)

func (e *Extension) newGlobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "glob [pattern]",
		Short: "List page names matching a pattern",
		Long: `List page names matching a glob pattern, case-insensitively.

Supports *, ? and [classes] within a name segment, and ** across
sub-page segments. A pattern without "/" also matches the last segment of
a sub-page.

  wikid glob                # every page
  wikid glob "Meeting*"     # Meeting2024, Team/Meeting1, ...
  wikid glob "Project/*"    # direct sub-pages of Project
  wikid glob "Project/**"   # every page below Project`,
		Args: cobra.MaximumNArgs(1),
		RunE: e.runGlob,
	}
}

func (e *Extension) runGlob(c *cobra.Command, args []string) error {
	ctx := c.Context()
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}

	l := log.Event("search:glob", "list").
		Author(cmd.Author()).
		Detail("pattern", pattern)

	pages, err := e.svc.List(ctx, service.ListOptions{})
	var names []string
	if err == nil {
		all := make([]string, len(pages))
		for i, p := range pages {
			all[i] = p.Name
		}
		names, err = glob.Filter(pattern, all)
	}
	if err != nil {
		l.Write(err)
		return cmd.PrintJSONError(fmt.Errorf("glob %q: %w", pattern, err))
	}
	l.Detail("count", len(names)).Write(nil)

	if !cmd.JSON() {
		if err := format.Names(cmd.Out(), names); err != nil {
			return err
		}
	}
	return cmd.PrintJSON(names)
}
