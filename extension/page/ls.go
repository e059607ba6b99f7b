// ls.go implements the "wikid ls" command for listing pages.
//
// Separated from page.go to isolate listing and tree-formatting logic.
//
// Design: Ls mimics Unix ls. The -t flag shows sub-pages as a tree, -l
// shows version, size and author columns.

package page

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/duration"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/ls"
)

func (e *Extension) newLsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List pages",
		Long: `List pages, optionally filtered by a case-insensitive name prefix.

  wikid ls                 # every page
  wikid ls -l --sort time  # newest first with metadata
  wikid ls --since 7d      # changed in the last week
  wikid ls -t Project      # Project and its sub-pages as a tree`,
		Args: cobra.MaximumNArgs(1),
		RunE: e.runLs,
	}
	c.Flags().BoolP(extension.FlagTree, "t", false, "Display as tree")
	c.Flags().BoolP(extension.FlagLong, "l", false, "Long format with metadata")
	c.Flags().StringP(extension.FlagSort, "s", "", "Sort by: name, time, size")
	c.Flags().BoolP(extension.FlagReverse, "R", false, "Reverse sort order")
	c.Flags().String(extension.FlagSince, "", "Only pages changed within this duration (e.g., 7d, 12h)")
	return c
}

func (e *Extension) runLs(c *cobra.Command, args []string) error {
	ctx := c.Context()
	opts := ls.Options{}
	if len(args) > 0 {
		opts.Prefix = args[0]
	}
	opts.Tree, _ = c.Flags().GetBool(extension.FlagTree)
	opts.Long, _ = c.Flags().GetBool(extension.FlagLong)
	opts.Reverse, _ = c.Flags().GetBool(extension.FlagReverse)

	sortBy, _ := c.Flags().GetString(extension.FlagSort)
	switch ls.SortField(sortBy) {
	case "", ls.SortName, ls.SortTime, ls.SortSize:
	default:
		return cmd.PrintJSONError(fmt.Errorf("invalid sort field %q: must be name, time or size", sortBy))
	}
	opts.Sort = ls.SortField(sortBy)

	if since, _ := c.Flags().GetString(extension.FlagSince); since != "" {
		d, err := duration.Parse(since)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
		opts.Since = time.Now().Add(-d)
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := ls.Run(ctx, w, e.svc, opts)

	log.Event("page:ls", "list").
		Author(cmd.Author()).
		Page(opts.Prefix).
		Detail("count", result.Count()).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("ls %q: %w", opts.Prefix, err))
	}
	return cmd.PrintJSON(result)
}
