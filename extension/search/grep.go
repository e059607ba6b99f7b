// grep.go implements the "wikid grep" command for regex content searching.
//
// Separated from search.go to isolate regex-specific logic. Unlike the
// full-text index, grep scans every page with Go's regexp package, giving
// exact matches and patterns that tokenised search cannot express.

package search

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/grep"
	"github.com/jpl-au/wikid/internal/log"
)

func (e *Extension) newGrepCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "grep <pattern> [prefix]",
		Short: "Search pages using regex",
		Long: `Search the latest version of pages using regular expressions, like
Unix grep.

  wikid grep "TODO"              # search every page
  wikid grep "error|warn" Ops/   # only pages under Ops/
  wikid grep -i "auth.*token"    # case-insensitive
  wikid grep -l "\[Meeting"      # list matching page names only

For ranked full-text search, use 'wikid find' instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runGrep,
	}
	c.Flags().BoolP(extension.FlagFilesWithMatches, "l", false, "Only output names of matching pages")
	c.Flags().BoolP(extension.FlagIgnoreCase, "i", false, "Ignore case distinctions")
	c.Flags().BoolP(extension.FlagInvertMatch, "v", false, "Select non-matching lines")
	c.Flags().BoolP(extension.FlagCount, "c", false, "Only print the count of matches per page")
	c.Flags().IntP(extension.FlagContext, "C", 0, "Print N lines of context around matches")
	return c
}

func (e *Extension) runGrep(c *cobra.Command, args []string) error {
	ctx := c.Context()
	pattern := args[0]
	opts := grep.Options{}
	if len(args) > 1 {
		opts.Prefix = args[1]
	}
	opts.NamesOnly, _ = c.Flags().GetBool(extension.FlagFilesWithMatches)
	opts.IgnoreCase, _ = c.Flags().GetBool(extension.FlagIgnoreCase)
	opts.Invert, _ = c.Flags().GetBool(extension.FlagInvertMatch)
	opts.CountOnly, _ = c.Flags().GetBool(extension.FlagCount)
	opts.Context, _ = c.Flags().GetInt(extension.FlagContext)

	if opts.Context < 0 {
		return cmd.PrintJSONError(fmt.Errorf("context lines (-C) must be >= 0, got %d", opts.Context))
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := grep.Run(ctx, w, e.svc, pattern, opts)

	log.Event("search:grep", "search").
		Author(cmd.Author()).
		Page(opts.Prefix).
		Detail("pattern", pattern).
		Detail("count", len(result.Hits)).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("grep %q: %w", pattern, err))
	}
	return cmd.PrintJSON(result)
}
