// history.go implements the "wikid history" command for viewing versions.
//
// Separated from page.go to isolate history display formatting.
//
// Design: History lists every version with author, time and change note,
// newest first. With -d each version is followed by its diff against the
// version before it.

package page

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/history"
	"github.com/jpl-au/wikid/internal/log"
)

func (e *Extension) newHistoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "history <page>",
		Short: "Show page history",
		Long:  `Display version history for a page, newest first.`,
		Args:  cobra.ExactArgs(1),
		RunE:  e.runHistory,
	}
	c.Flags().IntP(extension.FlagLimit, "n", 0, "Limit number of versions shown")
	c.Flags().BoolP(extension.FlagDiff, "d", false, "Show diffs between versions")
	return c
}

func (e *Extension) runHistory(c *cobra.Command, args []string) error {
	ctx := c.Context()
	limit, _ := c.Flags().GetInt(extension.FlagLimit)
	showDiff, _ := c.Flags().GetBool(extension.FlagDiff)
	name := args[0]

	if limit < 0 {
		return cmd.PrintJSONError(fmt.Errorf("limit must be >= 0, got %d", limit))
	}

	opts := history.Options{
		Limit:    limit,
		ShowDiff: showDiff,
		Colour:   term.IsTerminal(int(os.Stdout.Fd())),
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := history.Run(ctx, w, e.svc, name, opts)

	log.Event("page:history", "history").
		Author(cmd.Author()).
		Page(name).
		Detail("count", len(result.Versions)).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("history %q: %w", name, err))
	}
	return cmd.PrintJSON(result.Versions)
}
