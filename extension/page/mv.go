// mv.go implements the "wikid mv" command for renaming pages.
//
// Separated from page.go to isolate rename output.
//
// Design: Mv keeps history and attachments under the new name and saves a
// new version of every page that linked to the old one, so no link is left
// dangling.

package page

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
)

func (e *Extension) newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <page> <new-name>",
		Short: "Rename a page",
		Long: `Rename a page with its history, attachments and sub-pages, then
rewrite links to it in every referring page.`,
		Args: cobra.ExactArgs(2),
		RunE: e.runMv,
	}
}

func (e *Extension) runMv(c *cobra.Command, args []string) error {
	from, to := args[0], args[1]

	result, err := e.svc.Rename(c.Context(), from, to, cmd.Author())
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("mv %q to %q: %w", from, to, err))
	}

	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Renamed %s -> %s\n", result.From, result.To)
		if len(result.Rewritten) > 0 {
			fmt.Fprintf(cmd.Out(), "Updated links in %s\n", strings.Join(result.Rewritten, ", "))
		}
	}
	return cmd.PrintJSON(result)
}
