// revert.go implements the "wikid revert" command for version rollback.
//
// Design: Revert is forward-moving - it saves the old text as a new version
// rather than deleting newer versions, so the revert itself is in history.

package page

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/internal/revert"
)

func (e *Extension) newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <page> <version>",
		Short: "Revert a page to a previous version",
		Long: `Save the text and attributes of an old version as the newest version.

  wikid revert MainPage 3
  wikid revert MainPage 3 -m "Undo vandalism"`,
		Args: cobra.ExactArgs(2),
		RunE: e.runRevert,
	}
}

func (e *Extension) runRevert(c *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[1])
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("invalid version %q: must be a number", args[1]))
	}
	if version < 1 {
		return cmd.PrintJSONError(fmt.Errorf("version must be >= 1, got %d", version))
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := revert.Run(c.Context(), w, e.svc, args[0], version, revert.Options{
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
	})
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	return cmd.PrintJSON(result)
}
