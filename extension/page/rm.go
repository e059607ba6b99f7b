// rm.go implements the "wikid rm" command for deleting pages.
//
// Separated from page.go to isolate version selection.
//
// Design: Deletion is permanent. --version removes one version and keeps
// the rest of the history; removing the only version removes the page.

package page

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/rm"
)

func (e *Extension) newRmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "rm <page>",
		Short: "Delete a page",
		Long: `Delete a page with its history and attachments, or one version of it.

  wikid rm Sandbox               # whole page
  wikid rm Sandbox --version 3   # only version 3`,
		Args: cobra.ExactArgs(1),
		RunE: e.runRm,
	}
	c.Flags().Int(extension.FlagVersion, 0, "Delete only this version")
	return c
}

func (e *Extension) runRm(c *cobra.Command, args []string) error {
	version, _ := c.Flags().GetInt(extension.FlagVersion)
	if version < 0 {
		return cmd.PrintJSONError(fmt.Errorf("version must be >= 0, got %d", version))
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := rm.Run(c.Context(), w, e.svc, args[0], rm.Options{Version: version})
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("rm %q: %w", args[0], err))
	}
	return cmd.PrintJSON(result)
}
