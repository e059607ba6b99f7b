// share.go implements the "wikid share" command for local/shared status.
//
// Separated from extension.go to isolate .gitignore manipulation.
//
// Design: Share is a NoStoreCommand because it only edits .wikid/.gitignore
// and never opens the database, so it works while a server holds it.

package core

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/workspace"
)

func newShareCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "share",
		Short: "Show or change whether page data is committed",
		Long: `Show or change whether the workspace's pages, attachments and database
are committed to git.

  wikid share            # show status
  wikid share --local    # keep page data out of git
  wikid share --shared   # commit page data

Configuration and caches are never committed.`,
		Args: cobra.NoArgs,
		RunE: runShare,
	}
	c.Flags().BoolP(extension.FlagLocal, "l", false, "Mark page data as local")
	c.Flags().BoolP(extension.FlagShared, "s", false, "Mark page data as shared")
	c.MarkFlagsMutuallyExclusive(extension.FlagLocal, extension.FlagShared)
	return c
}

func runShare(c *cobra.Command, _ []string) error {
	local, _ := c.Flags().GetBool(extension.FlagLocal)
	shared, _ := c.Flags().GetBool(extension.FlagShared)

	ws, err := workspace.Discover()
	if err != nil {
		return cmd.PrintJSONError(err)
	}

	action := "status"
	switch {
	case local:
		action = "ignore"
		for _, e := range workspace.LocalEntries {
			if err = workspace.Ignore(e, ws.Root); err != nil {
				break
			}
		}
	case shared:
		action = "unignore"
		for _, e := range workspace.LocalEntries {
			if err = workspace.Unignore(e, ws.Root); err != nil {
				break
			}
		}
	}

	log.Event("core:share", action).Author(cmd.Author()).Write(err)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("share %s: %w", action, err))
	}

	status := "shared"
	if ws.IsLocal() {
		status = "local"
	}
	if cmd.JSON() {
		return cmd.PrintJSON(map[string]string{"workspace": ws.Root, "status": status})
	}
	fmt.Fprintf(cmd.Out(), "%s: %s\n", ws.Root, status)
	return nil
}
