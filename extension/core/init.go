// init.go implements the "wikid init" command for workspace initialisation.
//
// Separated from extension.go to isolate init-specific logic. Init is special
// because it runs before a workspace exists and creates the database.
//
// Design: Init does NOT create config - that's managed separately via
// "wikid config". This follows git's model where init creates repository
// structure and config is separate. The --local flag keeps page data out of
// git.

package core

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/workspace"
)

func newInitCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialise a new wiki workspace",
		Long: `Creates a .wikid directory holding wikid.db and the default page and
attachment directories, in the current directory or in dir.

  wikid init              # ./.wikid
  wikid init ../handbook  # ../handbook/.wikid
  wikid init --local      # keep pages and database out of git

Use --force to recreate the database of an existing workspace. Pages and
attachments on disk are kept.

Note: init does not create config. Use "wikid config" to set up configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
	c.Flags().BoolP(extension.FlagLocal, "l", false, "Mark page data as local (gitignored)")
	return c
}

func runInit(c *cobra.Command, args []string) error {
	local, _ := c.Flags().GetBool(extension.FlagLocal)
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}

	ws, err := workspace.Init(cmd.Force(), local, dir)

	log.Event("core:init", "init").
		Author(cmd.Author()).
		Detail("dir", ws.Root).
		Detail("local", local).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("init: %w", err))
	}

	if cmd.JSON() {
		return cmd.PrintJSON(map[string]any{"workspace": ws.Root, "local": local})
	}
	fmt.Fprintf(cmd.Out(), "Initialised wikid workspace in %s\n", ws.Root)
	return nil
}
