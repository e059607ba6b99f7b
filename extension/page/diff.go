// diff.go implements the "wikid diff" command for comparing versions.
//
// Separated from page.go to isolate version range parsing.
//
// Design: Diff compares two versions of one page, or the latest versions of
// two pages. With no range the previous version is compared with the latest.

package page

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/log"
)

func (e *Extension) newDiffCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "diff <page>",
		Short: "Show differences between page versions",
		Long: `Show differences between page versions or two pages.

Examples:
  wikid diff MainPage                  # previous version against latest
  wikid diff MainPage -v 3:5           # version 3 against version 5
  wikid diff MainPage --with Sandbox   # two different pages`,
		Args: cobra.ExactArgs(1),
		RunE: e.runDiff,
	}
	c.Flags().StringP(extension.FlagVersions, "v", "", "Version range (e.g., 3:5)")
	c.Flags().String(extension.FlagWith, "", "Compare with the latest version of this page")
	c.Flags().Bool(extension.FlagRaw, false, "Output without colour")
	c.MarkFlagsMutuallyExclusive(extension.FlagVersions, extension.FlagWith)
	return c
}

func (e *Extension) runDiff(c *cobra.Command, args []string) error {
	verRange, _ := c.Flags().GetString(extension.FlagVersions)
	with, _ := c.Flags().GetString(extension.FlagWith)
	raw, _ := c.Flags().GetBool(extension.FlagRaw)
	name := args[0]

	opts := diff.Options{Page2: with}
	if verRange != "" {
		var err error
		opts.Version1, opts.Version2, err = diff.ParseVersionRange(verRange)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
	}

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}
	colour := !raw && term.IsTerminal(int(os.Stdout.Fd()))

	r, err := diff.Run(c.Context(), w, e.svc, name, opts, colour)

	log.Event("page:diff", "diff").
		Author(cmd.Author()).
		Page(name).
		Target(with).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("diff %q: %w", name, err))
	}
	return cmd.PrintJSON(r)
}
