// info.go implements the "wikid info" command for page metadata.

package page

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/provider"
)

func (e *Extension) newInfoCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "info <page>",
		Short: "Show page metadata",
		Long:  `Show the version, author, change note, size and attributes of a page.`,
		Args:  cobra.ExactArgs(1),
		RunE:  e.runInfo,
	}
	c.Flags().IntP(extension.FlagVersion, "v", 0, "Show a specific version")
	return c
}

func (e *Extension) runInfo(c *cobra.Command, args []string) error {
	ver, _ := c.Flags().GetInt(extension.FlagVersion)
	if ver == 0 {
		ver = provider.Latest
	}

	p, err := e.svc.Info(c.Context(), args[0], ver)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("info %q: %w", args[0], err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(p)
	}
	return format.Info(cmd.Out(), p)
}
