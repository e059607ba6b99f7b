// cat.go implements the "wikid cat" command for reading page text.
//
// Separated from page.go to isolate output formatting logic including
// line numbering, line range extraction, and terminal rendering with glamour.
//
// Design: Terminal output gets glamour rendering; pipe/redirect gets raw
// text. The -l flag uses colon syntax (10:20) matching sed/awk conventions.

package page

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/cat"
	"github.com/jpl-au/wikid/internal/log"
)

func (e *Extension) newCatCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cat <page>",
		Short: "Read a page",
		Long:  `Output the text of a page to stdout.`,
		Args:  cobra.ExactArgs(1),
		RunE:  e.runCat,
	}
	c.Flags().IntP(extension.FlagVersion, "v", 0, "Read specific version")
	c.Flags().BoolP(extension.FlagNumber, "n", false, "Number all output lines")
	c.Flags().StringP(extension.FlagLines, "l", "", "Line range (e.g., 10:20, 5:, :15)")
	c.Flags().Bool(extension.FlagRaw, false, "Output raw text without rendering")
	return c
}

func (e *Extension) runCat(c *cobra.Command, args []string) error {
	ctx := c.Context()
	ver, _ := c.Flags().GetInt(extension.FlagVersion)
	lineNums, _ := c.Flags().GetBool(extension.FlagNumber)
	lineRange, _ := c.Flags().GetString(extension.FlagLines)
	raw, _ := c.Flags().GetBool(extension.FlagRaw)

	opts := cat.Options{Version: ver, LineNumbers: lineNums}
	if lineRange != "" {
		start, end, err := cat.ParseLineRange(lineRange)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
		opts.StartLine = start
		opts.EndLine = end
	}

	name := args[0]
	var result cat.Result
	var err error

	defer func() {
		b := log.Event("page:cat", "read").Author(cmd.Author()).Page(name)
		if result.Page != nil {
			b = b.Version(result.Page.Version)
		}
		b.Write(err)
	}()

	if cmd.JSON() {
		result, err = cat.Run(ctx, io.Discard, e.svc, name, opts)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("cat %q: %w", name, err))
		}
		return cmd.PrintJSON(result)
	}

	if !raw && !lineNums && term.IsTerminal(int(os.Stdout.Fd())) {
		var buf bytes.Buffer
		result, err = cat.Run(ctx, &buf, e.svc, name, opts)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("cat %q: %w", name, err))
		}
		rendered, renderErr := glamour.Render(buf.String(), "dark")
		if renderErr == nil {
			fmt.Fprint(cmd.Out(), rendered)
			return nil
		}
		fmt.Fprint(cmd.Out(), buf.String())
		return nil
	}

	result, err = cat.Run(ctx, cmd.Out(), e.svc, name, opts)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("cat %q: %w", name, err))
	}
	return nil
}
