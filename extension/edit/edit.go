// Package edit provides the edit extension for partial page changes.
// Registers commands: edit, sed.
//
// Both commands read the latest version, rewrite part of it and save the
// result as a new version under the caller's name.
package edit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/edit"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/sed"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the edit extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "edit".
func (e *Extension) Name() string { return "edit" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns edit and sed.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newEditCmd(),
		e.newSedCmd(),
	}
}

// MCPTools returns nil.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

func (e *Extension) newEditCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "edit <page> [old] [new]",
		Short: "Partial edit via search/replace or line range",
		Long: `Edit a page by replacing text or lines. The result is saved as a
new version.

Search/replace mode (positional or flags):
  wikid edit MainPage "old text" "new text"
  wikid edit MainPage --old "old text" --new "new text"
  wikid edit MainPage -i "OLD TEXT" "new text"  # case-insensitive

Line range mode (replaces lines with stdin or a file):
  wikid edit MainPage -l 5:10 <<< "replacement"
  wikid edit MainPage -l 5: -f tail.txt`,
		Args: cobra.RangeArgs(1, 3),
		RunE: e.runEdit,
	}
	c.Flags().String(extension.FlagOld, "", "Text to find")
	c.Flags().String(extension.FlagNew, "", "Text to replace with")
	c.Flags().StringP(extension.FlagLines, "l", "", "Line range (e.g., 5:10)")
	c.Flags().StringP(extension.FlagFile, "f", "", "Read line-range replacement from file")
	c.Flags().BoolP(extension.FlagIgnoreCase, "i", false, "Case-insensitive matching")
	return c
}

func (e *Extension) runEdit(c *cobra.Command, args []string) error {
	ctx := c.Context()
	name := args[0]
	lineRange, _ := c.Flags().GetString(extension.FlagLines)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	var result edit.Result
	var err error
	if lineRange != "" {
		file, _ := c.Flags().GetString(extension.FlagFile)
		result, err = e.editLines(ctx, w, name, lineRange, file)
	} else {
		result, err = e.editReplace(ctx, w, c, args)
	}

	log.Event("edit:edit", "edit").
		Author(cmd.Author()).
		Page(name).
		Version(result.Version).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("edit %q: %w", name, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) editLines(ctx context.Context, w io.Writer, name, lineRange, file string) (edit.Result, error) {
	start, end, err := edit.ParseLineRange(lineRange)
	if err != nil {
		return edit.Result{Page: name}, err
	}

	var replacement []byte
	if file != "" {
		replacement, err = os.ReadFile(file)
	} else {
		replacement, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return edit.Result{Page: name}, fmt.Errorf("read replacement: %w", err)
	}

	return edit.RunLineRange(ctx, w, e.svc, name, string(replacement), edit.LineRangeOptions{
		Start:      start,
		End:        end,
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
	})
}

func (e *Extension) editReplace(ctx context.Context, w io.Writer, c *cobra.Command, args []string) (edit.Result, error) {
	old, _ := c.Flags().GetString(extension.FlagOld)
	newStr, _ := c.Flags().GetString(extension.FlagNew)
	ignoreCase, _ := c.Flags().GetBool(extension.FlagIgnoreCase)
	if len(args) >= 3 {
		old, newStr = args[1], args[2]
	}
	if old == "" {
		return edit.Result{Page: args[0]}, errors.New("old text is required (use positional args or --old)")
	}

	return edit.Run(ctx, w, e.svc, args[0], edit.Options{
		Old:             old,
		New:             newStr,
		CaseInsensitive: ignoreCase,
		Author:          cmd.Author(),
		ChangeNote:      cmd.Message(),
	})
}

func (e *Extension) newSedCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "sed -i <expression> <page>",
		Short: "Stream editor for pages",
		Long: `Edit pages using sed-style substitution syntax.

  wikid sed -i 's/old/new/' MainPage
  wikid sed -i 's/old/new/g' MainPage   # replace all occurrences
  wikid sed -i 's|old|new|' MainPage    # alternate delimiter

The -i flag (in-place) is required, matching sed behaviour.
Only substitution (s) commands are supported.`,
		Args: cobra.ExactArgs(2),
		RunE: e.runSed,
	}
	c.Flags().BoolP(extension.FlagInPlace, "i", false, "Edit page in place (required)")
	return c
}

func (e *Extension) runSed(c *cobra.Command, args []string) error {
	ctx := c.Context()
	if inPlace, _ := c.Flags().GetBool(extension.FlagInPlace); !inPlace {
		return cmd.PrintJSONError(errors.New("the -i flag is required (sed only supports in-place editing)"))
	}
	expr, name := args[0], args[1]

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := sed.Run(ctx, w, e.svc, name, expr, sed.Options{
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
	})

	log.Event("edit:sed", "edit").
		Author(cmd.Author()).
		Page(name).
		Version(result.Version).
		Detail("expr", expr).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("sed %q: %w", name, err))
	}
	return cmd.PrintJSON(result)
}
