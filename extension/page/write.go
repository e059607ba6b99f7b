// write.go implements the "wikid write" command for saving pages.
//
// Separated from page.go to isolate input handling (stdin, argument, file).
//
// Design: Write accepts text from multiple sources in priority order:
// 1. Direct argument (for short text)
// 2. File flag (for existing files)
// 3. Stdin (for piping)

package page

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/service"
)

// writeResult contains the outcome of a write operation.
type writeResult struct {
	Page    string `json:"page"`
	Version int    `json:"version"`
	Author  string `json:"author"`
	Pending bool   `json:"pending,omitempty"`
}

func (e *Extension) newWriteCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "write <page> [text]",
		Short: "Save a new version of a page",
		Long: `Save a new version of a page. Text comes from the argument, -f, or stdin.

  wikid write MainPage "Welcome to [Sandbox]."
  wikid write MainPage -f main.txt -m "Reword intro"
  cat notes.txt | wikid write Notes`,
		Args: cobra.RangeArgs(1, 2),
		RunE: e.runWrite,
	}
	c.Flags().StringP(extension.FlagFile, "f", "", "Read text from file")
	return c
}

func (e *Extension) runWrite(c *cobra.Command, args []string) error {
	ctx := c.Context()
	name := args[0]
	var text string

	file, _ := c.Flags().GetString(extension.FlagFile)
	switch {
	case len(args) >= 2:
		text = args[1]
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("read file %q: %w", file, err))
		}
		text = string(data)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("read stdin: %w", err))
		}
		text = string(data)
	}

	p, err := e.svc.Save(ctx, name, text, service.SaveOptions{
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
	})
	if errors.Is(err, content.ErrPending) {
		if !cmd.JSON() {
			fmt.Fprintf(cmd.Out(), "Held %s for approval; see \"wikid approve\"\n", p.Name)
		}
		return cmd.PrintJSON(writeResult{Page: p.Name, Author: p.Author, Pending: true})
	}
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("write %q: %w", name, err))
	}

	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Wrote %s v%d\n", p.Name, p.Version)
	}
	return cmd.PrintJSON(writeResult{Page: p.Name, Version: p.Version, Author: p.Author})
}
