// Package page provides the page extension for core wiki operations.
// Registers commands: write, cat, ls, info, history, diff, rm, mv, revert.
//
// These commands mirror Unix filesystem utilities so the wiki feels familiar
// from a shell. Each command file is separated to isolate its specific flag
// handling and output formatting logic.

package page

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the page extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "page".
func (e *Extension) Name() string { return "page" }

// Init connects to the shared service.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the page commands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newWriteCmd(),
		e.newCatCmd(),
		e.newLsCmd(),
		e.newInfoCmd(),
		e.newHistoryCmd(),
		e.newDiffCmd(),
		e.newRmCmd(),
		e.newMvCmd(),
		e.newRevertCmd(),
	}
}

// MCPTools returns nil - page MCP tools are provided by internal/mcp.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}
