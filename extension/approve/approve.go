// Package approve provides the approve extension for saves held by the
// content repository. It registers the approve command and the
// wiki_pending MCP tool.
//
// Saves are held when storage.backend is repository and the page matches
// approval.pages. Held saves live in the workspace database, so they can be
// decided from any process.
package approve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/service"
)

const flagReject = "reject"

func init() {
	extension.Register(&Extension{})
}

// Extension implements the approve extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "approve".
func (e *Extension) Name() string { return "approve" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the approve command.
func (e *Extension) Commands() []*cobra.Command {
	c := &cobra.Command{
		Use:   "approve [id]",
		Short: "List or decide saves waiting for approval",
		Long: `Without an id, list the saves waiting for approval. With an id, commit
that save, or discard it with --reject.

  wikid approve
  wikid approve 6f1c...            # commit the held text
  wikid approve 6f1c... --reject   # discard it`,
		Args: cobra.MaximumNArgs(1),
		RunE: e.run,
	}
	c.Flags().Bool(flagReject, false, "Discard the held save instead of committing it")
	return []*cobra.Command{c}
}

// MCPTools returns the pending-save listing.
func (e *Extension) MCPTools() []extension.MCPTool {
	return []extension.MCPTool{
		{
			Tool: mcp.NewTool("wiki_pending",
				mcp.WithDescription("List page saves waiting for approval"),
			),
			Handler: handlePending,
		},
	}
}

func handlePending(ctx context.Context, extCtx extension.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	held, err := extCtx.Service().Pending(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if held == nil {
		held = []service.PendingSave{}
	}
	data, err := json.MarshalIndent(held, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (e *Extension) run(c *cobra.Command, args []string) error {
	ctx := c.Context()
	if len(args) == 0 {
		held, err := e.svc.Pending(ctx)
		log.Event("approve:list", "query").Author(cmd.Author()).Detail("count", len(held)).Write(err)
		if err != nil {
			return cmd.PrintJSONError(err)
		}
		if cmd.JSON() {
			return cmd.PrintJSON(held)
		}
		return format.Pending(cmd.Out(), held)
	}

	reject, _ := c.Flags().GetBool(flagReject)
	p, err := e.svc.Decide(ctx, args[0], !reject)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("decide %s: %w", args[0], err))
	}

	if !cmd.JSON() {
		if reject {
			fmt.Fprintf(cmd.Out(), "Rejected save of %s by %s\n", p.Name, p.Author)
		} else {
			fmt.Fprintf(cmd.Out(), "Approved %s v%d\n", p.Name, p.Version)
		}
	}
	return cmd.PrintJSON(map[string]any{
		"id":       args[0],
		"page":     p.Name,
		"version":  p.Version,
		"approved": !reject,
	})
}
