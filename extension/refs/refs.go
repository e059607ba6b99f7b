// Package refs provides the refs extension for the reference index.
// It registers the refs command (with subcommands to, from, uncreated,
// unreferenced, rebuild) and the wiki_orphans MCP tool.
package refs

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
	"github.com/jpl-au/wikid/internal/progress"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the refs extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "refs".
func (e *Extension) Name() string { return "refs" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the refs command with its subcommands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{e.newRefsCmd()}
}

// MCPTools returns the orphan and wanted-page reports.
func (e *Extension) MCPTools() []extension.MCPTool {
	return []extension.MCPTool{
		{
			Tool: mcp.NewTool("wiki_orphans",
				mcp.WithDescription("List pages nothing links to, and links to pages that do not exist yet"),
			),
			Handler: handleOrphans,
		},
	}
}

func handleOrphans(ctx context.Context, extCtx extension.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc := extCtx.Service()
	unref, err := svc.Unreferenced(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wanted, err := svc.Uncreated(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(map[string][]string{
		"unreferenced": unref,
		"uncreated":    wanted,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (e *Extension) newRefsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "refs",
		Short: "Query the reference index",
		Long: `Query which pages link where.

  wikid refs to MainPage     # pages linking to MainPage
  wikid refs from MainPage   # pages MainPage links to
  wikid refs uncreated       # linked pages that do not exist
  wikid refs unreferenced    # pages nothing links to
  wikid refs rebuild         # recompute the index from every page`,
	}
	c.AddCommand(&cobra.Command{
		Use:   "to <page>",
		Short: "List pages that link to a page",
		Args:  cobra.ExactArgs(1),
		RunE: e.names("to", func(ctx context.Context, args []string) ([]string, error) {
			return e.svc.Referrers(ctx, args[0])
		}),
	})
	c.AddCommand(&cobra.Command{
		Use:   "from <page>",
		Short: "List pages a page links to",
		Args:  cobra.ExactArgs(1),
		RunE: e.names("from", func(ctx context.Context, args []string) ([]string, error) {
			return e.svc.RefersTo(ctx, args[0])
		}),
	})
	c.AddCommand(&cobra.Command{
		Use:   "uncreated",
		Short: "List linked pages that do not exist",
		Args:  cobra.NoArgs,
		RunE: e.names("uncreated", func(ctx context.Context, _ []string) ([]string, error) {
			return e.svc.Uncreated(ctx)
		}),
	})
	c.AddCommand(&cobra.Command{
		Use:   "unreferenced",
		Short: "List pages nothing links to",
		Args:  cobra.NoArgs,
		RunE: e.names("unreferenced", func(ctx context.Context, _ []string) ([]string, error) {
			return e.svc.Unreferenced(ctx)
		}),
	})
	c.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the reference index from every page",
		Args:  cobra.NoArgs,
		RunE:  e.runRebuild,
	})
	return c
}

// names wraps a query returning page names into a RunE.
func (e *Extension) names(action string, query func(context.Context, []string) ([]string, error)) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		result, err := query(c.Context(), args)

		b := log.Event("refs:"+action, "query").Author(cmd.Author()).Detail("count", len(result))
		if len(args) > 0 {
			b = b.Page(args[0])
		}
		b.Write(err)

		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("refs %s: %w", action, err))
		}
		if result == nil {
			result = []string{}
		}
		if cmd.JSON() {
			return cmd.PrintJSON(result)
		}
		return format.Names(cmd.Out(), result)
	}
}

func (e *Extension) runRebuild(c *cobra.Command, _ []string) error {
	s := progress.NewSpinner("Rebuilding references")
	s.Start()
	err := e.svc.RebuildReferences(c.Context())
	s.Stop()

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("refs rebuild: %w", err))
	}
	if !cmd.JSON() {
		fmt.Fprintln(cmd.Out(), "Rebuilt reference index")
	}
	return cmd.PrintJSON(map[string]bool{"rebuilt": true})
}
