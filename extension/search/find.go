// find.go implements the "wikid find" and "wikid reindex" commands for
// full-text search.
//
// Separated from search.go to isolate FTS5-specific logic. Full-text
// search tokenises text and ranks hits, which is a different tool from
// regex (grep) or name patterns (glob).

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/find"
	"github.com/jpl-au/wikid/internal/grep"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/progress"
)

func (e *Extension) newFindCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "find <query>",
		Short: "Full-text search across pages",
		Long: `Full-text search across the latest version of every page, best
match first.

  wikid find tomato              # pages mentioning tomato
  wikid find "tom*"              # prefix match
  wikid find '"green tomatoes"'  # phrase
  wikid find "sun AND NOT rain"  # boolean operators

For exact patterns use 'wikid grep' instead.`,
		Args: cobra.ExactArgs(1),
		RunE: e.runFind,
	}
	c.Flags().StringP(extension.FlagPrefix, "p", "", "Scope search to a page name prefix")
	c.Flags().BoolP(extension.FlagFilesWithMatches, "l", false, "Only output page names")
	c.Flags().IntP(extension.FlagLimit, "n", find.DefaultLimit, "Maximum number of results")
	return c
}

func (e *Extension) runFind(c *cobra.Command, args []string) error {
	ctx := c.Context()
	query := args[0]
	opts := find.Options{}
	opts.Prefix, _ = c.Flags().GetString(extension.FlagPrefix)
	opts.NamesOnly, _ = c.Flags().GetBool(extension.FlagFilesWithMatches)
	opts.Limit, _ = c.Flags().GetInt(extension.FlagLimit)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	result, err := find.Run(ctx, w, e.ix, query, opts)

	log.Event("search:find", "search").
		Author(cmd.Author()).
		Page(opts.Prefix).
		Detail("query", query).
		Detail("count", len(result.Hits)).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("find %q: %w", query, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index",
		Long: `Rebuild the full-text search index from the latest version of every
page. The index is kept current automatically; rebuild it after editing
page storage outside wikid.`,
		Args: cobra.NoArgs,
		RunE: e.runReindex,
	}
}

func (e *Extension) runReindex(c *cobra.Command, _ []string) error {
	s := progress.NewSpinner("Indexing pages")
	s.Start()
	n, err := e.ix.Rebuild(c.Context(), e.svc)
	s.Stop()

	log.Event("search:reindex", "rebuild").
		Author(cmd.Author()).
		Detail("count", n).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("reindex: %w", err))
	}
	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Indexed %d page(s)\n", n)
	}
	return cmd.PrintJSON(map[string]int{"indexed": n})
}

// MCPTools returns wiki_search and wiki_grep.
func (e *Extension) MCPTools() []extension.MCPTool {
	return []extension.MCPTool{
		{
			Tool: mcp.NewTool("wiki_search",
				mcp.WithDescription("Full-text search across pages. Supports prefix* matching, \"phrases\" and AND/OR/NOT. Returns page names with a snippet, best match first."),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
				mcp.WithString("prefix", mcp.Description("Only search pages whose name starts with this")),
				mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
			),
			Handler: e.handleSearch,
		},
		{
			Tool: mcp.NewTool("wiki_grep",
				mcp.WithDescription("Search the latest text of pages with a regular expression. Returns matching lines with line numbers."),
				mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression")),
				mcp.WithString("prefix", mcp.Description("Only search pages whose name starts with this")),
				mcp.WithBoolean("ignore_case", mcp.Description("Case-insensitive matching")),
			),
			Handler: handleGrep,
		},
	}
}

func (e *Extension) handleSearch(ctx context.Context, _ extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if e.ix == nil {
		return mcp.NewToolResultError("search index is not open"), nil
	}
	hits, err := e.ix.Search(ctx, query, find.Options{
		Prefix: req.GetString("prefix", ""),
		Limit:  req.GetInt("limit", find.DefaultLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(find.Result{Query: query, Hits: hits})
}

func handleGrep(ctx context.Context, extCtx extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := grep.Run(ctx, io.Discard, extCtx.Service(), pattern, grep.Options{
		Prefix:     req.GetString("prefix", ""),
		IgnoreCase: req.GetBool("ignore_case", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
