// Package tag provides the tag extension for wikid.
// It registers commands: tag (with subcommands add, rm, ls, pages), and the
// wiki_tags MCP tool.
package tag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/tag"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the tag extension.
type Extension struct {
	svc   service.Service
	store *tag.Store
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.EventHandler  = (*Extension)(nil)
)

// Name returns "tag".
func (e *Extension) Name() string { return "tag" }

// Init receives the service and opens the tag table.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	s, err := tag.Open(ctx.DB())
	if err != nil {
		return err
	}
	e.store = s
	return nil
}

// Commands returns the tag command with its subcommands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newTagCmd(),
	}
}

// HandleEvent drops the tags of deleted pages and carries tags across
// renames. Deleting a single version leaves the page and its tags alone.
func (e *Extension) HandleEvent(_ extension.Context, evt extension.Event) error {
	if e.store == nil {
		return nil
	}
	ctx := context.Background()
	switch ev := evt.(type) {
	case extension.PageDeletedEvent:
		if ev.Version == 0 {
			return e.store.DropPage(ctx, ev.Page)
		}
	case extension.PageRenamedEvent:
		return e.store.Move(ctx, ev.From, ev.To)
	}
	return nil
}

// MCPTools returns wiki_tags.
func (e *Extension) MCPTools() []extension.MCPTool {
	return []extension.MCPTool{
		{
			Tool: mcp.NewTool("wiki_tags",
				mcp.WithDescription("List the tags of a page, the pages carrying a tag, or every tag with its page count when neither is given"),
				mcp.WithString("page", mcp.Description("Page name")),
				mcp.WithString("tag", mcp.Description("Tag name")),
			),
			Handler: e.handleTags,
		},
	}
}

func (e *Extension) handleTags(ctx context.Context, _ extension.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if e.store == nil {
		return mcp.NewToolResultError("tag store is not open"), nil
	}
	var (
		result tag.Result
		err    error
	)
	if t := req.GetString("tag", ""); t != "" {
		result, err = tag.Tagged(ctx, io.Discard, e.store, t)
	} else {
		result, err = tag.List(ctx, io.Discard, e.store, req.GetString("page", ""))
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// --- tag command with subcommands ---

func (e *Extension) newTagCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "tag",
		Short: "Manage page tags",
		Long: `Add, remove, and list page tags.

Tags are labels outside page history: tagging a page does not create a
new version. Tags follow a page when it is renamed and are dropped when
it is deleted.`,
	}
	c.AddCommand(e.newTagAddCmd())
	c.AddCommand(e.newTagRmCmd())
	c.AddCommand(e.newTagLsCmd())
	c.AddCommand(e.newTagPagesCmd())
	return c
}

func (e *Extension) newTagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <page> <tag>",
		Short: "Add a tag to a page",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runTagAdd,
	}
}

func (e *Extension) newTagRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <page> <tag>",
		Short: "Remove a tag from a page",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runTagRm,
	}
}

func (e *Extension) newTagLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [page]",
		Short: "List tags for a page (or all tags if page omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  e.runTagLs,
	}
}

func (e *Extension) newTagPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <tag>",
		Short: "List pages carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runTagPages,
	}
}

func output() io.Writer {
	if cmd.JSON() {
		return io.Discard
	}
	return cmd.Out()
}

func (e *Extension) runTagAdd(c *cobra.Command, args []string) error {
	name, t := args[0], args[1]

	result, err := tag.Add(c.Context(), output(), e.svc, e.store, name, t)

	log.Event("tag:add", "tag").
		Author(cmd.Author()).
		Page(result.Page).
		Detail("tag", t).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag add %q %q: %w", name, t, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagRm(c *cobra.Command, args []string) error {
	name, t := args[0], args[1]

	result, err := tag.Remove(c.Context(), output(), e.store, name, t)

	log.Event("tag:rm", "untag").
		Author(cmd.Author()).
		Page(name).
		Detail("tag", t).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag rm %q %q: %w", name, t, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagLs(c *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	result, err := tag.List(c.Context(), output(), e.store, name)

	log.Event("tag:ls", "list_tags").
		Author(cmd.Author()).
		Page(name).
		Detail("count", len(result.Tags)).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag ls %q: %w", name, err))
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) runTagPages(c *cobra.Command, args []string) error {
	t := args[0]

	result, err := tag.Tagged(c.Context(), output(), e.store, t)

	log.Event("tag:pages", "tagged").
		Author(cmd.Author()).
		Detail("tag", t).
		Detail("count", len(result.Pages)).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("tag pages %q: %w", t, err))
	}
	return cmd.PrintJSON(result)
}
