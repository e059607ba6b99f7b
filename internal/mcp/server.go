// Package mcp implements the Model Context Protocol server, exposing wiki
// operations to LLM clients over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/version"
)

// Serve runs the MCP server over stdio until ctx is cancelled or stdin
// closes. Tools contributed by extensions are registered after the built-in
// wiki_* tools and receive extCtx.
func Serve(ctx context.Context, svc service.Service, extCtx extension.Context) error {
	// stdout is reserved for JSON-RPC messages
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	s := NewServer(svc, extCtx)
	slog.Info("wikid MCP server ready", "version", version.Short(), "transport", "stdio")

	err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if err == nil || errors.Is(err, context.Canceled) {
		slog.Info("server stopped")
		return nil
	}
	return err
}

// NewServer builds the MCP server with every tool and resource registered.
func NewServer(svc service.Service, extCtx extension.Context) *server.MCPServer {
	s := server.NewMCPServer(
		"wikid",
		version.Short(),
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	h := &handlers{svc: svc}
	registerResources(s, h)
	registerTools(s, h)

	for _, ext := range extension.All() {
		for _, t := range ext.MCPTools() {
			handler := t.Handler
			s.AddTool(t.Tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handler(ctx, extCtx, req)
			})
		}
	}
	return s
}

// handlers provides MCP request handlers with access to the wiki.
type handlers struct {
	svc service.Service
}

// registerResources adds URI-based resource access for page text.
func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"wikid://pages/{name}",
			"Page",
			mcp.WithTemplateDescription("Read the latest text of a page"),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		h.readPage,
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"wikid://pages/{name}/v/{version}",
			"Page Version",
			mcp.WithTemplateDescription("Read one version of a page"),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		h.readPage,
	)
}

// registerTools exposes wiki operations as MCP tools.
func registerTools(s *server.MCPServer, h *handlers) {
	s.AddTool(
		mcp.NewTool("wiki_read",
			mcp.WithDescription("Read the text and metadata of a wiki page"),
			mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
			mcp.WithNumber("version", mcp.Description("Version to read (default: latest)")),
		),
		h.readTool,
	)

	s.AddTool(
		mcp.NewTool("wiki_write",
			mcp.WithDescription("Save a new version of a wiki page, creating it if needed"),
			mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Full page text")),
			mcp.WithString("author", mcp.Required(), mcp.Description("Author attribution")),
			mcp.WithString("changenote", mcp.Description("Why the page changed")),
		),
		h.writeTool,
	)

	s.AddTool(
		mcp.NewTool("wiki_list",
			mcp.WithDescription("List wiki pages"),
			mcp.WithString("prefix", mcp.Description("Case-insensitive name prefix")),
			mcp.WithString("since", mcp.Description("Only pages changed within this duration (e.g. 7d, 12h)")),
			mcp.WithString("sort", mcp.Description("Sort by name, time or size")),
		),
		h.listTool,
	)

	s.AddTool(
		mcp.NewTool("wiki_history",
			mcp.WithDescription("List the versions of a page, newest first"),
			mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
			mcp.WithNumber("limit", mcp.Description("Maximum versions to return")),
		),
		h.historyTool,
	)

	s.AddTool(
		mcp.NewTool("wiki_references",
			mcp.WithDescription("Query the reference index: pages linking to a page, pages it links to, or wiki-wide reports"),
			mcp.WithString("page", mcp.Description("Page name (required for to and from)")),
			mcp.WithString("direction", mcp.Description("to (default), from, uncreated or unreferenced")),
		),
		h.referencesTool,
	)

	s.AddTool(
		mcp.NewTool("wiki_diff",
			mcp.WithDescription("Show differences between two versions of a page, or two pages"),
			mcp.WithString("page", mcp.Required(), mcp.Description("Page name")),
			mcp.WithString("page2", mcp.Description("Second page, compared at its latest version")),
			mcp.WithNumber("version1", mcp.Description("First version")),
			mcp.WithNumber("version2", mcp.Description("Second version")),
		),
		h.diffTool,
	)
}
