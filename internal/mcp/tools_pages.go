// tools_pages.go implements the page MCP tools.
//
// Design: tools delegate to the same internal packages as the CLI (ls,
// history, diff) so both surfaces list, sort and compare identically. Errors
// come back as tool error results, not Go errors, so the client can read
// and retry them.

package mcp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/duration"
	"github.com/jpl-au/wikid/internal/history"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/ls"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// readResult is the wiki_read response.
type readResult struct {
	*provider.Page
	Text string `json:"text"`
}

func (h *handlers) readTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	version := getInt(req, "version", provider.Latest)
	if version == 0 {
		version = provider.Latest
	}

	info, err := h.svc.Info(ctx, name, version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := h.svc.Text(ctx, name, info.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Event("mcp:read", "read").Page(name).Version(info.Version).Write(nil)
	return jsonResult(readResult{Page: info, Text: text})
}

func (h *handlers) writeTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	author, err := req.RequireString("author")
	if err != nil || author == "" {
		return mcp.NewToolResultError("author is required"), nil
	}

	p, err := h.svc.Save(ctx, name, text, service.SaveOptions{
		Author:     author,
		ChangeNote: getString(req, "changenote", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

func (h *handlers) listTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := ls.Options{Prefix: getString(req, "prefix", "")}

	sortBy := ls.SortField(getString(req, "sort", ""))
	switch sortBy {
	case "", ls.SortName, ls.SortTime, ls.SortSize:
		opts.Sort = sortBy
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid sort field %q: must be name, time or size", sortBy)), nil
	}

	if since := getString(req, "since", ""); since != "" {
		d, err := duration.Parse(since)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Since = time.Now().Add(-d)
	}

	result, err := ls.Run(ctx, io.Discard, h.svc, opts)
	log.Event("mcp:list", "list").Page(opts.Prefix).Detail("count", result.Count()).Write(err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (h *handlers) historyTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := getInt(req, "limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be >= 0, got %d", limit)), nil
	}

	result, err := history.Run(ctx, io.Discard, h.svc, name, history.Options{Limit: limit})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result.Versions)
}

func (h *handlers) diffTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := diff.Options{
		Page2:    getString(req, "page2", ""),
		Version1: getInt(req, "version1", 0),
		Version2: getInt(req, "version2", 0),
	}
	if opts.Page2 != "" && (opts.Version1 != 0 || opts.Version2 != 0) {
		return mcp.NewToolResultError("page2 cannot be combined with versions"), nil
	}

	r, err := h.svc.Diff(ctx, name, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r)
}
