// tools_refs.go implements the wiki_references tool.

package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// referencesResult is the wiki_references response.
type referencesResult struct {
	Page      string   `json:"page,omitempty"`
	Direction string   `json:"direction"`
	Pages     []string `json:"pages"`
}

func (h *handlers) referencesTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := getString(req, "page", "")
	dir := getString(req, "direction", "to")

	var pages []string
	var err error
	switch dir {
	case "to", "from":
		if name == "" {
			return mcp.NewToolResultError(fmt.Sprintf("page is required for direction %q", dir)), nil
		}
		if dir == "to" {
			pages, err = h.svc.Referrers(ctx, name)
		} else {
			pages, err = h.svc.RefersTo(ctx, name)
		}
	case "uncreated":
		name = ""
		pages, err = h.svc.Uncreated(ctx)
	case "unreferenced":
		name = ""
		pages, err = h.svc.Unreferenced(ctx)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid direction %q: must be to, from, uncreated or unreferenced", dir)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if pages == nil {
		pages = []string{}
	}
	return jsonResult(referencesResult{Page: name, Direction: dir, Pages: pages})
}
