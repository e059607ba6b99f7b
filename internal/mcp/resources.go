// resources.go implements MCP resource handlers for page text.
//
// Design: resource URIs follow wikid://pages/{name}[/v/{version}]. Omitting
// the version returns the latest, mirroring "wikid cat".

package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jpl-au/wikid/internal/provider"
)

var (
	// ErrInvalidURI indicates a malformed resource URI.
	ErrInvalidURI = errors.New("invalid URI")
	// ErrEmptyName indicates a missing page name in a resource URI.
	ErrEmptyName = errors.New("empty page name")
)

const uriPrefix = "wikid://pages/"

// readPage handles both page resource templates.
func (h *handlers) readPage(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name, version, err := parsePageURI(uri)
	if err != nil {
		return nil, err
	}

	text, err := h.svc.Text(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

// parsePageURI extracts the page name and version from a page URI. Names
// may be percent-encoded. A missing version yields provider.Latest.
func parsePageURI(uri string) (name string, version int, err error) {
	if !strings.HasPrefix(uri, uriPrefix) {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}

	rest := strings.TrimPrefix(uri, uriPrefix)
	version = provider.Latest
	if idx := strings.LastIndex(rest, "/v/"); idx != -1 {
		vStr := rest[idx+3:]
		v, err := strconv.Atoi(vStr)
		if err != nil || v < 1 {
			return "", 0, fmt.Errorf("%w: invalid version %s", ErrInvalidURI, vStr)
		}
		rest, version = rest[:idx], v
	}

	name, err = url.PathUnescape(rest)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if name == "" {
		return "", 0, ErrEmptyName
	}
	return name, version, nil
}
