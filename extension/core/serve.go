// serve.go implements the "wikid serve" command for the HTTP and MCP servers.
//
// Separated from extension.go because serve has unique lifecycle
// requirements. Unlike other commands that run and exit, serve blocks until
// interrupted.
//
// Design: Serve is a NoStoreCommand - it opens its own wiki so the cache
// metrics register with the registry /metrics exposes, and so the lock
// table lives as long as the server.

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/httpapi"
	"github.com/jpl-au/wikid/internal/mcp"
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wiki over HTTP or MCP",
		Long: `Serve the wiki.

  wikid serve --http :8080   # REST API, /metrics for prometheus
  wikid serve --http ""      # REST API on http.addr from config
  wikid serve --mcp          # Model Context Protocol over stdio

Edit locks taken through either server last until they expire or the
server stops.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	c.Flags().String(extension.FlagHTTP, "", "Serve the REST API on this address")
	c.Flags().Bool(extension.FlagMCP, false, "Serve MCP over stdio")
	c.MarkFlagsMutuallyExclusive(extension.FlagHTTP, extension.FlagMCP)
	c.MarkFlagsOneRequired(extension.FlagHTTP, extension.FlagMCP)
	return c
}

func runServe(c *cobra.Command, _ []string) error {
	useMCP, _ := c.Flags().GetBool(extension.FlagMCP)

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *prometheus.Registry
	if !useMCP {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	svc, err := cmd.OpenWiki(ctx, reg)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("serve: %w", err))
	}
	defer svc.Close()

	if useMCP {
		return mcp.Serve(ctx, svc, svc.ExtensionContext())
	}

	addr, _ := c.Flags().GetString(extension.FlagHTTP)
	if addr == "" {
		addr = svc.Config().HTTPAddr()
	}
	err = httpapi.Serve(ctx, addr, svc, reg)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
