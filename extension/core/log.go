// log.go implements the "wikid log" command for reading the audit trail.
//
// Design: Log is a NoStoreCommand. Entries live in the shared log database
// keyed by workspace hash, so log needs the workspace path but never opens
// the wiki itself.

package core

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/workspace"
)

func newLogCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "log",
		Short: "Show recent audit log entries",
		Long: `Show recent audit log entries for this workspace, newest first.

  wikid log                  # last 50 entries
  wikid log --page MainPage  # one page
  wikid log --level warn     # warnings and errors only`,
		Args: cobra.NoArgs,
		RunE: runLog,
	}
	c.Flags().StringP(extension.FlagPage, "p", "", "Only entries for this page")
	c.Flags().String(extension.FlagLevel, "", "Minimum level: info, warn or error")
	c.Flags().IntP(extension.FlagLimit, "n", 50, "Maximum entries")
	return c
}

func runLog(c *cobra.Command, _ []string) error {
	page, _ := c.Flags().GetString(extension.FlagPage)
	level, _ := c.Flags().GetString(extension.FlagLevel)
	limit, _ := c.Flags().GetInt(extension.FlagLimit)

	switch level {
	case "", log.LevelInfo, log.LevelWarn, log.LevelError:
	default:
		return cmd.PrintJSONError(fmt.Errorf("invalid level %q (valid: info, warn, error)", level))
	}

	ws, err := workspace.Discover()
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	log.SetWorkspace(ws.Root)

	entries, err := log.Recent(log.Query{Page: page, Level: level, Limit: limit})
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	if cmd.JSON() {
		return cmd.PrintJSON(entries)
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "FAIL"
		}
		fmt.Fprintf(cmd.Out(), "%s  %-5s  %-4s  %-18s %-14s",
			time.UnixMilli(e.Start).Format("2006-01-02 15:04:05"), e.Level, status, e.Source, e.Action)
		if e.Page != "" {
			fmt.Fprintf(cmd.Out(), " %s", e.Page)
			if e.Version > 0 {
				fmt.Fprintf(cmd.Out(), " v%d", e.Version)
			}
		}
		if e.Target != "" {
			fmt.Fprintf(cmd.Out(), " -> %s", e.Target)
		}
		if e.Author != "" {
			fmt.Fprintf(cmd.Out(), " (%s)", e.Author)
		}
		if e.Error != "" {
			fmt.Fprintf(cmd.Out(), ": %s", e.Error)
		}
		fmt.Fprintln(cmd.Out())
	}
	return nil
}
