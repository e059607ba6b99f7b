// Package core provides the core extension for wikid.
// It registers commands: init, config, share, serve, guide, log, version.
package core

import (
	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/extension"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the core extension.
type Extension struct{}

// Compile-time interface compliance. Catches missing methods at build time
// rather than runtime, making interface changes safer to refactor.
var (
	_ extension.Extension = (*Extension)(nil)
	_ extension.Storeless = (*Extension)(nil)
)

// Name returns "core" - this extension provides workspace and server commands.
func (e *Extension) Name() string { return "core" }

// Commands returns all core CLI commands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		newInitCmd(),
		newConfigCmd(),
		newShareCmd(),
		newServeCmd(),
		newGuideCmd(),
		newLogCmd(),
		newVersionCmd(),
	}
}

// MCPTools returns nil - the wiki_* tools live in internal/mcp.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

// NoStoreCommands returns commands that never open the wiki, or open their
// own.
// init: creates the workspace.
// serve: opens the wiki with a metrics registry and owns its lifecycle.
// share: edits .gitignore only.
func (e *Extension) NoStoreCommands() []string {
	return []string{"init", "config", "share", "serve", "guide", "log", "version"}
}
