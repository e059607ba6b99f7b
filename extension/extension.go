// Package extension provides the plugin architecture for wikid. Extensions
// group related functionality (commands, MCP tools, event handlers) and
// register at init time, so features live in their own packages without
// touching the core.
package extension

import "github.com/spf13/cobra"

// Extension defines the contract for wikid extensions.
type Extension interface {
	// Name returns a unique identifier for this extension.
	Name() string

	// Commands returns CLI commands to register with the root command.
	Commands() []*cobra.Command

	// MCPTools returns MCP tools to register with the server.
	MCPTools() []MCPTool
}

// Initializable extensions can perform setup (custom tables, caches) once
// the service is open.
type Initializable interface {
	Extension
	Init(ctx Context) error
}

// Storeless is an optional interface for extensions with commands that
// don't require a store. Commands returned by NoStoreCommands() will
// not trigger store initialisation in PersistentPreRunE.
//
// Use cases: bootstrap commands (init) that run before a workspace exists,
// and utilities (config, version, log) that never touch pages.
type Storeless interface {
	NoStoreCommands() []string
}
