/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// init_extensions.go handles extension initialisation and command registration.
//
// Separated from root.go to isolate the initialisation logic that discovers
// the workspace, loads config, and wires up extensions.
//
// Design: Extensions register during init() but aren't initialised until
// first command execution. This two-phase pattern allows extensions to
// declare commands before a workspace exists. The wiki is opened once and
// shared across all extensions via the Context.

package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

// noStoreCommands lists commands that bypass automatic wiki initialisation.
// Built from extension-declared storeless commands.
var noStoreCommands map[string]bool

// authorRequiredCommands lists commands that create versions or move data.
var authorRequiredCommands = map[string]bool{
	"write":  true,
	"rm":     true,
	"mv":     true,
	"revert": true,
	"attach": true,
	"lock":   true,
	"edit":   true,
	"sed":    true,
	"import": true,
}

// buildNoStoreCommands creates the set of commands that skip wiki
// initialisation. Extensions implement extension.Storeless to add to it:
// init runs before a workspace exists, serve opens its own wiki with a
// metrics registry.
func buildNoStoreCommands() map[string]bool {
	cmds := map[string]bool{
		"help":       true,
		"completion": true,
	}
	for _, ext := range extension.All() {
		if s, ok := ext.(extension.Storeless); ok {
			for _, name := range s.NoStoreCommands() {
				cmds[name] = true
			}
		}
	}
	return cmds
}

var (
	extContext extension.Context
	extService *wiki.Service
	initOnce   sync.Once
	initErr    error
)

// initExtensions opens the wiki for the current directory and injects it
// into extensions, once per process.
func initExtensions(ctx context.Context) error {
	initOnce.Do(func() {
		svc, err := OpenWiki(ctx, nil)
		if err != nil {
			initErr = err
			return
		}
		extService = svc
		extContext = svc.ExtensionContext()
	})
	return initErr
}

// OpenWiki discovers the workspace, loads configuration, opens the wiki and
// initialises every Initializable extension against it. Cache metrics
// register with reg when non-nil. The caller closes the returned service.
func OpenWiki(ctx context.Context, reg prometheus.Registerer) (*wiki.Service, error) {
	ws, err := workspace.Discover()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc, err := wiki.Open(ctx, ws, cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("open wiki: %w", err)
	}
	log.SetWorkspace(ws.Root)

	extCtx := extension.NewContext(svc, cfg, ws)
	svc.SetExtensionContext(extCtx)
	for _, ext := range extension.All() {
		if init, ok := ext.(extension.Initializable); ok {
			if err := init.Init(extCtx); err != nil {
				svc.Close()
				return nil, fmt.Errorf("init extension %s: %w", ext.Name(), err)
			}
		}
	}
	return svc, nil
}

var extensionsOnce sync.Once

// registerExtensions adds commands from all registered extensions.
// Called once before Execute runs.
func registerExtensions() {
	extensionsOnce.Do(func() {
		for _, ext := range extension.All() {
			for _, cmd := range ext.Commands() {
				rootCmd.AddCommand(cmd)
			}
		}
		noStoreCommands = buildNoStoreCommands()
	})
}
