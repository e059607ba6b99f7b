// context.go defines what extensions may reach inside wikid.
//
// Separated from extension.go to isolate dependency injection. Extensions
// register at init time, before any workspace is open, and receive a
// Context once the service exists.

package extension

import (
	"database/sql"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/workspace"
)

// Context gives extensions access to the open wiki.
type Context interface {
	// Service returns the wiki service.
	Service() service.Service

	// DB exposes the workspace database. Extensions create their own
	// tables and leave the node, version and reference tables alone.
	DB() *sql.DB

	Config() *config.Config

	// Workspace returns the open .wikid directory.
	Workspace() workspace.Workspace
}

type extContext struct {
	svc service.Service
	cfg *config.Config
	ws  workspace.Workspace
}

// NewContext creates a new extension context.
func NewContext(svc service.Service, cfg *config.Config, ws workspace.Workspace) Context {
	return &extContext{svc: svc, cfg: cfg, ws: ws}
}

func (c *extContext) Service() service.Service { return c.svc }

func (c *extContext) DB() *sql.DB { return c.svc.DB() }

func (c *extContext) Config() *config.Config { return c.cfg }

func (c *extContext) Workspace() workspace.Workspace { return c.ws }
