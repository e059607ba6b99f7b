// Package lock provides the lock extension for advisory edit locks.
// It registers commands: lock (with subcommands acquire, release, ls) and
// drops locks on pages that are deleted or renamed.
//
// Locks live in the serving process. From a one-shot CLI run they only last
// for that run, so acquire is mostly useful against a wiki opened by serve;
// the commands exist so scripts and tests can exercise the same path.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the lock extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
	_ extension.EventHandler  = (*Extension)(nil)
)

// Name returns "lock".
func (e *Extension) Name() string { return "lock" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the lock command with its subcommands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{e.newLockCmd()}
}

// MCPTools returns nil.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

// HandleEvent releases the lock on a page that no longer exists under its
// locked name. Deleting a single version keeps the lock.
func (e *Extension) HandleEvent(ctx extension.Context, evt extension.Event) error {
	var page string
	switch ev := evt.(type) {
	case extension.PageDeletedEvent:
		if ev.Version != 0 {
			return nil
		}
		page = ev.Page
	case extension.PageRenamedEvent:
		page = ev.From
	default:
		return nil
	}

	err := ctx.Service().Unlock(context.Background(), page, "", true)
	if errors.Is(err, service.ErrNotLocked) {
		return nil
	}
	log.Event("lock:event", "release").Page(page).Detail("event", string(evt.EventType())).Write(err)
	return err
}

func (e *Extension) newLockCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "lock",
		Short: "Manage advisory edit locks",
		Long: `Take, release and list advisory edit locks. Saving never checks a lock;
it tells other editors someone is working on the page.

  wikid lock acquire MainPage
  wikid lock release MainPage
  wikid lock release MainPage --force   # break someone else's lock
  wikid lock ls`,
	}
	c.AddCommand(&cobra.Command{
		Use:   "acquire <page>",
		Short: "Lock a page for editing",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runAcquire,
	})
	c.AddCommand(&cobra.Command{
		Use:   "release <page>",
		Short: "Release a page lock",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runRelease,
	})
	c.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List active locks",
		Args:  cobra.NoArgs,
		RunE:  e.runLs,
	})
	return c
}

func (e *Extension) runAcquire(c *cobra.Command, args []string) error {
	l, err := e.svc.Lock(c.Context(), args[0], cmd.Author())
	log.Event("lock:acquire", "lock").Author(cmd.Author()).Page(args[0]).Write(err)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Locked %s until %s\n", l.Page, l.Expiry.Format(time.Kitchen))
	}
	return cmd.PrintJSON(l)
}

func (e *Extension) runRelease(c *cobra.Command, args []string) error {
	err := e.svc.Unlock(c.Context(), args[0], cmd.Author(), cmd.Force())
	log.Event("lock:release", "unlock").Author(cmd.Author()).Page(args[0]).Detail("force", cmd.Force()).Write(err)
	if err != nil {
		return cmd.PrintJSONError(err)
	}
	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Released %s\n", args[0])
	}
	return cmd.PrintJSON(map[string]string{"page": args[0]})
}

func (e *Extension) runLs(_ *cobra.Command, _ []string) error {
	locks := e.svc.Locks()
	if cmd.JSON() {
		return cmd.PrintJSON(locks)
	}
	now := time.Now()
	for _, l := range locks {
		fmt.Fprintf(cmd.Out(), "%-30s %-16s %s left\n", l.Page, l.Locker, l.TimeLeft(now).Round(time.Second))
	}
	return nil
}
