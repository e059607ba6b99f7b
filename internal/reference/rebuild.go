package reference

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/markup"
	"github.com/jpl-au/wikid/internal/provider"
)

type pageRefs struct {
	name    string
	targets []target
}

// Rebuild discards the reference tables and recreates them from every
// page in the store. Pages are read and their links resolved in parallel;
// the tables are then written in one transaction.
func (m *Manager) Rebuild(ctx context.Context) error {
	pages, err := m.pages.AllPages(ctx)
	if err != nil {
		return fmt.Errorf("rebuild references: %w", err)
	}

	results := make([]pageRefs, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, p := range pages {
		g.Go(func() error {
			text, err := m.pages.PageText(gctx, p.Name, provider.Latest)
			if err != nil {
				return fmt.Errorf("read %s: %w", p.Name, err)
			}
			targets, err := m.resolveAll(gctx, markup.Targets(text, m.linkOptions()))
			if err != nil {
				return fmt.Errorf("links of %s: %w", p.Name, err)
			}
			results[i] = pageRefs{name: p.Name, targets: targets}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Event("reference:rebuild", "rebuild").Write(err)
		return fmt.Errorf("rebuild references: %w", err)
	}

	referenced := make(map[string]bool)
	missing := make(map[string]string)
	edges := 0
	err = m.tx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"refs", "uncreated", "unreferenced"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		for _, r := range results {
			for _, t := range r.targets {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO refs (src, dst) VALUES (?, ?)`, r.name, t.name); err != nil {
					return err
				}
				edges++
				referenced[strings.ToLower(t.name)] = true
				if !t.exists {
					missing[strings.ToLower(t.name)] = t.name
				}
			}
		}
		for _, name := range missing {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO uncreated (name) VALUES (?)`, name); err != nil {
				return err
			}
		}
		for _, r := range results {
			if referenced[strings.ToLower(r.name)] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO unreferenced (name) VALUES (?)`, r.name); err != nil {
				return err
			}
		}
		return nil
	})
	log.Event("reference:rebuild", "rebuild").
		Detail("pages", len(pages)).
		Detail("refs", edges).
		Write(err)
	if err != nil {
		return fmt.Errorf("rebuild references: %w", err)
	}

	stubs := make(map[string]bool, len(missing))
	for _, name := range missing {
		stubs[name] = true
	}
	return m.syncStubs(ctx, sortedKeys(stubs), nil)
}
