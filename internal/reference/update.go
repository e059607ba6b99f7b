// update.go implements incremental maintenance of the reference tables.
//
// Separated from reference.go because these are the write paths driven by
// page events, while reference.go holds the read side and target
// resolution.
//
// Design: existence checks against the page store run before the write
// transaction opens, so a store sharing the database never waits on the
// index's write lock. Edges are keyed case-insensitively; replaying the same
// save leaves the tables unchanged.

package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/markup"
	"github.com/jpl-au/wikid/internal/provider"
)

// target is a resolved link target. page is false for attachments.
type target struct {
	name   string
	exists bool
	page   bool
}

// resolveAll resolves cleaned targets, dropping case-insensitive
// duplicates after resolution.
func (m *Manager) resolveAll(ctx context.Context, raw []string) ([]target, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]target, 0, len(raw))
	for _, r := range raw {
		t, err := m.resolve(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r, err)
		}
		k := strings.ToLower(t.name)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out, nil
}

// tx runs fn inside a transaction.
func (m *Manager) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryNames(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func inbound(ctx context.Context, q querier, name string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM refs WHERE dst = ?`, name).Scan(&n)
	return n, err
}

// detached settles a target that lost an edge: with no links left it is no
// longer uncreated, and an existing page becomes unreferenced.
func detached(ctx context.Context, tx *sql.Tx, t target) (dropped bool, err error) {
	n, err := inbound(ctx, tx, t.name)
	if err != nil || n > 0 {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM uncreated WHERE name = ?`, t.name)
	if err != nil {
		return false, err
	}
	if t.page {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO unreferenced (name) VALUES (?)`, t.name); err != nil {
			return false, err
		}
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// PageSaved replaces the outbound edges of name with the links in text.
func (m *Manager) PageSaved(ctx context.Context, name, text string) error {
	next, err := m.resolveAll(ctx, markup.Targets(text, m.linkOptions()))
	if err != nil {
		return err
	}
	prev, err := m.outbound(ctx, name)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(next))
	for _, t := range next {
		want[strings.ToLower(t.name)] = true
	}
	had := make(map[string]bool, len(prev))
	for _, t := range prev {
		had[strings.ToLower(t.name)] = true
	}

	var stubs, unstubs []string
	err = m.tx(ctx, func(tx *sql.Tx) error {
		for _, t := range prev {
			if want[strings.ToLower(t.name)] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE src = ? AND dst = ?`, name, t.name); err != nil {
				return err
			}
			dropped, err := detached(ctx, tx, t)
			if err != nil {
				return err
			}
			if dropped {
				unstubs = append(unstubs, t.name)
			}
		}
		for _, t := range next {
			if had[strings.ToLower(t.name)] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO refs (src, dst) VALUES (?, ?)`, name, t.name); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM unreferenced WHERE name = ?`, t.name); err != nil {
				return err
			}
			if !t.exists {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO uncreated (name) VALUES (?)`, t.name); err != nil {
					return err
				}
				stubs = append(stubs, t.name)
			}
		}

		// The saved page exists now.
		if _, err := tx.ExecContext(ctx, `DELETE FROM uncreated WHERE name = ?`, name); err != nil {
			return err
		}
		n, err := inbound(ctx, tx, name)
		if err != nil {
			return err
		}
		if n == 0 {
			_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO unreferenced (name) VALUES (?)`, name)
		}
		return err
	})
	if err != nil {
		err = fmt.Errorf("update references of %s: %w", name, err)
		log.Event("reference:save", "update").Page(name).Write(err)
		return err
	}
	log.Event("reference:save", "update").
		Page(name).
		Detail("refs", len(next)).
		Write(nil)
	return m.syncStubs(ctx, stubs, unstubs)
}

// outbound returns the recorded targets of src with their existence.
func (m *Manager) outbound(ctx context.Context, src string) ([]target, error) {
	names, err := queryNames(ctx, m.db, `SELECT dst FROM refs WHERE src = ?`, src)
	if err != nil {
		return nil, fmt.Errorf("outbound references of %s: %w", src, err)
	}
	out := make([]target, 0, len(names))
	for _, n := range names {
		t, err := m.lookup(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// PageDeleted removes the outbound edges of name. Edges pointing at name
// stay, so a deleted page that is still linked becomes uncreated.
func (m *Manager) PageDeleted(ctx context.Context, name string) error {
	prev, err := m.outbound(ctx, name)
	if err != nil {
		return err
	}
	var stubs, unstubs []string
	err = m.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE src = ?`, name); err != nil {
			return err
		}
		for _, t := range prev {
			dropped, err := detached(ctx, tx, t)
			if err != nil {
				return err
			}
			if dropped {
				unstubs = append(unstubs, t.name)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM unreferenced WHERE name = ?`, name); err != nil {
			return err
		}
		n, err := inbound(ctx, tx, name)
		if err != nil || n == 0 {
			return err
		}
		stubs = append(stubs, name)
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO uncreated (name) VALUES (?)`, name)
		return err
	})
	if err != nil {
		err = fmt.Errorf("drop references of %s: %w", name, err)
		log.Event("reference:delete", "update").Page(name).Write(err)
		return err
	}
	log.Event("reference:delete", "update").Page(name).Write(nil)
	return m.syncStubs(ctx, stubs, unstubs)
}

// renamed reports whether name is from or below it, and its new name.
func renamed(name, from, to string) (string, bool) {
	switch {
	case strings.EqualFold(name, from):
		return to, true
	case len(name) > len(from) && strings.EqualFold(name[:len(from)], from) && name[len(from)] == '/':
		return to + name[len(from):], true
	}
	return "", false
}

// Renamed moves the outbound edges and report entries of from and its
// sub-pages to to. Links pointing at from are left for the referrers'
// rewritten text to replace, see Rewrites.
func (m *Manager) Renamed(ctx context.Context, from, to string) error {
	err := m.tx(ctx, func(tx *sql.Tx) error {
		srcs, err := queryNames(ctx, tx, `SELECT DISTINCT src FROM refs`)
		if err != nil {
			return err
		}
		for _, src := range srcs {
			if dst, ok := renamed(src, from, to); ok {
				if _, err := tx.ExecContext(ctx, `UPDATE OR REPLACE refs SET src = ? WHERE src = ?`, dst, src); err != nil {
					return err
				}
			}
		}
		unref, err := queryNames(ctx, tx, `SELECT name FROM unreferenced`)
		if err != nil {
			return err
		}
		for _, name := range unref {
			if dst, ok := renamed(name, from, to); ok {
				if _, err := tx.ExecContext(ctx, `UPDATE OR REPLACE unreferenced SET name = ? WHERE name = ?`, dst, name); err != nil {
					return err
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM uncreated WHERE name = ?`, to); err != nil {
			return err
		}
		n, err := inbound(ctx, tx, from)
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO uncreated (name) VALUES (?)`, from)
		return err
	})
	log.Event("reference:rename", "update").Page(from).Target(to).Write(err)
	if err != nil {
		return fmt.Errorf("rename references of %s: %w", from, err)
	}
	return nil
}

// Rewrite is a referrer's text with its links updated for a rename.
type Rewrite struct {
	Page string
	Text string
}

// Rewrites returns the new text of every page linking to from or to
// anything below it, with those links pointing at to. Pages whose text
// would not change are left out.
func (m *Manager) Rewrites(ctx context.Context, from, to string) ([]Rewrite, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT src, dst FROM refs`)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	srcs := make(map[string]bool)
	var order []string
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		if _, ok := renamed(dst, from, to); ok && !srcs[strings.ToLower(src)] {
			srcs[strings.ToLower(src)] = true
			order = append(order, src)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Rewrite
	for _, src := range order {
		text, err := m.pages.PageText(ctx, src, provider.Latest)
		if errors.Is(err, provider.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read referrer %s: %w", src, err)
		}
		if next, changed := markup.RenameLinks(text, from, to, m.linkOptions()); changed {
			out = append(out, Rewrite{Page: src, Text: next})
		}
	}
	return out, nil
}

// syncStubs mirrors uncreated entries into the stub store.
func (m *Manager) syncStubs(ctx context.Context, add, remove []string) error {
	if m.opts.Stubs == nil {
		return nil
	}
	var errs error
	for _, name := range add {
		errs = errors.Join(errs, m.opts.Stubs.AddStub(ctx, name))
	}
	for _, name := range remove {
		errs = errors.Join(errs, m.opts.Stubs.RemoveStub(ctx, name))
	}
	if errs != nil {
		return fmt.Errorf("sync stubs: %w", errs)
	}
	return nil
}
