// Package reference maintains the link graph between wiki pages.
//
// The graph lives in three SQLite tables next to the page store: refs holds
// one edge per page and resolved target, uncreated lists targets that have
// no page, and unreferenced lists pages nothing links to. The tables are
// kept current incrementally from save, delete and rename notifications and
// rebuilt from scratch when missing.
//
// Link targets resolve to page names through optional plural matching:
// [Books] finds the page Book when Book exists and Books does not. An exact
// match always wins.
package reference

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/jpl-au/wikid/internal/markup"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
)

//go:embed sql/*.sql
var schemas embed.FS

// Pages is the page store the graph is built from.
type Pages interface {
	PageText(ctx context.Context, name string, version int) (string, error)
	PageExists(ctx context.Context, name string, version int) (bool, error)
	AllPages(ctx context.Context) ([]provider.Page, error)
}

// Attachments lets links to "Page/file" count as existing when the
// attachment exists.
type Attachments interface {
	AttachmentInfo(ctx context.Context, page, file string, version int) (*provider.Attachment, error)
}

// StubStore records uncreated pages in the page store so their case can be
// recovered before they exist.
type StubStore interface {
	AddStub(ctx context.Context, name string) error
	RemoveStub(ctx context.Context, name string) error
}

// Options configures a Manager.
type Options struct {
	// MatchPlurals lets a link resolve to the singular or plural form of
	// its target.
	MatchPlurals bool
	// Interwiki prefixes are skipped when extracting links.
	Interwiki   []string
	Attachments Attachments
	Stubs       StubStore
	// Workers bounds the parallel link extraction of Rebuild.
	Workers int
}

// DefaultWorkers is the Rebuild parallelism when Options.Workers is unset.
const DefaultWorkers = 8

// Manager maintains the reference tables.
type Manager struct {
	db    *sql.DB
	pages Pages
	opts  Options
}

// Open creates the reference tables in db if needed and returns a Manager.
// When the tables did not exist the graph is rebuilt from pages.
func Open(ctx context.Context, db *sql.DB, pages Pages, opts Options) (*Manager, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	m := &Manager{db: db, pages: pages, opts: opts}

	var n int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('refs', 'uncreated', 'unreferenced')`).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("check reference tables: %w", err)
	}
	if err := repository.ExecEmbedded(db, schemas, "sql"); err != nil {
		return nil, fmt.Errorf("reference schema: %w", err)
	}
	if n < 3 {
		if err := m.Rebuild(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) linkOptions() markup.Options {
	return markup.Options{Interwiki: m.opts.Interwiki}
}

// Referrers returns the pages linking to name, sorted.
func (m *Manager) Referrers(ctx context.Context, name string) ([]string, error) {
	return m.names(ctx, `SELECT src FROM refs WHERE dst = ? ORDER BY src`, name)
}

// RefersTo returns the resolved targets linked from name, sorted.
func (m *Manager) RefersTo(ctx context.Context, name string) ([]string, error) {
	return m.names(ctx, `SELECT dst FROM refs WHERE src = ? ORDER BY dst`, name)
}

// Uncreated returns link targets that have no page.
func (m *Manager) Uncreated(ctx context.Context) ([]string, error) {
	return m.names(ctx, `SELECT name FROM uncreated ORDER BY name`)
}

// Unreferenced returns pages no page links to.
func (m *Manager) Unreferenced(ctx context.Context) ([]string, error) {
	return m.names(ctx, `SELECT name FROM unreferenced ORDER BY name`)
}

func (m *Manager) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Resolve maps a cleaned link target to the name it refers to and reports
// whether that name exists as a page or attachment. Unresolvable targets
// come back unchanged.
func (m *Manager) Resolve(ctx context.Context, name string) (string, bool, error) {
	t, err := m.resolve(ctx, name)
	return t.name, t.exists, err
}

func (m *Manager) resolve(ctx context.Context, name string) (target, error) {
	t, err := m.lookup(ctx, name)
	if err != nil || t.exists || !m.opts.MatchPlurals {
		return t, err
	}
	for _, alt := range alternates(name) {
		at, err := m.lookup(ctx, alt)
		if err != nil {
			return t, err
		}
		if at.exists {
			return at, nil
		}
	}
	return t, nil
}

// lookup checks name against the page store, then against attachments.
func (m *Manager) lookup(ctx context.Context, name string) (target, error) {
	t := target{name: name}
	ok, err := m.pages.PageExists(ctx, name, provider.Latest)
	if err != nil || ok {
		t.exists, t.page = ok, ok
		return t, err
	}
	if m.opts.Attachments == nil {
		return t, nil
	}
	i := strings.LastIndexByte(name, '/')
	if i <= 0 || i == len(name)-1 {
		return t, nil
	}
	_, err = m.opts.Attachments.AttachmentInfo(ctx, name[:i], name[i+1:], provider.Latest)
	if errors.Is(err, provider.ErrNotFound) {
		return t, nil
	}
	t.exists = err == nil
	return t, err
}

// alternates returns the singular and plural of the last word of name,
// without name itself.
func alternates(name string) []string {
	head, word := "", name
	if i := lastWordStart(name); i > 0 {
		head, word = name[:i], name[i:]
	}
	var out []string
	for _, w := range []string{inflection.Singular(word), inflection.Plural(word)} {
		if w != word && w != "" {
			out = append(out, head+w)
		}
	}
	return out
}

// lastWordStart finds the start of the final CamelCase word or path
// segment, so "MainPages" inflects "Pages" and "Docs/Book" inflects "Book".
func lastWordStart(name string) int {
	start := 0
	for i, r := range name {
		switch {
		case r == '/' || r == ':':
			start = i + 1
		case r >= 'A' && r <= 'Z' && i > start:
			start = i
		}
	}
	return start
}

// sortedKeys returns the keys of set, sorted.
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
