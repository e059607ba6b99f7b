// Package find provides full-text search over the latest text of pages.
//
// The index is an SQLite FTS5 table in the workspace database. It is kept
// current from page events and rebuilt from the page store when the table
// is first created. FTS5 queries support prefix matching (word*), phrases
// ("two words") and boolean operators, which suits natural language
// queries better than a regex.
package find

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/service"
)

//go:embed sql/*.sql
var schemas embed.FS

// DefaultLimit caps the hits of a search when Options.Limit is unset.
const DefaultLimit = 50

// Source is the page store the index is built from.
type Source interface {
	List(ctx context.Context, opts service.ListOptions) ([]provider.Page, error)
	Text(ctx context.Context, name string, version int) (string, error)
}

// Index maintains the page_search table.
type Index struct {
	db *sql.DB
}

// Open creates the search table in db if needed and returns an Index. When
// the table did not exist it is filled from src.
func Open(ctx context.Context, db *sql.DB, src Source) (*Index, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE name = 'page_search'`).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("check search table: %w", err)
	}
	if err := repository.ExecEmbedded(db, schemas, "sql"); err != nil {
		return nil, fmt.Errorf("search schema: %w", err)
	}
	ix := &Index{db: db}
	if n == 0 {
		if _, err := ix.Rebuild(ctx, src); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Put replaces the indexed text of name.
func (ix *Index) Put(ctx context.Context, name, text string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_search WHERE lower(name) = lower(?)`, name); err != nil {
		return fmt.Errorf("unindex %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO page_search (name, text) VALUES (?, ?)`, name, text); err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	return tx.Commit()
}

// Remove drops name from the index.
func (ix *Index) Remove(ctx context.Context, name string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM page_search WHERE lower(name) = lower(?)`, name); err != nil {
		return fmt.Errorf("unindex %s: %w", name, err)
	}
	return nil
}

// Refresh re-indexes name from src, or removes it when it no longer
// exists.
func (ix *Index) Refresh(ctx context.Context, src Source, name string) error {
	text, err := src.Text(ctx, name, provider.Latest)
	if errors.Is(err, provider.ErrNotFound) {
		return ix.Remove(ctx, name)
	}
	if err != nil {
		return err
	}
	return ix.Put(ctx, name, text)
}

// Rebuild empties the index and fills it from every page in src. It
// returns the number of pages indexed.
func (ix *Index) Rebuild(ctx context.Context, src Source) (int, error) {
	pages, err := src.List(ctx, service.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("list pages: %w", err)
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		if texts[i], err = src.Text(ctx, p.Name, provider.Latest); err != nil {
			return 0, fmt.Errorf("read %s: %w", p.Name, err)
		}
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_search`); err != nil {
		return 0, fmt.Errorf("clear search index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO page_search (name, text) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for i, p := range pages {
		if _, err := stmt.ExecContext(ctx, p.Name, texts[i]); err != nil {
			return 0, fmt.Errorf("index %s: %w", p.Name, err)
		}
	}
	return len(pages), tx.Commit()
}

// Options configures a search.
type Options struct {
	Prefix    string // Scope search to a page name prefix
	Limit     int    // Maximum hits (0 = DefaultLimit)
	NamesOnly bool   // Only output page names
}

// Hit is one matching page. Snippet shows the best match with the
// matched terms in brackets.
type Hit struct {
	Page    string  `json:"page"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

// Result contains the outcome of a search.
type Result struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
}

// Search returns the pages matching query, best match first.
func (ix *Index) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := ix.db.QueryContext(ctx, `
		SELECT name, snippet(page_search, 1, '[', ']', '...', 12), bm25(page_search)
		FROM page_search
		WHERE page_search MATCH ? AND (? = '' OR name LIKE ? ESCAPE '\')
		ORDER BY bm25(page_search)
		LIMIT ?`,
		query, opts.Prefix, likePrefix(opts.Prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Page, &h.Snippet, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// likePrefix escapes LIKE wildcards in prefix and appends "%".
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// Run searches ix and writes one line per hit to w.
func Run(ctx context.Context, w io.Writer, ix *Index, query string, opts Options) (Result, error) {
	result := Result{Query: query}
	hits, err := ix.Search(ctx, query, opts)
	if err != nil {
		return result, err
	}
	result.Hits = hits

	for _, h := range hits {
		if opts.NamesOnly {
			fmt.Fprintln(w, h.Page)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", h.Page, strings.Join(strings.Fields(h.Snippet), " "))
	}
	return result, nil
}
