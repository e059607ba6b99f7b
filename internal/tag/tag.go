// Package tag provides page tagging for the CLI layer.
//
// Tags are free labels kept in the page_tags table of the workspace
// database, outside page history. Tagging a page does not create a
// version. Page and tag names compare case-insensitively.
package tag

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
)

//go:embed sql/*.sql
var schemas embed.FS

// ErrInvalidTag is returned for an empty tag or one containing whitespace.
var ErrInvalidTag = errors.New("invalid tag")

// Pages resolves page names to their stored form.
type Pages interface {
	Info(ctx context.Context, name string, version int) (*provider.Page, error)
}

// Store reads and writes the page_tags table.
type Store struct {
	db *sql.DB
}

// Open creates the tag table in db if needed.
func Open(db *sql.DB) (*Store, error) {
	if err := repository.ExecEmbedded(db, schemas, "sql"); err != nil {
		return nil, fmt.Errorf("tag schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Count is a tag and the number of pages carrying it.
type Count struct {
	Tag   string `json:"tag"`
	Pages int    `json:"pages"`
}

// Result contains the outcome of a tag operation.
type Result struct {
	Page   string   `json:"page,omitempty"`
	Tag    string   `json:"tag,omitempty"`
	Action string   `json:"action,omitempty"`
	Tags   []string `json:"tags"`
	Pages  []string `json:"pages,omitempty"`
	Counts []Count  `json:"counts,omitempty"`
}

// Validate checks that t can be stored as a tag.
func Validate(t string) error {
	if t == "" || strings.IndexFunc(t, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidTag, t)
	}
	return nil
}

// Add tags page with t. Adding a tag twice is not an error.
func (s *Store) Add(ctx context.Context, page, t string) error {
	if err := Validate(t); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO page_tags (page, tag) VALUES (?, ?)`, page, t)
	return err
}

// Remove drops t from page. It reports whether the tag was present.
func (s *Store) Remove(ctx context.Context, page, t string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_tags WHERE page = ? AND tag = ?`, page, t)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Tags returns the tags of page in name order.
func (s *Store) Tags(ctx context.Context, page string) ([]string, error) {
	return s.column(ctx, `SELECT tag FROM page_tags WHERE page = ? ORDER BY tag`, page)
}

// Pages returns the pages tagged with t in name order.
func (s *Store) Pages(ctx context.Context, t string) ([]string, error) {
	return s.column(ctx, `SELECT page FROM page_tags WHERE tag = ? ORDER BY page`, t)
}

// Counts returns every tag in use with its page count.
func (s *Store) Counts(ctx context.Context) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT min(tag), count(*) FROM page_tags GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Tag, &c.Pages); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DropPage removes every tag of page.
func (s *Store) DropPage(ctx context.Context, page string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM page_tags WHERE page = ?`, page)
	return err
}

// Move carries the tags of from over to to, merging with any tags to
// already has.
func (s *Store) Move(ctx context.Context, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	// Names equal under NOCASE share rows, so a case-only rename updates in place.
	if strings.EqualFold(from, to) {
		if _, err := tx.ExecContext(ctx, `UPDATE page_tags SET page = ? WHERE page = ?`, to, from); err != nil {
			return fmt.Errorf("rename tags: %w", err)
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO page_tags (page, tag) SELECT ?, tag FROM page_tags WHERE page = ?`,
		to, from); err != nil {
		return fmt.Errorf("copy tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_tags WHERE page = ?`, from); err != nil {
		return fmt.Errorf("drop old tags: %w", err)
	}
	return tx.Commit()
}

func (s *Store) column(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Add tags an existing page and prints the outcome.
func Add(ctx context.Context, w io.Writer, pages Pages, s *Store, name, t string) (Result, error) {
	result := Result{Page: name, Tag: t, Action: "add"}

	p, err := pages.Info(ctx, name, provider.Latest)
	if err != nil {
		return result, err
	}
	result.Page = p.Name

	if err := s.Add(ctx, p.Name, t); err != nil {
		return result, err
	}
	if result.Tags, err = s.Tags(ctx, p.Name); err != nil {
		return result, err
	}

	fmt.Fprintf(w, "Added tag %q to %s\n", t, p.Name)
	return result, nil
}

// Remove untags a page and prints the outcome. Removing a tag the page
// does not carry is not an error.
func Remove(ctx context.Context, w io.Writer, s *Store, name, t string) (Result, error) {
	result := Result{Page: name, Tag: t, Action: "remove"}

	removed, err := s.Remove(ctx, name, t)
	if err != nil {
		return result, err
	}
	if result.Tags, err = s.Tags(ctx, name); err != nil {
		return result, err
	}

	if removed {
		fmt.Fprintf(w, "Removed tag %q from %s\n", t, name)
	} else {
		fmt.Fprintf(w, "%s has no tag %q\n", name, t)
	}
	return result, nil
}

// List prints the tags of name, or every tag with its page count when name
// is empty.
func List(ctx context.Context, w io.Writer, s *Store, name string) (Result, error) {
	result := Result{Page: name, Tags: []string{}}

	if name != "" {
		tags, err := s.Tags(ctx, name)
		if err != nil {
			return result, err
		}
		result.Tags = tags
		for _, t := range tags {
			fmt.Fprintln(w, t)
		}
		return result, nil
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		return result, err
	}
	result.Counts = counts
	for _, c := range counts {
		result.Tags = append(result.Tags, c.Tag)
		fmt.Fprintf(w, "%s (%d)\n", c.Tag, c.Pages)
	}
	return result, nil
}

// Tagged prints the pages carrying t.
func Tagged(ctx context.Context, w io.Writer, s *Store, t string) (Result, error) {
	result := Result{Tag: t, Tags: []string{t}, Pages: []string{}}

	pages, err := s.Pages(ctx, t)
	if err != nil {
		return result, err
	}
	result.Pages = pages
	for _, p := range pages {
		fmt.Fprintln(w, p)
	}
	return result, nil
}
