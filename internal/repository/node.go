// node.go implements reads and writes of individual nodes.
//
// Design: paths are stored lower-cased so lookups are case-insensitive; the
// caller's spelling of each segment survives as the node title. Versions are
// explicit: Save changes the live node only, CheckIn snapshots it.

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Node is one entry in the content tree. When returned from Versions or
// Version, the content fields hold that snapshot and Version its number.
type Node struct {
	UUID        string
	Path        string // lower-cased, e.g. "/pages/main/foo"
	Parent      string // lower-cased parent path, "" for the root
	Title       string // last segment in its original case
	Content     string
	Author      string
	ChangeNote  string
	Attrs       map[string]string
	Modified    time.Time
	Version     int // number of the newest snapshot, 0 when never checked in
	Versionable bool
}

const nodeCols = `uuid, path, parent, title, content, author, changenote, attrs, modified, version, versionable`

// Clean normalises p to a rooted, slash-separated path without a trailing
// slash. Case is preserved.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Key returns the stored form of p.
func Key(p string) string {
	return strings.ToLower(Clean(p))
}

// Segments splits p into its non-empty path segments.
func Segments(p string) []string {
	p = strings.Trim(Clean(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsBelow reports whether p is strictly beneath root.
func IsBelow(p, root string) bool {
	root = Key(root)
	if root == "/" {
		return Key(p) != "/"
	}
	return strings.HasPrefix(Key(p), root+"/")
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanNode(sc scanner) (*Node, error) {
	var n Node
	var attrs string
	var modified int64
	err := sc.Scan(&n.UUID, &n.Path, &n.Parent, &n.Title, &n.Content, &n.Author,
		&n.ChangeNote, &attrs, &modified, &n.Version, &n.Versionable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.Attrs, err = decodeAttrs(attrs); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", n.Path, err)
	}
	n.Modified = time.UnixMilli(modified)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	defer rows.Close()
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func encodeAttrs(attrs map[string]string) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

func decodeAttrs(s string) (map[string]string, error) {
	attrs := map[string]string{}
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func getNode(ctx context.Context, q querier, p string) (*Node, error) {
	n, err := scanNode(q.QueryRowContext(ctx, `SELECT `+nodeCols+` FROM nodes WHERE path = ?`, Key(p)))
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", Clean(p), err)
	}
	return n, nil
}

// Node returns the node at p.
func (s *Session) Node(ctx context.Context, p string) (*Node, error) {
	return getNode(ctx, s.conn, p)
}

// NodeByUUID returns the node with the given identifier.
func (s *Session) NodeByUUID(ctx context.Context, id string) (*Node, error) {
	n, err := scanNode(s.conn.QueryRowContext(ctx, `SELECT `+nodeCols+` FROM nodes WHERE uuid = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	return n, nil
}

// Exists reports whether a node exists at p.
func (s *Session) Exists(ctx context.Context, p string) (bool, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE path = ?`, Key(p)).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s: %w", Clean(p), err)
	}
	return n > 0, nil
}

// ensure creates every missing node along p, titling each with its segment
// as spelled in p. Existing nodes keep their titles.
func ensure(ctx context.Context, q querier, p string) error {
	cur := ""
	parent := ""
	now := time.Now().UnixMilli()
	for _, seg := range append([]string{""}, Segments(p)...) {
		if seg == "" {
			cur = "/"
		} else {
			parent = cur
			cur = path.Join(cur, seg)
		}
		key := strings.ToLower(cur)
		_, err := q.ExecContext(ctx,
			`INSERT INTO nodes (uuid, path, parent, title, modified) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(path) DO NOTHING`,
			uuid.NewString(), key, strings.ToLower(parent), seg, now)
		if err != nil {
			return fmt.Errorf("create node %s: %w", cur, err)
		}
	}
	return nil
}

// Ensure returns the node at p, creating it and any missing ancestors.
func (s *Session) Ensure(ctx context.Context, p string) (*Node, error) {
	var n *Node
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if err := ensure(ctx, tx, p); err != nil {
			return err
		}
		var err error
		n, err = getNode(ctx, tx, p)
		return err
	})
	return n, err
}

// Add creates the node at p and any missing ancestors. It fails with
// ErrExists if p is already present.
func (s *Session) Add(ctx context.Context, p string) (*Node, error) {
	var n *Node
	err := s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := getNode(ctx, tx, p); err == nil {
			return fmt.Errorf("add %s: %w", Clean(p), ErrExists)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := ensure(ctx, tx, p); err != nil {
			return err
		}
		var err error
		n, err = getNode(ctx, tx, p)
		return err
	})
	return n, err
}

// Save writes the live fields of n (content, author, change note,
// attributes, modified time). It does not create a version.
func (s *Session) Save(ctx context.Context, n *Node) error {
	attrs, err := encodeAttrs(n.Attrs)
	if err != nil {
		return err
	}
	if n.Modified.IsZero() {
		n.Modified = time.Now()
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE nodes SET content = ?, author = ?, changenote = ?, attrs = ?, modified = ? WHERE uuid = ?`,
		n.Content, n.Author, n.ChangeNote, attrs, n.Modified.UnixMilli(), n.UUID)
	if err != nil {
		return fmt.Errorf("save %s: %w", n.Path, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save %s: %w", n.Path, err)
	}
	if rows == 0 {
		return fmt.Errorf("save %s: %w", n.Path, ErrNotFound)
	}
	return nil
}

// Children returns the direct children of p ordered by path.
func (s *Session) Children(ctx context.Context, p string) ([]Node, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+nodeCols+` FROM nodes WHERE parent = ? ORDER BY path`, Key(p))
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", Clean(p), err)
	}
	return scanNodes(rows)
}

// Descendants returns every node strictly beneath p ordered by path.
func (s *Session) Descendants(ctx context.Context, p string) ([]Node, error) {
	prefix := subtreePrefix(p)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+nodeCols+` FROM nodes WHERE substr(path, 1, ?) = ? ORDER BY path`,
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("descendants of %s: %w", Clean(p), err)
	}
	return scanNodes(rows)
}

// subtreePrefix is the path prefix shared by every node beneath p. SQLite's
// substr counts characters, so callers measure it with utf8.RuneCountInString.
func subtreePrefix(p string) string {
	k := Key(p)
	if k == "/" {
		return "/"
	}
	return k + "/"
}
