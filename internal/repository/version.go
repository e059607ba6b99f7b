// version.go implements node version history and subtree operations.
//
// Separated from node.go because these operations span several rows and run
// in transactions: checking in copies the live node into node_versions,
// removing the newest version promotes its predecessor back to the live node,
// and moves rewrite the paths of a whole subtree.

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// CheckIn snapshots the live node at p as a new version and returns its
// number. The first check-in makes the node versionable.
func (s *Session) CheckIn(ctx context.Context, p string) (int, error) {
	var v int
	err := s.tx(ctx, func(tx *sql.Tx) error {
		n, err := getNode(ctx, tx, p)
		if err != nil {
			return err
		}
		attrs, err := encodeAttrs(n.Attrs)
		if err != nil {
			return err
		}
		v = n.Version + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_versions (uuid, version, content, author, changenote, attrs, modified)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.UUID, v, n.Content, n.Author, n.ChangeNote, attrs, n.Modified.UnixMilli()); err != nil {
			return fmt.Errorf("check in %s: %w", n.Path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET version = ?, versionable = 1 WHERE uuid = ?`, v, n.UUID); err != nil {
			return fmt.Errorf("check in %s: %w", n.Path, err)
		}
		return nil
	})
	return v, err
}

func versionedNode(ctx context.Context, q querier, p string) (*Node, error) {
	n, err := getNode(ctx, q, p)
	if err != nil {
		return nil, err
	}
	if !n.Versionable {
		return nil, fmt.Errorf("%s: %w", n.Path, ErrUnsupported)
	}
	return n, nil
}

func scanSnapshot(n Node, sc scanner) (*Node, error) {
	var attrs string
	var modified int64
	n.Attrs = nil
	if err := sc.Scan(&n.Version, &n.Content, &n.Author, &n.ChangeNote, &attrs, &modified); err != nil {
		return nil, err
	}
	var err error
	if n.Attrs, err = decodeAttrs(attrs); err != nil {
		return nil, fmt.Errorf("decode attributes of %s: %w", n.Path, err)
	}
	n.Modified = time.UnixMilli(modified)
	return &n, nil
}

const snapshotCols = `version, content, author, changenote, attrs, modified`

// Versions returns the snapshots of the node at p, newest first. A node that
// has never been checked in yields ErrUnsupported.
func (s *Session) Versions(ctx context.Context, p string) ([]Node, error) {
	n, err := versionedNode(ctx, s.conn, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+snapshotCols+` FROM node_versions WHERE uuid = ? ORDER BY version DESC`, n.UUID)
	if err != nil {
		return nil, fmt.Errorf("versions of %s: %w", n.Path, err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		v, err := scanSnapshot(*n, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Version returns snapshot v of the node at p.
func (s *Session) Version(ctx context.Context, p string, v int) (*Node, error) {
	n, err := versionedNode(ctx, s.conn, p)
	if err != nil {
		return nil, err
	}
	return snapshot(ctx, s.conn, n, v)
}

func snapshot(ctx context.Context, q querier, n *Node, v int) (*Node, error) {
	out, err := scanSnapshot(*n, q.QueryRowContext(ctx,
		`SELECT `+snapshotCols+` FROM node_versions WHERE uuid = ? AND version = ?`, n.UUID, v))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s version %d: %w", n.Path, v, ErrNoSuchVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("%s version %d: %w", n.Path, v, err)
	}
	return out, nil
}

// RemoveVersion deletes snapshot v of the node at p. Removing the newest
// snapshot restores the live node from the one before it. It returns the
// number of snapshots that remain.
func (s *Session) RemoveVersion(ctx context.Context, p string, v int) (int, error) {
	var remaining int
	err := s.tx(ctx, func(tx *sql.Tx) error {
		n, err := versionedNode(ctx, tx, p)
		if err != nil {
			return err
		}
		if _, err := snapshot(ctx, tx, n, v); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM node_versions WHERE uuid = ? AND version = ?`, n.UUID, v); err != nil {
			return fmt.Errorf("remove %s version %d: %w", n.Path, v, err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM node_versions WHERE uuid = ?`, n.UUID).Scan(&remaining); err != nil {
			return fmt.Errorf("count versions of %s: %w", n.Path, err)
		}
		if v != n.Version || remaining == 0 {
			return nil
		}

		var prev int
		if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM node_versions WHERE uuid = ?`, n.UUID).Scan(&prev); err != nil {
			return fmt.Errorf("find previous version of %s: %w", n.Path, err)
		}
		old, err := snapshot(ctx, tx, n, prev)
		if err != nil {
			return err
		}
		attrs, err := encodeAttrs(old.Attrs)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE nodes SET content = ?, author = ?, changenote = ?, attrs = ?, modified = ?, version = ? WHERE uuid = ?`,
			old.Content, old.Author, old.ChangeNote, attrs, old.Modified.UnixMilli(), prev, n.UUID)
		if err != nil {
			return fmt.Errorf("promote %s version %d: %w", n.Path, prev, err)
		}
		return nil
	})
	return remaining, err
}

// Remove deletes the node at p with its whole subtree and all their
// snapshots.
func (s *Session) Remove(ctx context.Context, p string) error {
	key := Key(p)
	prefix := subtreePrefix(p)
	plen := utf8.RuneCountInString(prefix)
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM node_versions WHERE uuid IN
			 (SELECT uuid FROM nodes WHERE path = ? OR substr(path, 1, ?) = ?)`,
			key, plen, prefix); err != nil {
			return fmt.Errorf("remove versions of %s: %w", key, err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = ? OR substr(path, 1, ?) = ?`, key, plen, prefix)
		if err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		if rows == 0 {
			return fmt.Errorf("remove %s: %w", key, ErrNotFound)
		}
		return nil
	})
}

// Move relocates the node at from, with its subtree and history, to to.
// The moved node takes the last segment of to as its title; missing
// ancestors of to are created.
func (s *Session) Move(ctx context.Context, from, to string) error {
	src, dst := Key(from), Key(to)
	if src == dst {
		return nil
	}
	if IsBelow(dst, src) {
		return fmt.Errorf("move %s to %s: %w", src, dst, ErrCycle)
	}
	segs := Segments(to)
	if len(segs) == 0 {
		return fmt.Errorf("move %s to %s: %w", src, dst, ErrExists)
	}

	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := getNode(ctx, tx, from); err != nil {
			return err
		}
		if _, err := getNode(ctx, tx, to); err == nil {
			return fmt.Errorf("move %s to %s: %w", src, dst, ErrExists)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		parent := path.Dir(Clean(to))
		if err := ensure(ctx, tx, parent); err != nil {
			return err
		}

		prefix := src + "/"
		n := utf8.RuneCountInString(src) + 1
		_, err := tx.ExecContext(ctx,
			`UPDATE nodes SET
			   path = ? || substr(path, ?),
			   parent = CASE WHEN path = ? THEN ? ELSE ? || substr(parent, ?) END,
			   title = CASE WHEN path = ? THEN ? ELSE title END
			 WHERE path = ? OR substr(path, 1, ?) = ?`,
			dst, n,
			src, strings.ToLower(parent), dst, n,
			src, segs[len(segs)-1],
			src, utf8.RuneCountInString(prefix), prefix)
		if err != nil {
			return fmt.Errorf("move %s to %s: %w", src, dst, err)
		}
		return nil
	})
}
