// Package repository stores the hierarchical content tree used by the
// repository backend. Nodes live in SQLite under lower-cased paths, keep the
// original case of each segment as a title, and can be checked in to build a
// version history.
//
// All node operations run on a [Session], which pins one database connection
// for the duration of a unit of work. Sessions are scoped: [Repository.WithSession]
// acquires one, hands it to a callback and always releases it.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/google/uuid"

	// Register sqlite driver
	_ "modernc.org/sqlite"
)

//go:embed sql/*.sql
var schemas embed.FS

var (
	// ErrNotFound indicates the node or version does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrExists prevents a move or add from replacing an existing node.
	ErrExists = errors.New("node already exists")
	// ErrUnsupported is returned by version operations on a node that has
	// never been checked in.
	ErrUnsupported = errors.New("node has no version history")
	// ErrNoSuchVersion is returned when a versionable node lacks the
	// requested version.
	ErrNoSuchVersion = errors.New("no such node version")
	// ErrCycle rejects moving a node beneath itself.
	ErrCycle = errors.New("cannot move a node beneath itself")
)

// Repository is an SQLite-backed node tree.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the repository database at path and
// applies the schema.
//
// Per-connection pragmas go in the DSN so every pooled connection gets them,
// not just the one that happened to run a PRAGMA statement. Write
// transactions start IMMEDIATE so two sessions upgrading from read to write
// wait on the busy timeout instead of failing with SQLITE_BUSY.
func Open(path string) (*Repository, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	// WAL persists in the database file, so setting it once is enough.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := ExecEmbedded(db, schemas, "sql"); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Close releases the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// DB exposes the database for packages that keep their own tables
// alongside the node tree, such as the reference index.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// ExecEmbedded executes all .sql files from an embedded filesystem in
// alphabetical order. Each file should use IF NOT EXISTS so it can run on
// every open.
func ExecEmbedded(db *sql.DB, fsys embed.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read schema directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := dir + "/" + entry.Name()
		data, err := fsys.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Session is one unit of work against the repository. It belongs to a single
// goroutine chain and must not outlive the WithSession call that created it.
type Session struct {
	ID   string
	User string

	repo *Repository
	conn *sql.Conn
}

type sessionKey struct{}

// SessionFrom returns the session carried by ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// WithSession runs fn with a session for user. If ctx already carries a
// session on this repository, fn reuses it and only the outermost call
// releases the connection.
func (r *Repository) WithSession(ctx context.Context, user string, fn func(context.Context, *Session) error) error {
	if s := SessionFrom(ctx); s != nil && s.repo == r {
		return fn(ctx, s)
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer conn.Close()

	s := &Session{ID: uuid.NewString(), User: user, repo: r, conn: conn}
	return fn(context.WithValue(ctx, sessionKey{}, s), s)
}

// tx runs fn inside a transaction on the session's connection.
func (s *Session) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
