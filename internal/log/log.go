// Package log provides the audit trail for wikid operations.
// Entries are stored in ~/.wikid/log/wikid-log.db and record CLI commands,
// HTTP and MCP requests, and background conditions worth a human's attention
// (an undersized cache, a refused attachment move, a stale reference index).
//
// # Fluent API
//
//	log.Event("page:write", "write").
//		Author(author).
//		Page(name).
//		Version(page.Version).
//		Write(err)
//
//	log.Event("cache:pages", "overflow").
//		Detail("entries", n).
//		Warn(nil)
//
// The source parameter is "{area}:{command}" for CLI commands, "http:{route}"
// or "mcp:{tool}" for servers and "{package}:{component}" for internal events.
package log

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Levels recorded with each entry.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	global *Logger
	mu     sync.Mutex
)

// Entry represents a single log entry.
type Entry struct {
	Source  string // e.g. "page:cat", "mcp:wiki_read", "provider:versioning"
	Author  string // who performed the action
	Action  string // verb: read, write, delete, move, rebuild, ...
	Page    string // page or attachment the action targets
	Version int    // version requested or produced
	Target  string // second page for move and rename
	Level   string // info, warn or error

	Start int64 // unix millis when Event() was called
	End   int64 // unix millis when the entry was written

	Success bool
	Error   string
	Detail  map[string]any
}

// Builder constructs a log entry. Create with [Event], chain setters, then
// finish with [Builder.Write] or [Builder.Warn].
type Builder struct {
	entry Entry
}

// Event creates a new log entry builder for an operation.
func Event(source, action string) *Builder {
	return &Builder{
		entry: Entry{
			Source: source,
			Action: action,
			Level:  LevelInfo,
			Start:  time.Now().UnixMilli(),
		},
	}
}

// Author sets who performed the operation.
func (b *Builder) Author(author string) *Builder {
	b.entry.Author = author
	return b
}

// Page sets the page (or "page/file" attachment) the operation affects.
func (b *Builder) Page(name string) *Builder {
	b.entry.Page = name
	return b
}

// Version sets the page or attachment version involved.
func (b *Builder) Version(version int) *Builder {
	b.entry.Version = version
	return b
}

// Target sets the destination of a move or rename.
func (b *Builder) Target(name string) *Builder {
	b.entry.Target = name
	return b
}

// Detail adds a key-value pair to the entry's detail map.
func (b *Builder) Detail(key string, value any) *Builder {
	if b.entry.Detail == nil {
		b.entry.Detail = make(map[string]any)
	}
	b.entry.Detail[key] = value
	return b
}

// Write writes the entry, deriving success and level from err.
func (b *Builder) Write(err error) {
	b.entry.End = time.Now().UnixMilli()
	b.entry.Success = err == nil
	if err != nil {
		b.entry.Error = err.Error()
		b.entry.Level = LevelError
	}
	Log(b.entry)
}

// Warn writes the entry as an operation that carried on but needs
// attention. A non-nil err is recorded as the reason.
func (b *Builder) Warn(err error) {
	b.entry.End = time.Now().UnixMilli()
	b.entry.Success = true
	b.entry.Level = LevelWarn
	if err != nil {
		b.entry.Error = err.Error()
	}
	Log(b.entry)
}

// Open initialises the global logger. Safe to call multiple times.
// Callers may ignore the error; logging is best-effort.
func Open() error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}

	p := dbPath()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return err
	}

	global = &Logger{db: db}
	return nil
}

// SetWorkspace sets the workspace identifier for subsequent entries.
// The dir should be the absolute path to the .wikid directory.
func SetWorkspace(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.workspace = hash(dir)
	}
}

// Log writes an entry. Safe to call if the logger is not initialised (no-op).
func Log(e Entry) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.log(e)
}

// Close closes the global logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.db.Close()
		global = nil
	}
}
