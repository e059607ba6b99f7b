// log_storage.go implements SQLite-based persistent audit logging.
//
// Separated from log.go to isolate database concerns. log.go provides the
// fluent API, this file handles persistence and querying. The workspace field
// is a blake2b hash of the workspace directory so several wikis can share one
// log database without recording their locations.
//
// Design: errors during logging never reach the caller. A page save succeeds
// even if it cannot be recorded; the failure is reported on stderr instead.

package log

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// Logger writes audit log entries to a SQLite database.
type Logger struct {
	db        *sql.DB
	workspace string
}

func (l *Logger) log(e Entry) {
	var detail *string
	if len(e.Detail) > 0 {
		if b, err := json.Marshal(e.Detail); err == nil {
			s := string(b)
			detail = &s
		}
	}

	success := 0
	if e.Success {
		success = 1
	}
	level := e.Level
	if level == "" {
		level = LevelInfo
	}

	_, err := l.db.Exec(`
		INSERT INTO log (start, end, workspace, source, author, action, page,
		                 version, target, level, success, error, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Start, e.End, l.workspace, e.Source, nilIfEmpty(e.Author), e.Action,
		nilIfEmpty(e.Page), nilIfZero(e.Version), nilIfEmpty(e.Target),
		level, success, nilIfEmpty(e.Error), detail,
	)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "wikid: audit log write failed: %v\n", err)
	}
}

// Query filters entries returned by Recent.
type Query struct {
	Page  string // exact page name, empty for all
	Level string // minimum level: info, warn or error
	Limit int    // maximum entries, 0 for 50
}

// Recent returns the newest entries for the current workspace matching q.
func Recent(q Query) ([]Entry, error) {
	mu.Lock()
	l := global
	mu.Unlock()
	if l == nil {
		return nil, nil
	}

	where := []string{"workspace = ?"}
	args := []any{l.workspace}
	if q.Page != "" {
		where = append(where, "page = ?")
		args = append(args, q.Page)
	}
	switch q.Level {
	case LevelWarn:
		where = append(where, "level IN ('warn', 'error')")
	case LevelError:
		where = append(where, "level = 'error'")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := l.db.Query(`
		SELECT start, end, source, author, action, page, version, target,
		       level, success, error, detail
		FROM log WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var author, page, target, errMsg, detail sql.NullString
		var version sql.NullInt64
		var success int
		if err := rows.Scan(&e.Start, &e.End, &e.Source, &author, &e.Action, &page,
			&version, &target, &e.Level, &success, &errMsg, &detail); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Author = author.String
		e.Page = page.String
		e.Target = target.String
		e.Version = int(version.Int64)
		e.Success = success == 1
		e.Error = errMsg.String
		if detail.Valid {
			_ = json.Unmarshal([]byte(detail.String), &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// dbPathFunc returns the database path. Tests override it.
var dbPathFunc = defaultDBPath

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wikid", "log", "wikid-log.db")
	}
	return filepath.Join(home, ".wikid", "log", "wikid-log.db")
}

func dbPath() string {
	return dbPathFunc()
}

// DBPath returns the path to the log database.
func DBPath() string {
	return dbPath()
}

// hash creates a workspace identifier from the directory path.
func hash(s string) string {
	h, err := blake2b.New(8, nil) // 64-bit = 16 hex chars
	if err != nil {
		panic("blake2b.New failed: " + err.Error())
	}
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// migrate creates the log table if it doesn't exist.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			start     INTEGER NOT NULL,
			end       INTEGER NOT NULL,
			workspace TEXT NOT NULL,
			source    TEXT NOT NULL,
			author    TEXT,
			action    TEXT NOT NULL,
			page      TEXT,
			version   INTEGER,
			target    TEXT,
			level     TEXT NOT NULL DEFAULT 'info',
			success   INTEGER NOT NULL,
			error     TEXT,
			detail    TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_log_start ON log(start);
		CREATE INDEX IF NOT EXISTS idx_log_workspace ON log(workspace);
		CREATE INDEX IF NOT EXISTS idx_log_page ON log(page);
	`)
	return err
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZero(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
