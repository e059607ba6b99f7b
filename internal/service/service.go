// Package service defines the shared interface for wiki operations.
// Commands, extensions, the HTTP API and the MCP server depend on this
// interface rather than on internal/wiki, so they can be tested with fakes.
package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/lock"
	"github.com/jpl-au/wikid/internal/provider"
)

var (
	// ErrLocked is returned by Lock when another user holds the page.
	ErrLocked = errors.New("page is locked")
	// ErrNotLocked is returned by Unlock when the page has no lock.
	ErrNotLocked = errors.New("page is not locked")
	// ErrNotLockHolder is returned by Unlock when the caller does not hold
	// the lock and force is not set.
	ErrNotLockHolder = errors.New("lock is held by another user")
)

// SaveOptions describes who saves a page and why.
type SaveOptions struct {
	Author     string
	ChangeNote string
	// Attributes are custom page properties, validated against the
	// configured limits.
	Attributes map[string]string
}

// ListOptions filters page listings.
type ListOptions struct {
	// Prefix restricts the listing to names starting with it,
	// case-insensitively.
	Prefix string
	// Since restricts the listing to pages changed after it.
	Since time.Time
}

// RenameResult reports the pages whose links were rewritten by a rename.
type RenameResult struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Rewritten []string `json:"rewritten,omitempty"`
}

// PendingSave is a save held for approval.
type PendingSave struct {
	ID         string    `json:"id"`
	Page       string    `json:"page"`
	Author     string    `json:"author"`
	ChangeNote string    `json:"changenote,omitempty"`
	Created    time.Time `json:"created"`
}

// Service defines all wiki operations. Always call Close when done.
//
// Example:
//
//	svc, err := wiki.New(ctx)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	text, err := svc.Text(ctx, "MainPage", provider.Latest)
type Service interface {
	// Close releases stores, caches, locks and the workspace database.
	Close() error

	// Save stores text as the newest version of a page, then updates the
	// reference index and notifies extensions.
	Save(ctx context.Context, name, text string, opts SaveOptions) (*provider.Page, error)
	// Text returns a page's text at version (provider.Latest for newest).
	Text(ctx context.Context, name string, version int) (string, error)
	// Info returns a page's metadata without its text.
	Info(ctx context.Context, name string, version int) (*provider.Page, error)
	// History returns every version of a page, newest first.
	History(ctx context.Context, name string) ([]provider.Page, error)
	// List returns the latest version of matching pages, sorted by name.
	List(ctx context.Context, opts ListOptions) ([]provider.Page, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes a page, its history and its attachments.
	Delete(ctx context.Context, name string) error
	// DeleteVersion removes one version. Removing the only version deletes
	// the page.
	DeleteVersion(ctx context.Context, name string, version int) error
	// Rename moves a page and its attachments, then rewrites links to it in
	// every referring page.
	Rename(ctx context.Context, from, to, author string) (*RenameResult, error)
	// Diff compares two versions of a page, or a page with another page.
	Diff(ctx context.Context, name string, opts diff.Options) (diff.Result, error)

	// Pending returns the saves held for approval, oldest first.
	Pending(ctx context.Context) ([]PendingSave, error)
	// Decide commits (approve) or discards a held save. A committed save
	// updates the reference index and notifies extensions like Save.
	Decide(ctx context.Context, id string, approve bool) (*provider.Page, error)

	// Attach stores r as the next version of an attachment.
	Attach(ctx context.Context, att *provider.Attachment, r io.Reader) error
	// Attachment returns the metadata and content of one attachment version.
	// The caller closes the reader.
	Attachment(ctx context.Context, page, file string, version int) (*provider.Attachment, io.ReadCloser, error)
	Attachments(ctx context.Context, page string) ([]provider.Attachment, error)
	AttachmentHistory(ctx context.Context, page, file string) ([]provider.Attachment, error)
	// DeleteAttachment removes one version, or every version when version
	// is provider.Latest and all is set.
	DeleteAttachment(ctx context.Context, page, file string, version int, all bool) error

	Referrers(ctx context.Context, name string) ([]string, error)
	RefersTo(ctx context.Context, name string) ([]string, error)
	Uncreated(ctx context.Context) ([]string, error)
	Unreferenced(ctx context.Context) ([]string, error)
	// RebuildReferences recomputes the reference index from every page.
	RebuildReferences(ctx context.Context) error

	// Lock takes the advisory edit lock on a page. If user already holds
	// it the existing lock is returned; another holder yields ErrLocked.
	Lock(ctx context.Context, name, user string) (*lock.PageLock, error)
	// Unlock releases the lock on a page held by user, or any holder's
	// lock when force is set.
	Unlock(ctx context.Context, name, user string, force bool) error
	Locks() []lock.PageLock

	// ProviderInfo describes the configured page and attachment stores.
	ProviderInfo() string
	// DB exposes the workspace database for extensions that need their own
	// tables. Do not close it directly.
	DB() *sql.DB
}
