// Package provider defines wikid's page and attachment stores and their
// file-based implementations.
//
// Every store implements [PageProvider] or [AttachmentProvider]:
//
//   - FileSystemProvider keeps one file per page with a properties sidecar
//   - VersioningProvider adds an OLD/ history tree on top of the flat layout
//   - BasicAttachmentProvider keeps numbered attachment versions per page
//   - CachingProvider and CachingAttachmentProvider wrap any of the above
//
// Stores are selected by name through the registry in registry.go, so the
// caching decorators and alternative backends (see provider/s3) can be
// chosen from configuration.
package provider

import (
	"context"
	"io"
	"maps"
	"time"
)

// Latest selects the newest version of a page or attachment.
const Latest = -1

// Page describes one version of a wiki page. Content is fetched separately.
type Page struct {
	Name         string            `json:"name"`
	Version      int               `json:"version"`
	Author       string            `json:"author,omitempty"`
	ChangeNote   string            `json:"changenote,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Size         int64             `json:"size"`
	ViewCount    int               `json:"viewcount,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`

	// HasMetadata is set once the page text has been scanned for
	// [{SET name=value}] directives.
	HasMetadata bool `json:"has_metadata,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	c := *p
	c.Attributes = maps.Clone(p.Attributes)
	return &c
}

// SetAttribute sets a custom attribute, allocating the map if needed.
func (p *Page) SetAttribute(key, value string) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}
	p.Attributes[key] = value
}

// Attachment describes one version of a file attached to a page.
type Attachment struct {
	Page         string    `json:"page"`
	FileName     string    `json:"file"`
	Version      int       `json:"version"`
	Author       string    `json:"author,omitempty"`
	ChangeNote   string    `json:"changenote,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	// Cacheable is false when the file name matches the configured
	// no-cache pattern; HTTP handlers must then forbid browser caching.
	Cacheable bool `json:"cacheable"`
}

// Name returns the attachment's wiki name, "page/file".
func (a *Attachment) Name() string { return a.Page + "/" + a.FileName }

// PageProvider stores versioned page text and metadata.
//
// Methods return ErrNotFound for a missing page and an error matching
// ErrNoSuchVersion for a version outside the page's history.
type PageProvider interface {
	// PutPageText stores text as the new latest version of p.Name. On
	// return p.Version and p.Author reflect what was stored.
	PutPageText(ctx context.Context, p *Page, text string) error
	PageText(ctx context.Context, name string, version int) (string, error)
	PageExists(ctx context.Context, name string, version int) (bool, error)
	// AllPages returns the latest version of every page, sorted by name.
	AllPages(ctx context.Context) ([]Page, error)
	AllChangedSince(ctx context.Context, since time.Time) ([]Page, error)
	PageCount(ctx context.Context) (int, error)
	PageInfo(ctx context.Context, name string, version int) (*Page, error)
	// VersionHistory returns every stored version, newest first.
	VersionHistory(ctx context.Context, name string) ([]Page, error)
	DeleteVersion(ctx context.Context, name string, version int) error
	DeletePage(ctx context.Context, name string) error
	MovePage(ctx context.Context, from, to string) error
	// ProviderInfo returns a one-line diagnostic description.
	ProviderInfo() string
}

// AttachmentProvider stores versioned binary attachments.
type AttachmentProvider interface {
	// PutAttachmentData stores r as the next version of att. On return
	// att.Version, att.Size and att.LastModified describe the new version.
	PutAttachmentData(ctx context.Context, att *Attachment, r io.Reader) error
	// AttachmentData opens att.Version (or the latest for Latest).
	AttachmentData(ctx context.Context, att *Attachment) (io.ReadCloser, error)
	ListAttachments(ctx context.Context, page string) ([]Attachment, error)
	// ListAllChanged returns attachments modified after since, newest first.
	ListAllChanged(ctx context.Context, since time.Time) ([]Attachment, error)
	AttachmentInfo(ctx context.Context, page, file string, version int) (*Attachment, error)
	// VersionHistory returns every stored version of att, newest first.
	VersionHistory(ctx context.Context, att *Attachment) ([]Attachment, error)
	DeleteVersion(ctx context.Context, att *Attachment) error
	DeleteAttachment(ctx context.Context, att *Attachment) error
	// MoveAttachmentsForPage moves every attachment of oldPage to newPage.
	MoveAttachmentsForPage(ctx context.Context, oldPage, newPage string) error
	ProviderInfo() string
}

// MetadataParser extracts page variables from markup into p.Attributes.
type MetadataParser interface {
	ParseMetadata(p *Page, text string) error
}
