// filesystem.go implements the flat page store.
//
// Layout, relative to the page directory:
//
//	{mangled}.txt         page text in the configured encoding, no header
//	{mangled}.properties  author, changenote, viewcount and @custom keys
//
// Only one version of a page exists. Requests for a numbered version are
// answered from the live file; the page always reports version 1.

package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/validate"
)

const (
	pageExt  = ".txt"
	propsExt = ".properties"
)

// FileSystemProvider stores one file per page.
type FileSystemProvider struct {
	dir    string
	m      *mangle.Mangler
	enc    encoding.Encoding
	limits validate.Limits
}

var _ PageProvider = (*FileSystemProvider)(nil)

// NewFileSystemProvider creates the page directory if needed. A directory
// that cannot be created or written is an ErrConfig.
func NewFileSystemProvider(opts Options) (*FileSystemProvider, error) {
	m, err := opts.BuildMangler()
	if err != nil {
		return nil, err
	}
	if err := ensureDir(opts.PageDir); err != nil {
		return nil, err
	}
	return &FileSystemProvider{
		dir:    opts.PageDir,
		m:      m,
		enc:    m.Encoding(),
		limits: opts.limits(),
	}, nil
}

func (s *FileSystemProvider) pageFile(name string) string {
	return filepath.Join(s.dir, s.m.Mangle(name)+pageExt)
}

func (s *FileSystemProvider) propsFile(name string) string {
	return filepath.Join(s.dir, s.m.Mangle(name)+propsExt)
}

func (s *FileSystemProvider) PutPageText(ctx context.Context, p *Page, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(s.m, p.Name); err != nil {
		return err
	}
	if err := validate.Properties(p.Attributes, s.limits); err != nil {
		return err
	}
	if err := s.writeText(p.Name, text); err != nil {
		return err
	}
	if err := s.writeMeta(p); err != nil {
		return err
	}
	p.Version = 1
	return nil
}

// writeText encodes text and replaces the live file.
func (s *FileSystemProvider) writeText(name, text string) error {
	data, err := s.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return fmt.Errorf("encode page %q: %w", name, err)
	}
	if err := writeFileAtomic(s.pageFile(name), data); err != nil {
		return fmt.Errorf("write page %q: %w", name, err)
	}
	return nil
}

// writeMeta replaces the sidecar with p's metadata.
func (s *FileSystemProvider) writeMeta(p *Page) error {
	m := map[string]string{}
	if p.Author != "" {
		m[keyAuthor] = p.Author
	}
	if p.ChangeNote != "" {
		m[keyChangeNote] = p.ChangeNote
	}
	if p.ViewCount > 0 {
		m[keyViewCount] = strconv.Itoa(p.ViewCount)
	}
	setCustomAttrs(m, p.Attributes)
	if err := storeProps(s.propsFile(p.Name), m); err != nil {
		return fmt.Errorf("write metadata for %q: %w", p.Name, err)
	}
	return nil
}

func (s *FileSystemProvider) PageText(ctx context.Context, name string, version int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.readText(name, s.pageFile(name))
}

func (s *FileSystemProvider) readText(name, file string) (string, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return "", notFound("page", name)
	}
	if err != nil {
		return "", fmt.Errorf("read page %q: %w", name, err)
	}
	text, err := s.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode page %q: %w", name, err)
	}
	return string(text), nil
}

func (s *FileSystemProvider) PageExists(ctx context.Context, name string, version int) (bool, error) {
	return fileExists(s.pageFile(name))
}

func (s *FileSystemProvider) AllPages(ctx context.Context) ([]Page, error) {
	names, err := s.pageNames()
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(names))
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.PageInfo(ctx, n, Latest)
		if errors.Is(err, ErrNotFound) {
			continue // deleted while listing
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}

// pageNames lists page names found in the page directory, sorted. An
// unreadable directory is a configuration error, not an empty wiki.
func (s *FileSystemProvider) pageNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list page directory: %v", ErrConfig, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), pageExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, err := s.m.Unmangle(strings.TrimSuffix(e.Name(), pageExt))
		if err != nil {
			log.Event("provider:filesystem", "list").Detail("file", e.Name()).Write(err)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileSystemProvider) AllChangedSince(ctx context.Context, since time.Time) ([]Page, error) {
	all, err := s.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	return changedSince(all, since), nil
}

func (s *FileSystemProvider) PageCount(ctx context.Context) (int, error) {
	names, err := s.pageNames()
	return len(names), err
}

func (s *FileSystemProvider) PageInfo(ctx context.Context, name string, version int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.pageFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("page", name)
	}
	if err != nil {
		return nil, fmt.Errorf("stat page %q: %w", name, err)
	}
	p := &Page{
		Name:         name,
		Version:      1,
		LastModified: info.ModTime(),
		Size:         info.Size(),
	}
	if err := s.readMeta(p); err != nil {
		return nil, err
	}
	return p, nil
}

// readMeta fills p from its sidecar. A missing sidecar leaves p unchanged.
func (s *FileSystemProvider) readMeta(p *Page) error {
	m, err := loadProps(s.propsFile(p.Name))
	if err != nil {
		return err
	}
	p.Author = m[keyAuthor]
	p.ChangeNote = m[keyChangeNote]
	if v, ok := m[keyViewCount]; ok {
		p.ViewCount, _ = strconv.Atoi(v)
	}
	p.Attributes = customAttrs(m)
	return nil
}

func (s *FileSystemProvider) VersionHistory(ctx context.Context, name string) ([]Page, error) {
	p, err := s.PageInfo(ctx, name, Latest)
	if err != nil {
		return nil, err
	}
	return []Page{*p}, nil
}

// DeleteVersion deletes the page when asked for its only version.
func (s *FileSystemProvider) DeleteVersion(ctx context.Context, name string, version int) error {
	if version != Latest && version != 1 {
		return &NoSuchVersionError{Name: name, Requested: version, Latest: 1}
	}
	return s.DeletePage(ctx, name)
}

func (s *FileSystemProvider) DeletePage(ctx context.Context, name string) error {
	err := os.Remove(s.pageFile(name))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound("page", name)
	}
	if err != nil {
		return fmt.Errorf("delete page %q: %w", name, err)
	}
	if err := os.Remove(s.propsFile(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete metadata for %q: %w", name, err)
	}
	return nil
}

func (s *FileSystemProvider) MovePage(ctx context.Context, from, to string) error {
	if err := CheckName(s.m, to); err != nil {
		return err
	}
	src, dst := s.pageFile(from), s.pageFile(to)
	if ok, err := fileExists(src); err != nil {
		return err
	} else if !ok {
		return notFound("page", from)
	}
	if ok, err := fileExists(dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("move %q to %q: %w", from, to, ErrExists)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move page %q: %w", from, err)
	}
	if err := os.Rename(s.propsFile(from), s.propsFile(to)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move metadata for %q: %w", from, err)
	}
	return nil
}

func (s *FileSystemProvider) ProviderInfo() string {
	return "FileSystemProvider: " + s.dir
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// changedSince filters pages modified after since, newest first.
func changedSince(pages []Page, since time.Time) []Page {
	var out []Page
	for _, p := range pages {
		if p.LastModified.After(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out
}
