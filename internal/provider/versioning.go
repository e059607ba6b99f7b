// versioning.go implements the versioned page store.
//
// The live page keeps the flat layout, so a wiki created by the flat store
// can switch to this store without conversion. History lives under OLD/:
//
//	{mangled}.txt               latest version
//	OLD/{mangled}/{n}.txt       every earlier version n
//	OLD/{mangled}/page.properties
//	                            {n}.author and {n}.changenote for every
//	                            version, plus @custom keys for the latest
//
// The latest version number is the highest n with an {n}.author key. A page
// that has never been saved by this store has no page.properties; its live
// file is version 1.
//
// Design: one mutex serialises every operation on the store. Saves copy the
// live file into history before replacing it; all writes go through
// temporary files, content before metadata.

package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpl-au/wikid/internal/cache"
	"github.com/jpl-au/wikid/internal/validate"
)

const (
	oldDirName    = "OLD"
	pagePropsFile = "page.properties"
	propsCacheLen = 64
)

// propsEntry is a cached page.properties keyed by its file stamp.
type propsEntry struct {
	stamp string
	props map[string]string
}

// VersioningProvider stores every version of every page.
type VersioningProvider struct {
	flat   *FileSystemProvider
	oldDir string

	mu    sync.Mutex
	props *cache.LRU[propsEntry]
}

var _ PageProvider = (*VersioningProvider)(nil)

// NewVersioningProvider creates the page and history directories if needed.
func NewVersioningProvider(opts Options) (*VersioningProvider, error) {
	flat, err := NewFileSystemProvider(opts)
	if err != nil {
		return nil, err
	}
	old := filepath.Join(opts.PageDir, oldDirName)
	if err := ensureDir(old); err != nil {
		return nil, err
	}
	return &VersioningProvider{
		flat:   flat,
		oldDir: old,
		props:  cache.NewLRU[propsEntry](propsCacheLen),
	}, nil
}

func (s *VersioningProvider) historyDir(name string) string {
	return filepath.Join(s.oldDir, s.flat.m.Mangle(name))
}

func (s *VersioningProvider) historyFile(name string, version int) string {
	return filepath.Join(s.historyDir(name), strconv.Itoa(version)+pageExt)
}

// pageProps returns a copy of the page's history properties. Results are
// cached per page and reused while the file's mtime and size are unchanged.
func (s *VersioningProvider) pageProps(name string) (map[string]string, error) {
	path := filepath.Join(s.historyDir(name), pagePropsFile)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.props.Remove(name)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	stamp := fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
	if e, ok := s.props.Get(name); ok && e.stamp == stamp {
		return maps.Clone(e.props), nil
	}

	m, err := loadProps(path)
	if err != nil {
		return nil, err
	}
	s.props.Put(name, propsEntry{stamp: stamp, props: m})
	return maps.Clone(m), nil
}

func (s *VersioningProvider) putPageProps(name string, m map[string]string) error {
	s.props.Remove(name)
	return storeProps(filepath.Join(s.historyDir(name), pagePropsFile), m)
}

// hasHistory reports whether the page has ever been saved by this store.
func (s *VersioningProvider) hasHistory(name string) (bool, error) {
	return fileExists(filepath.Join(s.historyDir(name), pagePropsFile))
}

// latestVersion returns the highest version with a recorded author, or -1
// if the page has no history yet.
func latestVersion(props map[string]string) int {
	latest := -1
	for k := range props {
		n, ok := strings.CutSuffix(k, "."+keyAuthor)
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(n); err == nil && v > latest {
			latest = v
		}
	}
	return latest
}

func (s *VersioningProvider) findLatestVersion(name string) (int, error) {
	props, err := s.pageProps(name)
	if err != nil {
		return 0, err
	}
	return latestVersion(props), nil
}

// isLive reports whether version refers to the live file.
func isLive(version, latest int) bool {
	return version == Latest || version == latest || (version == 1 && latest == -1)
}

// realVersion maps a requested version to Latest when it is the live file,
// and otherwise checks that it lies within the history.
func (s *VersioningProvider) realVersion(name string, requested int) (int, error) {
	if requested == Latest {
		return Latest, nil
	}
	latest, err := s.findLatestVersion(name)
	if err != nil {
		return 0, err
	}
	if isLive(requested, latest) {
		return Latest, nil
	}
	if requested <= 0 || requested > latest {
		return 0, &NoSuchVersionError{Name: name, Requested: requested, Latest: latest}
	}
	return requested, nil
}

func (s *VersioningProvider) PutPageText(ctx context.Context, p *Page, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(s.flat.m, p.Name); err != nil {
		return err
	}
	if err := validate.Properties(p.Attributes, s.flat.limits); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.historyDir(p.Name), 0755); err != nil {
		return fmt.Errorf("create history for %q: %w", p.Name, err)
	}

	props, err := s.pageProps(p.Name)
	if err != nil {
		return err
	}
	latest := latestVersion(props)
	versioned, err := s.hasHistory(p.Name)
	if err != nil {
		return err
	}

	// The live file is version latest (or 1 before any history exists).
	// It moves into OLD/ under that number and the new text takes the next.
	version := max(latest, 1)
	first := version == 1
	live := s.flat.pageFile(p.Name)
	exists, err := fileExists(live)
	if err != nil {
		return err
	}
	if exists {
		if err := copyFileAtomic(live, s.historyFile(p.Name, version)); err != nil {
			return fmt.Errorf("archive version %d of %q: %w", version, p.Name, err)
		}
		version++
	}

	var firstAuthor string
	if first && !versioned {
		// The page was last written by the flat store. Its sidecar holds the
		// only record of who wrote what is now version 1.
		heritage, err := loadProps(s.flat.propsFile(p.Name))
		if err != nil {
			return err
		}
		firstAuthor = heritage[keyAuthor]
		if firstAuthor == "" {
			firstAuthor = "unknown"
		}
		props["1."+keyAuthor] = firstAuthor
	}

	author := p.Author
	if author == "" {
		author = firstAuthor
	}
	if author == "" {
		author = "unknown"
	}
	p.Author = author

	if err := s.flat.writeText(p.Name, text); err != nil {
		return err
	}
	if err := s.flat.writeMeta(p); err != nil {
		return err
	}

	v := strconv.Itoa(version)
	props[v+"."+keyAuthor] = author
	delete(props, v+"."+keyChangeNote)
	if p.ChangeNote != "" {
		props[v+"."+keyChangeNote] = p.ChangeNote
	}
	setCustomAttrs(props, p.Attributes)
	if err := s.putPageProps(p.Name, props); err != nil {
		return fmt.Errorf("write history metadata for %q: %w", p.Name, err)
	}

	p.Version = version
	return nil
}

func (s *VersioningProvider) PageText(ctx context.Context, name string, version int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rv, err := s.realVersion(name, version)
	if err != nil {
		return "", err
	}
	if rv == Latest {
		return s.flat.readText(name, s.flat.pageFile(name))
	}
	text, err := s.flat.readText(name, s.historyFile(name, rv))
	if errors.Is(err, ErrNotFound) {
		return "", &NoSuchVersionError{Name: name, Requested: version, Latest: -1}
	}
	return text, err
}

func (s *VersioningProvider) PageExists(ctx context.Context, name string, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rv, err := s.realVersion(name, version)
	if errors.Is(err, ErrNoSuchVersion) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rv == Latest {
		return fileExists(s.flat.pageFile(name))
	}
	return fileExists(s.historyFile(name, rv))
}

func (s *VersioningProvider) AllPages(ctx context.Context) ([]Page, error) {
	names, err := s.flat.pageNames()
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(names))
	for _, n := range names {
		p, err := s.PageInfo(ctx, n, Latest)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}

func (s *VersioningProvider) AllChangedSince(ctx context.Context, since time.Time) ([]Page, error) {
	all, err := s.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	return changedSince(all, since), nil
}

func (s *VersioningProvider) PageCount(ctx context.Context) (int, error) {
	return s.flat.PageCount(ctx)
}

func (s *VersioningProvider) PageInfo(ctx context.Context, name string, version int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageInfo(name, version)
}

func (s *VersioningProvider) pageInfo(name string, version int) (*Page, error) {
	props, err := s.pageProps(name)
	if err != nil {
		return nil, err
	}
	latest := latestVersion(props)

	var p *Page
	var rv int
	if isLive(version, latest) {
		p, err = s.flat.PageInfo(context.Background(), name, Latest)
		if err != nil {
			return nil, err
		}
		rv = max(latest, 1)
		p.Version = rv
	} else {
		if version <= 0 || version > latest {
			return nil, &NoSuchVersionError{Name: name, Requested: version, Latest: latest}
		}
		info, err := os.Stat(s.historyFile(name, version))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NoSuchVersionError{Name: name, Requested: version, Latest: latest}
		}
		if err != nil {
			return nil, fmt.Errorf("stat version %d of %q: %w", version, name, err)
		}
		rv = version
		p = &Page{Name: name, Version: version, LastModified: info.ModTime(), Size: info.Size()}
	}

	// The live file already carries the flat sidecar's author and note.
	// History entries fall back to that sidecar only for the author.
	v := strconv.Itoa(rv)
	if author, ok := props[v+"."+keyAuthor]; ok {
		p.Author = author
		p.ChangeNote = props[v+"."+keyChangeNote]
	} else if p.Author == "" {
		heritage, err := loadProps(s.flat.propsFile(name))
		if err != nil {
			return nil, err
		}
		p.Author = heritage[keyAuthor]
	}
	if attrs := customAttrs(props); attrs != nil {
		if p.Attributes == nil {
			p.Attributes = attrs
		} else {
			maps.Copy(p.Attributes, attrs)
		}
	}
	return p, nil
}

func (s *VersioningProvider) VersionHistory(ctx context.Context, name string) ([]Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.findLatestVersion(name)
	if err != nil {
		return nil, err
	}
	if latest < 1 {
		p, err := s.pageInfo(name, Latest)
		if err != nil {
			return nil, err
		}
		return []Page{*p}, nil
	}

	history := make([]Page, 0, latest)
	for v := latest; v >= 1; v-- {
		p, err := s.pageInfo(name, v)
		if errors.Is(err, ErrNoSuchVersion) || errors.Is(err, ErrNotFound) {
			continue // removed with DeleteVersion
		}
		if err != nil {
			return nil, err
		}
		history = append(history, *p)
	}
	if len(history) == 0 {
		return nil, notFound("page", name)
	}
	return history, nil
}

// DeleteVersion removes one version. Removing the latest promotes the
// newest remaining history entry to the live file; removing the only
// version deletes the page. Removing a version from the middle of the
// history leaves a gap that later listings skip.
func (s *VersioningProvider) DeleteVersion(ctx context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, err := s.pageProps(name)
	if err != nil {
		return err
	}
	latest := latestVersion(props)

	if !isLive(version, latest) {
		if version <= 0 || version > latest {
			return &NoSuchVersionError{Name: name, Requested: version, Latest: latest}
		}
		err := os.Remove(s.historyFile(name, version))
		if errors.Is(err, fs.ErrNotExist) {
			return &NoSuchVersionError{Name: name, Requested: version, Latest: latest}
		}
		return err
	}

	if ok, err := fileExists(s.flat.pageFile(name)); err != nil {
		return err
	} else if !ok {
		return notFound("page", name)
	}

	current := max(latest, 1)
	prev := 0
	for v := current - 1; v >= 1; v-- {
		ok, err := fileExists(s.historyFile(name, v))
		if err != nil {
			return err
		}
		if ok {
			prev = v
			break
		}
	}
	if prev == 0 {
		return s.deletePage(name)
	}

	src := s.historyFile(name, prev)
	if err := copyFileAtomic(src, s.flat.pageFile(name)); err != nil {
		return fmt.Errorf("promote version %d of %q: %w", prev, name, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove promoted version %d of %q: %w", prev, name, err)
	}

	for v := prev + 1; v <= current; v++ {
		delete(props, strconv.Itoa(v)+"."+keyAuthor)
		delete(props, strconv.Itoa(v)+"."+keyChangeNote)
	}
	if err := s.putPageProps(name, props); err != nil {
		return err
	}

	// Keep the flat sidecar describing the live file.
	meta, err := loadProps(s.flat.propsFile(name))
	if err != nil {
		return err
	}
	pv := strconv.Itoa(prev)
	meta[keyAuthor] = props[pv+"."+keyAuthor]
	delete(meta, keyChangeNote)
	if note := props[pv+"."+keyChangeNote]; note != "" {
		meta[keyChangeNote] = note
	}
	return storeProps(s.flat.propsFile(name), meta)
}

func (s *VersioningProvider) DeletePage(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePage(name)
}

func (s *VersioningProvider) deletePage(name string) error {
	liveErr := s.flat.DeletePage(context.Background(), name)
	if liveErr != nil && !errors.Is(liveErr, ErrNotFound) {
		return liveErr
	}
	dir := s.historyDir(name)
	hadHistory, err := fileExists(dir)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete history of %q: %w", name, err)
	}
	s.props.Remove(name)
	if liveErr != nil && !hadHistory {
		return liveErr
	}
	return nil
}

// MovePage renames the live file, its sidecar and the history directory.
// The renames are separate filesystem operations.
func (s *VersioningProvider) MovePage(ctx context.Context, from, to string) error {
	if err := CheckName(s.flat.m, to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := fileExists(s.historyDir(to)); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("move %q to %q: %w", from, to, ErrExists)
	}
	if err := s.flat.MovePage(ctx, from, to); err != nil {
		return err
	}
	err := os.Rename(s.historyDir(from), s.historyDir(to))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move history of %q: %w", from, err)
	}
	s.props.Remove(from)
	s.props.Remove(to)
	return nil
}

func (s *VersioningProvider) ProviderInfo() string {
	return "VersioningProvider: " + s.flat.dir
}
