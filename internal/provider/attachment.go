// attachment.go implements the file-based attachment store.
//
// Layout, relative to the attachment directory:
//
//	{mangled page}-att/{mangled file}-dir/{n}.{ext}
//	{mangled page}-att/{mangled file}-dir/attachment.properties
//
// ext is the mangled suffix of the file name, or "bin" when there is none.
// attachment.properties records {n}.author and {n}.changenote per version.
// The latest version is the highest leading number among the version files.

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/validate"
)

const (
	pageDirSuffix  = "-att"
	attDirSuffix   = "-dir"
	attPropsFile   = "attachment.properties"
	defaultFileExt = "bin"
)

// BasicAttachmentProvider stores attachments as numbered files.
type BasicAttachmentProvider struct {
	dir     string
	m       *mangle.Mangler
	noCache *regexp.Regexp

	mu sync.Mutex // serialises version allocation
}

var _ AttachmentProvider = (*BasicAttachmentProvider)(nil)

// NewBasicAttachmentProvider creates the attachment directory if needed.
func NewBasicAttachmentProvider(opts Options) (*BasicAttachmentProvider, error) {
	m, err := opts.BuildMangler()
	if err != nil {
		return nil, err
	}
	if err := ensureDir(opts.AttachmentDir); err != nil {
		return nil, err
	}
	re, err := CompileNoCache(opts.NoCache)
	if err != nil {
		return nil, err
	}
	return &BasicAttachmentProvider{dir: opts.AttachmentDir, m: m, noCache: re}, nil
}

// CompileNoCache compiles the no-cache pattern. The pattern must match the
// whole file name. An empty pattern matches nothing.
func CompileNoCache(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: no-cache pattern: %v", ErrConfig, err)
	}
	return re, nil
}

// Cacheable reports whether file may be cached by browsers under re.
func Cacheable(re *regexp.Regexp, file string) bool {
	return re == nil || !re.MatchString(file)
}

// FileExt returns the storage extension for an attachment file name.
func FileExt(m *mangle.Mangler, file string) string {
	dot := strings.LastIndexByte(file, '.')
	if dot < 0 || dot == len(file)-1 {
		return defaultFileExt
	}
	return m.Mangle(file[dot+1:])
}

// pageDir returns the directory holding a page's attachments.
func (s *BasicAttachmentProvider) pageDir(page string) (string, error) {
	dir := filepath.Join(s.dir, s.m.Mangle(page)+pageDirSuffix)
	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrConfig, dir)
	}
	return dir, nil
}

// dirProbes lists where an attachment's directory may live, in the order
// they are tried. Only the first is ever written; the others are layouts
// left by older versions of the store (no suffix, then no mangling). The
// unmangled layout is only tried for a name that is one plain component.
func (s *BasicAttachmentProvider) dirProbes(file string) []string {
	mangled := s.m.Mangle(file)
	probes := []string{mangled + attDirSuffix, mangled}
	if file != mangled && plainComponent(file) {
		probes = append(probes, file)
	}
	return probes
}

func plainComponent(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// CheckName rejects a name that m cannot store exactly.
func CheckName(m *mangle.Mangler, name string) error {
	if err := m.Check(name); err != nil {
		return fmt.Errorf("%w: %w", validate.ErrInvalidName, err)
	}
	return nil
}

// findAttachmentDir returns the first existing probe for page/file.
func (s *BasicAttachmentProvider) findAttachmentDir(page, file string) (string, error) {
	pd, err := s.pageDir(page)
	if err != nil {
		return "", err
	}
	for _, probe := range s.dirProbes(file) {
		dir := filepath.Join(pd, probe)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", notFound("attachment", page+"/"+file)
}

// latestAttachmentVersion returns the highest numbered file in dir, or 0.
func latestAttachmentVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == attPropsFile {
			continue
		}
		if v := leadingInt(e.Name()); v > latest {
			latest = v
		}
	}
	return latest, nil
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// versionFile finds the file for version v. Older stores mangled extensions
// differently, so any "{v}." file is accepted when the exact name is absent.
func (s *BasicAttachmentProvider) versionFile(dir string, v int, file string) (string, error) {
	exact := filepath.Join(dir, strconv.Itoa(v)+"."+FileExt(s.m, file))
	if ok, err := fileExists(exact); err != nil || ok {
		return exact, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	prefix := strconv.Itoa(v) + "."
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fs.ErrNotExist
}

func (s *BasicAttachmentProvider) PutAttachmentData(ctx context.Context, att *Attachment, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := validate.AttachmentName(att.FileName)
	if err != nil {
		return err
	}
	att.FileName = file
	if err := CheckName(s.m, att.Page); err != nil {
		return err
	}
	if err := CheckName(s.m, file); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.findAttachmentDir(att.Page, file)
	if errors.Is(err, ErrNotFound) {
		pd, perr := s.pageDir(att.Page)
		if perr != nil {
			return perr
		}
		dir = filepath.Join(pd, s.m.Mangle(file)+attDirSuffix)
		err = os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return fmt.Errorf("attachment directory for %s: %w", att.Name(), err)
	}

	latest, err := latestAttachmentVersion(dir)
	if err != nil {
		return err
	}
	version := latest + 1
	target := filepath.Join(dir, strconv.Itoa(version)+"."+FileExt(s.m, file))
	n, err := writeStreamAtomic(target, r)
	if err != nil {
		return fmt.Errorf("store %s: %w", att.Name(), err)
	}

	props, err := loadProps(filepath.Join(dir, attPropsFile))
	if err != nil {
		return err
	}
	if att.Author == "" {
		att.Author = "unknown"
	}
	v := strconv.Itoa(version)
	props[v+"."+keyAuthor] = att.Author
	if att.ChangeNote != "" {
		props[v+"."+keyChangeNote] = att.ChangeNote
	}
	if err := storeProps(filepath.Join(dir, attPropsFile), props); err != nil {
		return fmt.Errorf("write metadata for %s: %w", att.Name(), err)
	}

	att.Version = version
	att.Size = n
	att.LastModified = time.Now()
	att.Cacheable = Cacheable(s.noCache, file)
	return nil
}

func (s *BasicAttachmentProvider) AttachmentData(ctx context.Context, att *Attachment) (io.ReadCloser, error) {
	dir, err := s.findAttachmentDir(att.Page, att.FileName)
	if err != nil {
		return nil, err
	}
	v := att.Version
	if v == Latest {
		if v, err = latestAttachmentVersion(dir); err != nil {
			return nil, err
		}
	}
	if v <= 0 {
		return nil, notFound("attachment", att.Name())
	}
	path, err := s.versionFile(dir, v, att.FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NoSuchVersionError{Name: att.Name(), Requested: att.Version, Latest: -1}
	}
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *BasicAttachmentProvider) ListAttachments(ctx context.Context, page string) ([]Attachment, error) {
	pd, err := s.pageDir(page)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(pd)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list attachments of %q: %w", page, err)
	}

	dirs := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs[e.Name()] = true
		}
	}

	seen := make(map[string]bool)
	var out []Attachment
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		var file string
		if base, ok := strings.CutSuffix(name, attDirSuffix); ok {
			if file, err = s.m.Unmangle(base); err != nil {
				continue
			}
		} else {
			// Legacy directory. Skip it when a current-layout twin exists.
			if dirs[name+attDirSuffix] {
				continue
			}
			if file, err = s.m.Unmangle(name); err != nil {
				file = name
			}
		}
		if seen[file] {
			continue
		}
		seen[file] = true

		att, err := s.AttachmentInfo(ctx, page, file, Latest)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoSuchVersion) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (s *BasicAttachmentProvider) ListAllChanged(ctx context.Context, since time.Time) ([]Attachment, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list attachment directory: %v", ErrConfig, err)
	}
	var out []Attachment
	for _, e := range entries {
		base, ok := strings.CutSuffix(e.Name(), pageDirSuffix)
		if !e.IsDir() || !ok {
			continue
		}
		page, err := s.m.Unmangle(base)
		if err != nil {
			continue
		}
		atts, err := s.ListAttachments(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, a := range atts {
			if a.LastModified.After(since) {
				out = append(out, a)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

func (s *BasicAttachmentProvider) AttachmentInfo(ctx context.Context, page, file string, version int) (*Attachment, error) {
	dir, err := s.findAttachmentDir(page, file)
	if err != nil {
		return nil, err
	}
	return s.infoIn(dir, page, file, version)
}

func (s *BasicAttachmentProvider) infoIn(dir, page, file string, version int) (*Attachment, error) {
	latest, err := latestAttachmentVersion(dir)
	if err != nil {
		return nil, err
	}
	v := version
	if v == Latest {
		v = latest
	}
	if v <= 0 {
		return nil, notFound("attachment", page+"/"+file)
	}
	path, err := s.versionFile(dir, v, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NoSuchVersionError{Name: page + "/" + file, Requested: version, Latest: latest}
	}
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	props, err := loadProps(filepath.Join(dir, attPropsFile))
	if err != nil {
		return nil, err
	}
	vs := strconv.Itoa(v)
	return &Attachment{
		Page:         page,
		FileName:     file,
		Version:      v,
		Author:       props[vs+"."+keyAuthor],
		ChangeNote:   props[vs+"."+keyChangeNote],
		LastModified: info.ModTime(),
		Size:         info.Size(),
		Cacheable:    Cacheable(s.noCache, file),
	}, nil
}

func (s *BasicAttachmentProvider) VersionHistory(ctx context.Context, att *Attachment) ([]Attachment, error) {
	dir, err := s.findAttachmentDir(att.Page, att.FileName)
	if err != nil {
		return nil, err
	}
	latest, err := latestAttachmentVersion(dir)
	if err != nil {
		return nil, err
	}
	var out []Attachment
	for v := latest; v >= 1; v-- {
		a, err := s.infoIn(dir, att.Page, att.FileName, v)
		if errors.Is(err, ErrNoSuchVersion) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if len(out) == 0 {
		return nil, notFound("attachment", att.Name())
	}
	return out, nil
}

// DeleteVersion removes one version file and its metadata. Removing the
// last remaining version removes the attachment.
func (s *BasicAttachmentProvider) DeleteVersion(ctx context.Context, att *Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.findAttachmentDir(att.Page, att.FileName)
	if err != nil {
		return err
	}
	latest, err := latestAttachmentVersion(dir)
	if err != nil {
		return err
	}
	v := att.Version
	if v == Latest {
		v = latest
	}
	path, err := s.versionFile(dir, v, att.FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return &NoSuchVersionError{Name: att.Name(), Requested: att.Version, Latest: latest}
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete version %d of %s: %w", v, att.Name(), err)
	}

	if remaining, err := latestAttachmentVersion(dir); err != nil {
		return err
	} else if remaining == 0 {
		return os.RemoveAll(dir)
	}

	propsPath := filepath.Join(dir, attPropsFile)
	props, err := loadProps(propsPath)
	if err != nil {
		return err
	}
	delete(props, strconv.Itoa(v)+"."+keyAuthor)
	delete(props, strconv.Itoa(v)+"."+keyChangeNote)
	return storeProps(propsPath, props)
}

func (s *BasicAttachmentProvider) DeleteAttachment(ctx context.Context, att *Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.findAttachmentDir(att.Page, att.FileName)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete %s: %w", att.Name(), err)
	}
	return nil
}

// MoveAttachmentsForPage renames the page's attachment directory. If the
// destination already has attachments nothing is moved; the refusal is
// logged rather than returned so a page rename can still complete.
func (s *BasicAttachmentProvider) MoveAttachmentsForPage(ctx context.Context, oldPage, newPage string) error {
	if err := CheckName(s.m, newPage); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.pageDir(oldPage)
	if err != nil {
		return err
	}
	dst, err := s.pageDir(newPage)
	if err != nil {
		return err
	}
	if ok, err := fileExists(src); err != nil || !ok {
		return err
	}
	if ok, err := fileExists(dst); err != nil {
		return err
	} else if ok {
		log.Event("provider:attachments", "move").
			Page(oldPage).
			Target(newPage).
			Warn(fmt.Errorf("attachments of %q: %w", newPage, ErrExists))
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move attachments of %q: %w", oldPage, err)
	}
	return nil
}

func (s *BasicAttachmentProvider) ProviderInfo() string {
	return "BasicAttachmentProvider: " + s.dir
}
