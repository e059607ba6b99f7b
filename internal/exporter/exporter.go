// Package exporter writes pages out to the filesystem as plain text files.
//
// A page name maps to a relative path by mangling each "/"-separated
// segment, so sub-pages become directories and any name survives the
// round trip through the importer.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// DefaultExt is the file extension given to exported pages.
const DefaultExt = ".txt"

// ErrNoPages is returned when a prefix export matches nothing.
var ErrNoPages = errors.New("no pages found")

// Options configures an export operation.
type Options struct {
	Version int    // Version of a single page (0 = latest)
	Force   bool   // Overwrite existing files
	Ext     string // File extension (default DefaultExt)
	Mangler *mangle.Mangler
}

// Result contains the outcome of an export operation.
type Result struct {
	Exported int      `json:"exported"`
	Files    []string `json:"files"`
}

// Run exports pages to dst. A name ending in "/" (or "/" alone for every
// page) exports all pages under that prefix into the directory dst;
// anything else exports one page.
func Run(ctx context.Context, w io.Writer, svc service.Service, name, dst string, opts Options) (Result, error) {
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	} else if !strings.HasPrefix(opts.Ext, ".") {
		opts.Ext = "." + opts.Ext
	}
	if opts.Mangler == nil {
		m, err := mangle.New("")
		if err != nil {
			return Result{}, err
		}
		opts.Mangler = m
	}
	if strings.HasSuffix(name, "/") {
		return exportPrefix(ctx, w, svc, strings.TrimSuffix(name, "/"), dst, opts)
	}
	return exportSingle(ctx, w, svc, name, dst, opts)
}

// RelPath returns the file path of name relative to the export root.
func RelPath(m *mangle.Mangler, name, ext string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = m.Mangle(s)
	}
	return filepath.Join(segments...) + ext
}

func exportSingle(ctx context.Context, w io.Writer, svc service.Service, name, dst string, opts Options) (Result, error) {
	var result Result

	version := opts.Version
	if version == 0 {
		version = provider.Latest
	}
	text, err := svc.Text(ctx, name, version)
	if err != nil {
		return result, err
	}

	// An existing directory receives the page under its mangled name;
	// anything else is the target file itself.
	dir, file := filepath.Dir(dst), filepath.Base(dst)
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dir, file = dst, opts.Mangler.Mangle(lastSegment(name))+opts.Ext
	} else if filepath.Ext(file) == "" {
		file += opts.Ext
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("creating directory: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return result, fmt.Errorf("opening destination: %w", err)
	}
	defer root.Close()

	if err := writeFileInRoot(root, file, text, opts.Force); err != nil {
		return result, err
	}

	out := filepath.Join(dir, file)
	result.Exported = 1
	result.Files = []string{out}
	fmt.Fprintf(w, "Exported: %s -> %s\n", name, out)
	return result, nil
}

func exportPrefix(ctx context.Context, w io.Writer, svc service.Service, prefix, dst string, opts Options) (Result, error) {
	result := Result{Files: []string{}}

	listPrefix := ""
	if prefix != "" {
		listPrefix = prefix + "/"
	}
	pages, err := svc.List(ctx, service.ListOptions{Prefix: listPrefix})
	if err != nil {
		return result, err
	}
	if len(pages) == 0 {
		return result, fmt.Errorf("%w under %q", ErrNoPages, prefix+"/")
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return result, fmt.Errorf("creating destination directory: %w", err)
	}
	root, err := os.OpenRoot(dst)
	if err != nil {
		return result, fmt.Errorf("opening destination root: %w", err)
	}
	defer root.Close()

	for _, p := range pages {
		rel := RelPath(opts.Mangler, p.Name[len(listPrefix):], opts.Ext)

		text, err := svc.Text(ctx, p.Name, provider.Latest)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", p.Name, err)
		}
		if err := writeFileInRoot(root, rel, text, opts.Force); err != nil {
			return result, err
		}

		out := filepath.Join(dst, rel)
		result.Files = append(result.Files, out)
		result.Exported++
		fmt.Fprintf(w, "Exported: %s -> %s\n", p.Name, out)
	}
	return result, nil
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// writeFileInRoot writes text to name within root, creating parent
// directories. os.Root keeps every write inside the destination.
func writeFileInRoot(root *os.Root, name, text string, force bool) error {
	if !force {
		if _, err := root.Stat(name); err == nil {
			return fmt.Errorf("file exists: %s (use --force to overwrite)", name)
		}
	}

	if dir := filepath.Dir(name); dir != "." && dir != "" {
		if err := mkdirAllInRoot(root, dir); err != nil {
			return err
		}
	}

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", name, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// mkdirAllInRoot creates a directory and its parents within root.
func mkdirAllInRoot(root *os.Root, path string) error {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	for i := range parts {
		dir := filepath.Join(parts[:i+1]...)
		if err := root.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}
