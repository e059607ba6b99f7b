// Package importer reads plain text files into the wiki as pages.
//
// File paths map to page names the way the exporter writes them: each
// path segment is unmangled and directories become sub-pages. A segment
// that is not a valid mangled token is used as written.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// DefaultExt is the file extension scanned for when Options.Ext is unset.
const DefaultExt = ".txt"

// Options configures an import operation.
type Options struct {
	Prefix     string // Target page name prefix
	Flat       bool   // Drop directories, keeping only the file name
	Hidden     bool   // Include hidden files and directories
	DryRun     bool   // Report what would be imported without saving
	Ext        string // File extension to import (default DefaultExt)
	Author     string
	ChangeNote string
	Mangler    *mangle.Mangler
}

// Result contains the outcome of an import operation.
type Result struct {
	Imported  int      `json:"imported"`
	Unchanged int      `json:"unchanged"`
	Pages     []string `json:"pages"`
}

// Run imports src, a single file or a directory tree, into svc. Files whose
// text equals the latest version of their page are skipped. svc may be nil
// for a dry run.
func Run(ctx context.Context, w io.Writer, svc service.Service, src string, opts Options) (Result, error) {
	result := Result{Pages: []string{}}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	} else if !strings.HasPrefix(opts.Ext, ".") {
		opts.Ext = "." + opts.Ext
	}
	if opts.Mangler == nil {
		m, err := mangle.New("")
		if err != nil {
			return result, err
		}
		opts.Mangler = m
	}

	info, err := os.Stat(src)
	if err != nil {
		return result, err
	}

	dir, files := filepath.Dir(src), []string{filepath.Base(src)}
	if info.IsDir() {
		dir = src
	} else if !hasExt(src, opts.Ext) {
		return result, nil
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return result, fmt.Errorf("opening source root: %w", err)
	}
	defer root.Close()

	if info.IsDir() {
		if files, err = scanRoot(root, "", opts); err != nil {
			return result, fmt.Errorf("scanning %s: %w", src, err)
		}
	}

	for _, rel := range files {
		name := PageName(opts.Mangler, rel, opts)
		result.Pages = append(result.Pages, name)
		from := filepath.Join(dir, rel)

		if opts.DryRun {
			fmt.Fprintf(w, "Would import: %s -> %s\n", from, name)
			continue
		}

		text, err := readFileInRoot(root, rel)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", rel, err)
		}

		if current, err := svc.Text(ctx, name, provider.Latest); err == nil && current == text {
			result.Unchanged++
			fmt.Fprintf(w, "Unchanged: %s -> %s\n", from, name)
			continue
		}

		if _, err := svc.Save(ctx, name, text, service.SaveOptions{
			Author:     opts.Author,
			ChangeNote: opts.ChangeNote,
		}); err != nil {
			return result, fmt.Errorf("saving %s: %w", name, err)
		}
		fmt.Fprintf(w, "Imported: %s -> %s\n", from, name)
		result.Imported++
	}
	return result, nil
}

// PageName returns the page name for a file at rel, relative to the import
// root.
func PageName(m *mangle.Mangler, rel string, opts Options) string {
	rel = filepath.ToSlash(rel)
	rel = rel[:len(rel)-len(filepath.Ext(rel))]
	if opts.Flat {
		rel = filepath.Base(rel)
	}

	segments := strings.Split(rel, "/")
	for i, s := range segments {
		if name, err := m.Unmangle(s); err == nil {
			segments[i] = name
		}
	}
	name := strings.Join(segments, "/")

	if prefix := strings.TrimSuffix(opts.Prefix, "/"); prefix != "" {
		name = prefix + "/" + name
	}
	return name
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// scanRoot recursively finds the files to import within root and returns
// their paths relative to it.
func scanRoot(root *os.Root, dir string, opts Options) ([]string, error) {
	path := dir
	if path == "" {
		path = "."
	}

	f, err := root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !opts.Hidden && strings.HasPrefix(name, ".") {
			continue
		}

		rel := name
		if dir != "" {
			rel = filepath.Join(dir, name)
		}

		if entry.IsDir() {
			sub, err := scanRoot(root, rel, opts)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		} else if hasExt(name, opts.Ext) {
			files = append(files, rel)
		}
	}
	return files, nil
}

func readFileInRoot(root *os.Root, name string) (string, error) {
	f, err := root.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
