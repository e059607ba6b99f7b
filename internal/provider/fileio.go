// fileio.go holds the write primitives shared by the file stores.
//
// Every content and sidecar write goes to a temporary file in the target
// directory and is renamed into place, so readers see either the old file
// or the new one and a failed write leaves nothing behind.

package provider

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// tempPattern names in-flight files. Mangled names never start with ".", so
// temporary files cannot collide with pages or attachment versions.
const tempPattern = ".wikid-tmp-*"

func writeFileAtomic(path string, data []byte) error {
	_, err := writeStreamAtomic(path, bytes.NewReader(data))
	return err
}

// writeStreamAtomic copies r into path and returns the bytes written.
func writeStreamAtomic(path string, r io.Reader) (int64, error) {
	f, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return 0, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmp := f.Name()
	cleanup := func() {
		f.Close()
		os.Remove(tmp)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename into %s: %w", path, err)
	}
	return n, nil
}

// copyFileAtomic copies src to dst and gives dst the modification time of
// src. History ordering relies on those timestamps.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if _, err := writeStreamAtomic(dst, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// ensureDir creates dir if needed and checks that it is a writable directory.
func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: directory not set", ErrConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrConfig, dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfig, dir)
	}
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("%w: %s is not writable: %v", ErrConfig, dir, err)
	}
	f.Close()
	os.Remove(f.Name())
	return nil
}
