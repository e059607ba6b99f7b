package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/validate"
)

func newFlat(t *testing.T) (*FileSystemProvider, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileSystemProvider(Options{PageDir: dir})
	require.NoError(t, err)
	return s, dir
}

func TestFileSystem_PutAndRead(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)

	p := &Page{Name: "Main", Author: "alice", ChangeNote: "first"}
	p.SetAttribute("status", "draft")
	require.NoError(t, s.PutPageText(ctx, p, "Hello [World]"))
	assert.Equal(t, 1, p.Version)

	text, err := s.PageText(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Equal(t, "Hello [World]", text)

	// An explicit version is answered from the live file.
	text, err = s.PageText(ctx, "Main", 7)
	require.NoError(t, err)
	assert.Equal(t, "Hello [World]", text)

	info, err := s.PageInfo(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)
	assert.Equal(t, "alice", info.Author)
	assert.Equal(t, "first", info.ChangeNote)
	assert.Equal(t, map[string]string{"status": "draft"}, info.Attributes)
	assert.EqualValues(t, len("Hello [World]"), info.Size)

	sidecar, err := os.ReadFile(filepath.Join(dir, "Main.properties"))
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), "author = alice")
	assert.Contains(t, string(sidecar), "@status = draft")
}

func TestFileSystem_MissingSidecarIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Orphan.txt"), []byte("x"), 0644))

	info, err := s.PageInfo(ctx, "Orphan", Latest)
	require.NoError(t, err)
	assert.Empty(t, info.Author)
}

func TestFileSystem_MangledFileNames(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)

	require.NoError(t, s.PutPageText(ctx, &Page{Name: "Main/Sub page"}, "a"))
	require.NoError(t, s.PutPageText(ctx, &Page{Name: ".hidden"}, "b"))

	_, err := os.Stat(filepath.Join(dir, "Main%2FSub+page.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "%2Ehidden.txt"))
	assert.NoError(t, err)

	pages, err := s.AllPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, ".hidden", pages[0].Name)
	assert.Equal(t, "Main/Sub page", pages[1].Name)
}

func TestFileSystem_Encoding(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSystemProvider(Options{PageDir: dir, Encoding: "iso-8859-1"})
	require.NoError(t, err)

	require.NoError(t, s.PutPageText(ctx, &Page{Name: "Cafe"}, "café"))

	raw, err := os.ReadFile(filepath.Join(dir, "Cafe.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, raw)

	text, err := s.PageText(ctx, "Cafe", Latest)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestFileSystem_AllPagesIgnoresStrays(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)

	require.NoError(t, s.PutPageText(ctx, &Page{Name: "B"}, "b"))
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "A"}, "a"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".wikid-tmp-123"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0755))

	pages, err := s.AllPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "A", pages[0].Name)

	n, err := s.PageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileSystem_MissingDirectory(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)
	require.NoError(t, os.RemoveAll(dir))

	_, err := s.AllPages(ctx)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFileSystem_DirectoryIsAFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "pages")
	require.NoError(t, os.WriteFile(f, nil, 0644))

	_, err := NewFileSystemProvider(Options{PageDir: f})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewFileSystemProvider(Options{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFileSystem_PropertyLimits(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSystemProvider(Options{
		PageDir: dir,
		Limits:  validate.Limits{MaxProperties: 2, MaxKeyLength: 8, MaxValueLength: 10},
	})
	require.NoError(t, err)

	p := &Page{Name: "Main"}
	p.SetAttribute("summary", strings.Repeat("x", 11))
	err = s.PutPageText(ctx, p, "text")
	require.ErrorIs(t, err, validate.ErrInvalidProperty)
	assert.Contains(t, err.Error(), "summary")

	ok, err := s.PageExists(ctx, "Main", Latest)
	require.NoError(t, err)
	assert.False(t, ok, "rejected save must not write the page")
}

func TestFileSystem_DeleteVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newFlat(t)
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "Main"}, "x"))

	err := s.DeleteVersion(ctx, "Main", 2)
	assert.ErrorIs(t, err, ErrNoSuchVersion)

	require.NoError(t, s.DeleteVersion(ctx, "Main", 1))
	_, err = s.PageInfo(ctx, "Main", Latest)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeletePage(ctx, "Main"), ErrNotFound)
}

func TestFileSystem_MovePage(t *testing.T) {
	ctx := context.Background()
	s, _ := newFlat(t)
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "A", Author: "alice"}, "a"))
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "B"}, "b"))

	assert.ErrorIs(t, s.MovePage(ctx, "A", "B"), ErrExists)
	assert.ErrorIs(t, s.MovePage(ctx, "Nope", "C"), ErrNotFound)

	require.NoError(t, s.MovePage(ctx, "A", "C"))
	info, err := s.PageInfo(ctx, "C", Latest)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Author)
	_, err = s.PageText(ctx, "A", Latest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSystem_AllChangedSince(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "Old"}, "o"))
	require.NoError(t, s.PutPageText(ctx, &Page{Name: "New"}, "n"))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "Old.txt"), past, past))

	changed, err := s.AllChangedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "New", changed[0].Name)
}

func TestFileSystem_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	s, dir := newFlat(t)
	for range 3 {
		require.NoError(t, s.PutPageText(ctx, &Page{Name: "Main"}, "x"))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".wikid-tmp"), e.Name())
	}
}

func TestFileSystem_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newFlat(t)

	err := s.PutPageText(ctx, &Page{Name: "Main"}, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}
