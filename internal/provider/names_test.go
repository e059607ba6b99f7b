package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/validate"
)

func TestAttachments_DotNamesStayInsidePageDir(t *testing.T) {
	ctx := context.Background()
	s, dir := newAttachments(t, "")
	attach(t, s, "Main", "keep.txt", "a", "x")

	before, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, file := range []string{"..", ".", " .. "} {
		att := &Attachment{Page: "Main", FileName: file, Author: "a"}
		err := s.PutAttachmentData(ctx, att, strings.NewReader("payload"))
		assert.ErrorIs(t, err, validate.ErrInvalidName, "%q", file)
	}

	after, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
	for _, e := range after {
		assert.True(t, e.IsDir(), "unexpected file %s in attachment root", e.Name())
	}

	entries, err := os.ReadDir(filepath.Join(dir, "Main"+pageDirSuffix))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt"+attDirSuffix, entries[0].Name())
}

func TestAttachments_LegacyProbesSkipPathNames(t *testing.T) {
	s, _ := newAttachments(t, "")

	for _, file := range []string{"..", ".", ".x"} {
		for _, probe := range s.dirProbes(file) {
			assert.NotEqual(t, "..", probe)
			assert.NotEqual(t, ".", probe)
		}
	}
	assert.Contains(t, s.dirProbes("my file.txt"), "my file.txt")
}

func TestStores_RejectUnrepresentableNames(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		charset string
		name    string
	}{
		{"UTF-8", "Bad\xffName"},
		{"ISO-8859-1", "Ωmega"},
	}

	for _, tt := range tests {
		t.Run(tt.charset, func(t *testing.T) {
			pages, err := NewVersioningProvider(Options{PageDir: t.TempDir(), Encoding: tt.charset})
			require.NoError(t, err)
			err = pages.PutPageText(ctx, &Page{Name: tt.name, Author: "a"}, "text")
			assert.ErrorIs(t, err, validate.ErrInvalidName)
			assert.ErrorIs(t, err, mangle.ErrUnrepresentable)

			all, err := pages.AllPages(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			save(t, pages, "Plain", "a", "x")
			assert.ErrorIs(t, pages.MovePage(ctx, "Plain", tt.name), validate.ErrInvalidName)

			atts, err := NewBasicAttachmentProvider(Options{AttachmentDir: t.TempDir(), Encoding: tt.charset})
			require.NoError(t, err)
			att := &Attachment{Page: "Plain", FileName: tt.name + ".txt", Author: "a"}
			err = atts.PutAttachmentData(ctx, att, strings.NewReader("x"))
			assert.ErrorIs(t, err, validate.ErrInvalidName)
		})
	}
}
