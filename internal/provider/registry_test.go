package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuiltIns(t *testing.T) {
	assert.Subset(t, PageProviders(), []string{"caching", "filesystem", "versioning"})
	assert.Subset(t, AttachmentProviders(), []string{"basic", "caching"})
}

func TestRegistry_Unknown(t *testing.T) {
	ctx := context.Background()
	_, err := NewPage(ctx, "jcr", Options{PageDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewAttachment(ctx, "jcr", Options{AttachmentDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterPage("filesystem", func(context.Context, Options) (PageProvider, error) { return nil, nil })
	})
}

func TestRegistry_CachingWrapsNamedProvider(t *testing.T) {
	ctx := context.Background()
	opts := Options{
		PageDir:       t.TempDir(),
		AttachmentDir: t.TempDir(),
		Settings: map[string]any{
			"caching": map[string]any{"provider": "filesystem", "pages": 5},
		},
	}

	p, err := NewPage(ctx, "caching", opts)
	require.NoError(t, err)
	c, ok := p.(*CachingProvider)
	require.True(t, ok)
	assert.IsType(t, &FileSystemProvider{}, c.Inner())
	assert.Equal(t, 5, c.pages.Capacity())

	a, err := NewAttachment(ctx, "caching", opts)
	require.NoError(t, err)
	ca, ok := a.(*CachingAttachmentProvider)
	require.True(t, ok)
	assert.IsType(t, &BasicAttachmentProvider{}, ca.Inner())
}

func TestRegistry_CachingCannotWrapItself(t *testing.T) {
	opts := Options{
		PageDir:  t.TempDir(),
		Settings: map[string]any{"caching": map[string]any{"provider": "caching"}},
	}
	_, err := NewPage(context.Background(), "caching", opts)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRegistry_BadSettings(t *testing.T) {
	opts := Options{
		PageDir:  t.TempDir(),
		Settings: map[string]any{"caching": map[string]any{"pages": "lots"}},
	}
	_, err := NewPage(context.Background(), "caching", opts)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestOptions_Limits(t *testing.T) {
	l := Options{}.limits()
	assert.Equal(t, 200, l.MaxProperties)
	assert.Equal(t, 255, l.MaxKeyLength)
	assert.Equal(t, 4096, l.MaxValueLength)
}

func TestOptions_BadEncoding(t *testing.T) {
	_, err := NewFileSystemProvider(Options{PageDir: t.TempDir(), Encoding: "klingon"})
	assert.ErrorIs(t, err, ErrConfig)
}
