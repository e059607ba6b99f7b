package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home, work = t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(work)
	return home, work
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, cfg.Scope())
	assert.Equal(t, "files", cfg.Backend())
	assert.Equal(t, "versioning", cfg.PageProvider())
	assert.Equal(t, "basic", cfg.AttachmentProvider())
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.MatchPlurals())
	assert.Equal(t, time.Hour, cfg.LockExpiry())
	assert.Equal(t, "Main", cfg.DefaultSpaceName())
}

func TestLoad_LocalWinsOverGlobal(t *testing.T) {
	home, _ := isolate(t)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".wikid"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".wikid", "config.yaml"),
		[]byte("author:\n  name: global\n"), 0644))
	require.NoError(t, os.MkdirAll(".wikid", 0755))
	require.NoError(t, os.WriteFile(LocalPath(), []byte("author:\n  name: local\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ScopeLocal, cfg.Scope())
	assert.Equal(t, "local", cfg.Author.Name)
}

func TestLoad_EnvOverlay(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(".wikid", 0755))
	require.NoError(t, os.WriteFile(LocalPath(), []byte("storage:\n  page_provider: versioning\n"), 0644))

	t.Setenv("WIKID_STORAGE_PAGE_PROVIDER", "filesystem")
	t.Setenv("WIKID_CACHE_PAGES", "12")
	t.Setenv("WIKID_LOCKS_EXPIRY", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "filesystem", cfg.PageProvider())
	pages, _, _, _ := cfg.CacheSizes()
	assert.Equal(t, 12, pages)
	assert.Equal(t, 2*time.Hour, cfg.LockExpiry())
}

func TestLoad_RejectsInvalid(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(".wikid", 0755))

	for _, body := range []string{
		"storage:\n  page_provider: floppy\n",
		"attachments:\n  no_cache: \"([\"\n",
		"locks:\n  expiry: soon\n",
		"storage:\n  attachment_provider: s3\n",
		"cache:\n  dir: /tmp/cache\n",
	} {
		require.NoError(t, os.WriteFile(LocalPath(), []byte(body), 0644))
		_, err := Load()
		assert.ErrorIs(t, err, ErrInvalidValue, body)
	}
}

func TestGetSet(t *testing.T) {
	cfg := &Config{}

	v, err := cfg.Get("storage.backend")
	require.NoError(t, err)
	assert.Equal(t, "files", v)
	assert.False(t, cfg.IsSet("storage.backend"))

	require.NoError(t, cfg.Set("storage.backend", "repository"))
	assert.True(t, cfg.IsSet("storage.backend"))
	assert.Equal(t, "repository", cfg.Backend())

	require.NoError(t, cfg.Set("cache.enabled", "FALSE"))
	assert.False(t, cfg.CacheEnabled())

	require.NoError(t, cfg.Set("references.interwiki", "Wikipedia, C2 ,"))
	assert.Equal(t, []string{"Wikipedia", "C2"}, cfg.References.Interwiki)

	require.NoError(t, cfg.Set("locks.expiry", "1d"))
	assert.Equal(t, 24*time.Hour, cfg.LockExpiry())

	require.NoError(t, cfg.Set("approval.pages", "Policies/*, Main"))
	assert.Equal(t, []string{"Policies/*", "Main"}, cfg.Approval.Pages)
	require.NoError(t, cfg.Set("limits.max_page_size", "4096"))
	assert.Equal(t, int64(4096), cfg.MaxPageSize())
	require.NoError(t, cfg.Validate())

	require.NoError(t, cfg.Set("approval.pages", "[bad"))
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidValue)

	assert.ErrorIs(t, cfg.Set("storage.backend", "tape"), ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("cache.pages", "-1"), ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("locks.sweep", "0s"), ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("no.such", "x"), ErrUnknownKey)

	all := cfg.All()
	assert.Len(t, all, len(ValidKeys()))
	assert.Equal(t, "false", all["cache.enabled"])
}

func TestSaveScope_RoundTrip(t *testing.T) {
	isolate(t)

	cfg, err := LoadScope(ScopeLocal)
	require.NoError(t, err)
	require.NoError(t, cfg.Set("author.name", "alice"))
	require.NoError(t, cfg.Set("limits.max_properties", "5"))
	require.NoError(t, cfg.Save())

	back, err := LoadScope(ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, "alice", back.Author.Name)
	assert.Equal(t, 5, back.PropertyLimits().MaxProperties)
	assert.False(t, back.IsSet("cache.enabled"))
}
