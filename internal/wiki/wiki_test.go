package wiki_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

// recorder collects events delivered to extensions.
type recorder struct {
	mu     sync.Mutex
	events []extension.Event
}

func (r *recorder) Name() string                  { return "wiki-test-recorder" }
func (r *recorder) Commands() []*cobra.Command    { return nil }
func (r *recorder) MCPTools() []extension.MCPTool { return nil }

func (r *recorder) HandleEvent(_ extension.Context, e extension.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []extension.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []extension.EventType
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var events = &recorder{}

func init() {
	extension.Register(events)
}

func setup(t *testing.T, cfg *config.Config) *wiki.Service {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := wiki.Open(context.Background(), ws, cfg, nil)
	require.NoError(t, err)
	svc.SetExtensionContext(extension.NewContext(svc, cfg, ws))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func repositoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Backend = "repository"
	return cfg
}

func save(t *testing.T, svc *wiki.Service, name, text string) *provider.Page {
	t.Helper()
	p, err := svc.Save(context.Background(), name, text, service.SaveOptions{Author: "alice"})
	require.NoError(t, err)
	return p
}

func names(t *testing.T, fn func(context.Context) ([]string, error)) []string {
	t.Helper()
	out, err := fn(context.Background())
	require.NoError(t, err)
	return out
}

func TestSave_VersionsAndHistory(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  func() *config.Config
	}{
		{"files", func() *config.Config { return &config.Config{} }},
		{"repository", repositoryConfig},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := setup(t, tc.cfg())
			ctx := context.Background()

			assert.Equal(t, 1, save(t, svc, "MainPage", "first").Version)
			assert.Equal(t, 2, save(t, svc, "MainPage", "second").Version)

			text, err := svc.Text(ctx, "MainPage", provider.Latest)
			require.NoError(t, err)
			assert.Equal(t, "second", text)

			text, err = svc.Text(ctx, "MainPage", 1)
			require.NoError(t, err)
			assert.Equal(t, "first", text)

			hist, err := svc.History(ctx, "MainPage")
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, 2, hist[0].Version)
			assert.Equal(t, "alice", hist[0].Author)
		})
	}
}

func TestSave_RejectsBadInput(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, "  ", "x", service.SaveOptions{})
	assert.Error(t, err)

	_, err = svc.Save(ctx, "Page", "x", service.SaveOptions{Attributes: map[string]string{"k": "bad\x01"}})
	assert.Error(t, err)

	exists, err := svc.Exists(ctx, "Page")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSave_UpdatesReferencesAndFiresEvents(t *testing.T) {
	svc := setup(t, nil)
	events.reset()

	save(t, svc, "A", "see [B]")
	assert.Equal(t, []string{"B"}, names(t, svc.Uncreated))

	save(t, svc, "B", "back to [A]")
	assert.Empty(t, names(t, svc.Uncreated))
	assert.Empty(t, names(t, svc.Unreferenced))

	refs, err := svc.Referrers(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, refs)

	assert.Equal(t, []extension.EventType{extension.EventPageSaved, extension.EventPageSaved}, events.types())
}

func TestList(t *testing.T) {
	svc := setup(t, nil)
	save(t, svc, "Alpha", "")
	save(t, svc, "alphabet", "")
	save(t, svc, "Beta", "")

	all, err := svc.List(context.Background(), service.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := svc.List(context.Background(), service.ListOptions{Prefix: "ALPHA"})
	require.NoError(t, err)
	assert.Len(t, some, 2)
}

func TestRename_RewritesReferrers(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()
	events.reset()

	save(t, svc, "Old", "links to [A]")
	save(t, svc, "A", "see [Old] and [the old one|Old]")

	res, err := svc.Rename(ctx, "Old", "New", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Rewritten)

	text, err := svc.Text(ctx, "A", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "see [New] and [the old one|New]", text)

	info, err := svc.Info(ctx, "A", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Author)
	assert.Equal(t, 2, info.Version)

	exists, err := svc.Exists(ctx, "Old")
	require.NoError(t, err)
	assert.False(t, exists)

	refs, err := svc.Referrers(ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, refs)
	assert.Empty(t, names(t, svc.Uncreated))
	assert.Contains(t, events.types(), extension.EventPageRenamed)

	_, err = svc.Rename(ctx, "Missing", "Other", "bob")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestRename_MovesAttachments(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()
	save(t, svc, "Old", "")
	require.NoError(t, svc.Attach(ctx, &provider.Attachment{Page: "Old", FileName: "a.txt"}, strings.NewReader("data")))

	_, err := svc.Rename(ctx, "Old", "New", "bob")
	require.NoError(t, err)

	atts, err := svc.Attachments(ctx, "New")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "a.txt", atts[0].FileName)
}

func TestRename_RepositorySubPages(t *testing.T) {
	svc := setup(t, repositoryConfig())
	ctx := context.Background()
	save(t, svc, "Docs", "[Docs/Guide]")
	save(t, svc, "Docs/Guide", "guide")

	_, err := svc.Rename(ctx, "Docs", "Manual", "bob")
	require.NoError(t, err)

	text, err := svc.Text(ctx, "Manual/Guide", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "guide", text)

	text, err = svc.Text(ctx, "Manual", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "[Manual/Guide]", text)
	assert.Empty(t, names(t, svc.Uncreated))
}

func TestDelete(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()
	events.reset()

	save(t, svc, "A", "[B]")
	save(t, svc, "B", "")
	require.NoError(t, svc.Attach(ctx, &provider.Attachment{Page: "B", FileName: "x.bin"}, strings.NewReader("x")))

	require.NoError(t, svc.Delete(ctx, "B"))

	exists, err := svc.Exists(ctx, "B")
	require.NoError(t, err)
	assert.False(t, exists)
	atts, err := svc.Attachments(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, atts)
	assert.Equal(t, []string{"B"}, names(t, svc.Uncreated))
	assert.Contains(t, events.types(), extension.EventPageDeleted)
}

func TestDelete_RepositorySubPages(t *testing.T) {
	svc := setup(t, repositoryConfig())
	ctx := context.Background()
	save(t, svc, "Home", "[Docs/Guide]")
	save(t, svc, "Docs", "")
	save(t, svc, "Docs/Guide", "")

	require.NoError(t, svc.Delete(ctx, "Docs"))
	exists, err := svc.Exists(ctx, "Docs/Guide")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, []string{"Docs/Guide"}, names(t, svc.Uncreated))
}

func TestDeleteVersion(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()
	save(t, svc, "A", "[B]")
	save(t, svc, "A", "[C]")
	assert.Equal(t, []string{"C"}, names(t, svc.Uncreated))

	require.NoError(t, svc.DeleteVersion(ctx, "A", provider.Latest))
	text, err := svc.Text(ctx, "A", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "[B]", text)
	assert.Equal(t, []string{"B"}, names(t, svc.Uncreated))

	require.NoError(t, svc.DeleteVersion(ctx, "A", provider.Latest))
	exists, err := svc.Exists(ctx, "A")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, names(t, svc.Uncreated))
}

func TestAttachments(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()

	err := svc.Attach(ctx, &provider.Attachment{Page: "Nowhere", FileName: "a.txt"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, provider.ErrNotFound)

	save(t, svc, "A", "[A/logo.png]")
	assert.Equal(t, []string{"A/logo.png"}, names(t, svc.Uncreated))

	att := &provider.Attachment{Page: "A", FileName: "logo.png"}
	require.NoError(t, svc.Attach(ctx, att, strings.NewReader("v1")))
	assert.Equal(t, 1, att.Version)
	assert.Empty(t, names(t, svc.Uncreated))

	require.NoError(t, svc.Attach(ctx, &provider.Attachment{Page: "A", FileName: "logo.png"}, strings.NewReader("v2")))

	info, rc, err := svc.Attachment(ctx, "A", "logo.png", 1)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)
	assert.Equal(t, "v1", string(data))

	hist, err := svc.AttachmentHistory(ctx, "A", "logo.png")
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	require.NoError(t, svc.DeleteAttachment(ctx, "A", "logo.png", provider.Latest, true))
	assert.Equal(t, []string{"A/logo.png"}, names(t, svc.Uncreated))
}

func TestDiff(t *testing.T) {
	svc := setup(t, nil)
	ctx := context.Background()
	save(t, svc, "A", "one\ntwo\n")
	save(t, svc, "A", "one\nthree\n")
	save(t, svc, "B", "one\n")

	r, err := svc.Diff(ctx, "A", diff.Options{})
	require.NoError(t, err)
	assert.Equal(t, "A@1", r.Old)
	assert.Equal(t, "A@2", r.New)
	assert.Equal(t, "  one\n- two\n+ three\n", r.Diff)

	r, err = svc.Diff(ctx, "A", diff.Options{Page2: "B"})
	require.NoError(t, err)
	assert.Equal(t, "  one\n- three\n", r.Diff)

	var buf bytes.Buffer
	_, err = diff.Run(ctx, &buf, svc, "A", diff.Options{Version1: 2, Version2: 2}, false)
	require.NoError(t, err)
	assert.Equal(t, "--- A@2\n+++ A@2\n  one\n  three\n", buf.String())
}

func TestLocks(t *testing.T) {
	svc := setup(t, repositoryConfig())
	ctx := context.Background()

	l, err := svc.Lock(ctx, "Main", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", l.Locker)

	again, err := svc.Lock(ctx, "main", "alice")
	require.NoError(t, err)
	assert.Equal(t, l.ID, again.ID)

	held, err := svc.Lock(ctx, "MAIN", "bob")
	assert.ErrorIs(t, err, service.ErrLocked)
	assert.Equal(t, "alice", held.Locker)

	assert.ErrorIs(t, svc.Unlock(ctx, "Main", "bob", false), service.ErrNotLockHolder)
	assert.Len(t, svc.Locks(), 1)
	require.NoError(t, svc.Unlock(ctx, "Main", "bob", true))
	assert.Empty(t, svc.Locks())
	assert.ErrorIs(t, svc.Unlock(ctx, "Main", "alice", false), service.ErrNotLocked)
}

func TestRebuildReferences(t *testing.T) {
	svc := setup(t, nil)
	save(t, svc, "A", "[B] [C]")
	save(t, svc, "B", "")
	require.NoError(t, svc.RebuildReferences(context.Background()))
	assert.Equal(t, []string{"C"}, names(t, svc.Uncreated))
	assert.Equal(t, []string{"A"}, names(t, svc.Unreferenced))
}

func TestProviderInfo(t *testing.T) {
	info := setup(t, nil).ProviderInfo()
	assert.NotEmpty(t, info)

	cfg := &config.Config{}
	off := false
	cfg.Cache.Enabled = &off
	assert.NotEqual(t, info, setup(t, cfg).ProviderInfo())
}
