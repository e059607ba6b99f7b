package tag_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/tag"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

func setup(t *testing.T, pages ...string) (service.Service, *tag.Store) {
	t.Helper()
	ctx := context.Background()
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := wiki.Open(ctx, ws, &config.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	for _, name := range pages {
		_, err := svc.Save(ctx, name, "text of "+name, service.SaveOptions{Author: "tester"})
		require.NoError(t, err)
	}
	s, err := tag.Open(svc.DB())
	require.NoError(t, err)
	return svc, s
}

func TestAdd_UsesStoredPageName(t *testing.T) {
	svc, s := setup(t, "Garden/Tomatoes")
	ctx := context.Background()

	var buf bytes.Buffer
	result, err := tag.Add(ctx, &buf, svc, s, "Garden/Tomatoes", "veg")
	require.NoError(t, err)
	assert.Equal(t, "Garden/Tomatoes", result.Page)
	assert.Equal(t, []string{"veg"}, result.Tags)
	assert.Contains(t, buf.String(), `Added tag "veg" to Garden/Tomatoes`)

	// Adding the same tag again is a no-op.
	result, err = tag.Add(ctx, &buf, svc, s, "Garden/Tomatoes", "VEG")
	require.NoError(t, err)
	assert.Equal(t, []string{"veg"}, result.Tags)
}

func TestAdd_Errors(t *testing.T) {
	svc, s := setup(t, "Home")
	ctx := context.Background()

	_, err := tag.Add(ctx, &bytes.Buffer{}, svc, s, "Missing", "x")
	assert.ErrorIs(t, err, provider.ErrNotFound)

	for _, bad := range []string{"", "two words", "tab\there"} {
		_, err := tag.Add(ctx, &bytes.Buffer{}, svc, s, "Home", bad)
		assert.ErrorIs(t, err, tag.ErrInvalidTag, "tag %q", bad)
	}
}

func TestRemove(t *testing.T) {
	_, s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "Home", "a"))
	require.NoError(t, s.Add(ctx, "Home", "b"))

	var buf bytes.Buffer
	result, err := tag.Remove(ctx, &buf, s, "home", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.Tags)
	assert.Contains(t, buf.String(), "Removed tag")

	buf.Reset()
	_, err = tag.Remove(ctx, &buf, s, "Home", "a")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `has no tag "a"`)
}

func TestListAndTagged(t *testing.T) {
	_, s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "Beta", "draft"))
	require.NoError(t, s.Add(ctx, "Alpha", "draft"))
	require.NoError(t, s.Add(ctx, "Alpha", "archive"))

	var buf bytes.Buffer
	result, err := tag.List(ctx, &buf, s, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "draft"}, result.Tags)
	assert.Equal(t, []tag.Count{{Tag: "archive", Pages: 1}, {Tag: "draft", Pages: 2}}, result.Counts)
	assert.Equal(t, "archive (1)\ndraft (2)\n", buf.String())

	buf.Reset()
	result, err = tag.List(ctx, &buf, s, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "draft"}, result.Tags)

	buf.Reset()
	result, err = tag.Tagged(ctx, &buf, s, "draft")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, result.Pages)
	assert.Equal(t, "Alpha\nBeta\n", buf.String())
}

func TestMoveAndDropPage(t *testing.T) {
	_, s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "Old", "a"))
	require.NoError(t, s.Add(ctx, "Old", "b"))
	require.NoError(t, s.Add(ctx, "New", "b"))

	require.NoError(t, s.Move(ctx, "Old", "New"))
	tags, err := s.Tags(ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
	tags, err = s.Tags(ctx, "Old")
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, s.Move(ctx, "New", "NEW"))
	pages, err := s.Pages(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW"}, pages)

	require.NoError(t, s.DropPage(ctx, "new"))
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
