package rm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/rm"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

// setupService opens a wiki in a temporary workspace.
func setupService(t *testing.T) service.Service {
	t.Helper()
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := wiki.Open(context.Background(), ws, &config.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func save(t *testing.T, svc service.Service, name, text string) {
	t.Helper()
	_, err := svc.Save(context.Background(), name, text, service.SaveOptions{Author: "tester"})
	require.NoError(t, err)
}

func TestRun_DeletesPage(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	save(t, svc, "Main", "one")
	save(t, svc, "Main", "two")

	var buf bytes.Buffer
	result, err := rm.Run(ctx, &buf, svc, "Main", rm.Options{})
	require.NoError(t, err)
	assert.True(t, result.Gone)
	assert.Equal(t, "Deleted Main\n", buf.String())

	exists, err := svc.Exists(ctx, "Main")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_LatestVersionPromotesPrevious(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	save(t, svc, "Main", "one")
	save(t, svc, "Main", "two")

	var buf bytes.Buffer
	result, err := rm.Run(ctx, &buf, svc, "Main", rm.Options{Version: provider.Latest})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.False(t, result.Gone)

	text, err := svc.Text(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "one", text)
}

func TestRun_LastVersionDeletesPage(t *testing.T) {
	svc := setupService(t)
	save(t, svc, "Main", "only")

	var buf bytes.Buffer
	result, err := rm.Run(context.Background(), &buf, svc, "Main", rm.Options{Version: 1})
	require.NoError(t, err)
	assert.True(t, result.Gone)
	assert.Contains(t, buf.String(), "was the last")
}

func TestRun_Missing(t *testing.T) {
	svc := setupService(t)
	var buf bytes.Buffer
	_, err := rm.Run(context.Background(), &buf, svc, "Nope", rm.Options{})
	assert.ErrorIs(t, err, provider.ErrNotFound)
}
