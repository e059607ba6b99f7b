package sed_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/edit"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/sed"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

func setupService(t *testing.T) service.Service {
	t.Helper()
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := wiki.Open(context.Background(), ws, &config.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestRun(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "Main", "cat cat cat", service.SaveOptions{Author: "tester"})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := sed.Run(ctx, &buf, svc, "Main", "s/cat/dog/", sed.Options{Author: "tester"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)

	text, err := svc.Text(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "dog cat cat", text)

	_, err = sed.Run(ctx, &buf, svc, "Main", "s|cat|bird|g", sed.Options{Author: "tester"})
	require.NoError(t, err)
	text, err = svc.Text(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "dog bird bird", text)
}

func TestRun_TextNotFound(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "Main", "hello", service.SaveOptions{Author: "tester"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = sed.Run(ctx, &buf, svc, "Main", "s/absent/x/", sed.Options{Author: "tester"})
	assert.ErrorIs(t, err, edit.ErrTextNotFound)
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		old     string
		new     string
		global  bool
		wantErr error
	}{
		{name: "simple substitution", expr: "s/old/new/", old: "old", new: "new"},
		{name: "global substitution", expr: "s/old/new/g", old: "old", new: "new", global: true},
		{name: "alternate delimiter", expr: "s|old|new|", old: "old", new: "new"},
		{name: "empty replacement", expr: "s/delete//", old: "delete"},
		{name: "escaped delimiter", expr: `s/a\/b/c/`, old: "a/b", new: "c"},
		{name: "invalid command", expr: "d/old/new/", wantErr: sed.ErrUnsupportedCommand},
		{name: "too short", expr: "s//", wantErr: sed.ErrInvalidExpr},
		{name: "empty search", expr: "s//new/", wantErr: sed.ErrInvalidExpr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sed.ParseExpr(tt.expr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.old, result.Old)
			assert.Equal(t, tt.new, result.New)
			assert.Equal(t, tt.global, result.Global)
		})
	}
}
