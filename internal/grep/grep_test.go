package grep_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/grep"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/wiki"
	"github.com/jpl-au/wikid/internal/workspace"
)

func setupService(t *testing.T, pages map[string]string) service.Service {
	t.Helper()
	ws, err := workspace.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := wiki.Open(context.Background(), ws, &config.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	for name, text := range pages {
		_, err := svc.Save(context.Background(), name, text, service.SaveOptions{Author: "tester"})
		require.NoError(t, err)
	}
	return svc
}

func TestRun(t *testing.T) {
	svc := setupService(t, map[string]string{
		"Alpha": "one\nTODO: fix\nthree",
		"Beta":  "nothing here",
		"Gamma": "todo later",
	})
	ctx := context.Background()

	tests := []struct {
		name  string
		opts  grep.Options
		want  string
		names []string
	}{
		{
			name:  "default",
			want:  "Alpha:2:TODO: fix\n",
			names: []string{"Alpha"},
		},
		{
			name:  "ignore case",
			opts:  grep.Options{IgnoreCase: true},
			want:  "Alpha:2:TODO: fix\nGamma:1:todo later\n",
			names: []string{"Alpha", "Gamma"},
		},
		{
			name:  "names only",
			opts:  grep.Options{IgnoreCase: true, NamesOnly: true},
			want:  "Alpha\nGamma\n",
			names: []string{"Alpha", "Gamma"},
		},
		{
			name:  "count",
			opts:  grep.Options{CountOnly: true, Invert: true},
			want:  "Alpha:2\nBeta:1\nGamma:1\n",
			names: []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name:  "context",
			opts:  grep.Options{Context: 1},
			want:  "Alpha-1-one\nAlpha:2:TODO: fix\nAlpha-3-three\n",
			names: []string{"Alpha"},
		},
		{
			name:  "prefix",
			opts:  grep.Options{IgnoreCase: true, Prefix: "gam"},
			want:  "Gamma:1:todo later\n",
			names: []string{"Gamma"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			result, err := grep.Run(ctx, &buf, svc, "TODO", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, tt.names, result.Names())
		})
	}
}

func TestRun_InvalidPattern(t *testing.T) {
	svc := setupService(t, nil)
	var buf bytes.Buffer
	_, err := grep.Run(context.Background(), &buf, svc, "(", grep.Options{})
	assert.ErrorContains(t, err, "invalid regex")
}

func TestRun_NoHitsIsEmptySlice(t *testing.T) {
	svc := setupService(t, map[string]string{"Alpha": "text"})
	var buf bytes.Buffer
	result, err := grep.Run(context.Background(), &buf, svc, "absent", grep.Options{})
	require.NoError(t, err)
	assert.NotNil(t, result.Hits)
	assert.Empty(t, result.Hits)
}
