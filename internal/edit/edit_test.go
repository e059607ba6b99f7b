package edit_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/edit"
	"github.com/jpl-au/wikid/internal/provider"
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

func TestParseLineRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		start   int
		end     int
		wantErr string
	}{
		{name: "valid range", input: "5:10", start: 5, end: 10},
		{name: "single line", input: "1:1", start: 1, end: 1},
		{name: "open-ended start", input: ":10", end: 10},
		{name: "open-ended end", input: "5:", start: 5},
		{name: "empty colon", input: ":", wantErr: "at least start or end line required"},
		{name: "no colon", input: "5", wantErr: "expected start:end"},
		{name: "too many colons", input: "1:2:3", wantErr: "expected start:end"},
		{name: "non-numeric start", input: "abc:10", wantErr: "invalid start line"},
		{name: "non-numeric end", input: "5:xyz", wantErr: "invalid end line"},
		{name: "zero start", input: "0:10", wantErr: "start line must be >= 1"},
		{name: "negative end", input: "1:-5", wantErr: "end line must be >= 1"},
		{name: "reversed", input: "9:3", wantErr: "greater than end line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := edit.ParseLineRange(tt.input)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, edit.ErrInvalidLineRange)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestReplace(t *testing.T) {
	got, err := edit.Replace("one two one", "one", "1", false)
	require.NoError(t, err)
	assert.Equal(t, "1 two one", got)

	got, err = edit.Replace("Hello World", "WORLD", "there", true)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", got)

	_, err = edit.Replace("abc", "xyz", "", false)
	assert.ErrorIs(t, err, edit.ErrTextNotFound)
}

func TestReplaceLines(t *testing.T) {
	text := "a\nb\nc\nd"

	got, err := edit.ReplaceLines(text, 2, 3, "X\n")
	require.NoError(t, err)
	assert.Equal(t, "a\nX\nd", got)

	got, err = edit.ReplaceLines(text, 3, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got)

	got, err = edit.ReplaceLines(text, 4, 99, "Y\nZ")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nY\nZ", got)

	_, err = edit.ReplaceLines(text, 9, 0, "")
	assert.Error(t, err)
}

func TestRun_SavesNewVersion(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "Main", "Hello World", service.SaveOptions{
		Author:     "tester",
		Attributes: map[string]string{"status": "draft"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := edit.Run(ctx, &buf, svc, "Main", edit.Options{Old: "World", New: "Wiki", Author: "editor"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.Equal(t, "Edited Main (now v2)\n", buf.String())

	text, err := svc.Text(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "Hello Wiki", text)

	info, err := svc.Info(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "editor", info.Author)
	assert.Equal(t, "draft", info.Attributes["status"])
}

func TestRun_Errors(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	var buf bytes.Buffer

	_, err := edit.Run(ctx, &buf, svc, "Missing", edit.Options{Old: "x", Author: "tester"})
	assert.ErrorIs(t, err, provider.ErrNotFound)

	_, err = svc.Save(ctx, "Main", "same", service.SaveOptions{Author: "tester"})
	require.NoError(t, err)
	_, err = edit.Run(ctx, &buf, svc, "Main", edit.Options{Old: "same", New: "same", Author: "tester"})
	assert.ErrorIs(t, err, edit.ErrUnchanged)
}

func TestRunLineRange(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "Main", "one\ntwo\nthree", service.SaveOptions{Author: "tester"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = edit.RunLineRange(ctx, &buf, svc, "Main", "2", edit.LineRangeOptions{Start: 2, End: 2, Author: "tester"})
	require.NoError(t, err)

	text, err := svc.Text(ctx, "Main", provider.Latest)
	require.NoError(t, err)
	assert.Equal(t, "one\n2\nthree", text)
}
