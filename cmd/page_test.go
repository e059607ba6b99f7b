package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	t.Run("stdin then cat", func(t *testing.T) {
		env := newTestEnv(t)
		text := "Welcome to the wiki.\n\nSee [Sandbox]."

		out := env.runStdin(text, "write", "MainPage")
		env.contains(out, "Wrote MainPage v1")

		env.equals(env.run("cat", "MainPage"), text)
	})

	t.Run("argument and file", func(t *testing.T) {
		env := newTestEnv(t)
		env.run("write", "Inline", "from an argument")
		env.equals(env.run("cat", "Inline"), "from an argument")

		path := filepath.Join(env.dir, "page.txt")
		require.NoError(t, os.WriteFile(path, []byte("from a file"), 0644))
		env.run("write", "FromFile", "-f", path)
		env.equals(env.run("cat", "FromFile"), "from a file")
	})

	t.Run("author and change note recorded", func(t *testing.T) {
		env := newTestEnv(t)
		env.run("write", "MainPage", "text", "-a", "alice", "-m", "First draft")

		out := env.run("history", "MainPage")
		env.contains(out, "alice")
		env.contains(out, "First draft")
	})

	t.Run("author required", func(t *testing.T) {
		env := newBareEnv(t)
		env.run("init")
		out, err := env.runErr("write", "MainPage", "text")
		assert.Error(t, err)
		assert.Contains(t, out, "author not configured")
	})

	t.Run("JSON output", func(t *testing.T) {
		env := newTestEnv(t)
		var res struct {
			Page    string `json:"page"`
			Version int    `json:"version"`
			Author  string `json:"author"`
		}
		require.NoError(t, json.Unmarshal(env.stdout("write", "MainPage", "x", "--json"), &res))
		assert.Equal(t, "MainPage", res.Page)
		assert.Equal(t, 1, res.Version)
		assert.Equal(t, "tester", res.Author)
	})
}

func TestCat(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Lines", "one\ntwo\nthree\nfour\n")
	env.run("write", "Lines", "changed\n")

	env.equals(env.run("cat", "Lines", "-v", "1", "-l", "2:3"), "two\nthree")
	env.contains(env.run("cat", "Lines", "-v", "1", "-n"), "4\tfour")
	env.equals(env.run("cat", "Lines"), "changed")

	_, err := env.runErr("cat", "Lines", "-v", "9")
	assert.Error(t, err)
	_, err = env.runErr("cat", "Missing")
	assert.Error(t, err)
}

func TestLs(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Beta", "b")
	env.run("write", "Alpha", "a longer page")
	env.run("write", "Project/Plan", "plan")

	assert.Equal(t, []string{"Alpha", "Beta", "Project/Plan"}, lines(env.run("ls")))
	assert.Equal(t, []string{"Project/Plan"}, lines(env.run("ls", "proj")))
	assert.Equal(t, []string{"Project/Plan", "Beta", "Alpha"}, lines(env.run("ls", "-R")))

	long := env.run("ls", "-l")
	env.contains(long, "AUTHOR")
	env.contains(long, "tester")

	tree := env.run("ls", "-t")
	env.contains(tree, "Project")
	env.contains(tree, "Plan")

	_, err := env.runErr("ls", "--sort", "colour")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "MainPage", "text", "-m", "note")

	out := env.run("info", "MainPage")
	env.contains(out, "name:       MainPage")
	env.contains(out, "version:    1")
	env.contains(out, "changenote: note")
}

func TestHistoryAndDiff(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "MainPage", "alpha\nbeta\n")
	env.run("write", "MainPage", "alpha\ngamma\n")
	env.run("write", "Other", "alpha\ndelta\n")

	hist := lines(env.run("history", "MainPage"))
	require.Len(t, hist, 2)
	assert.True(t, strings.HasPrefix(hist[0], "v2"))

	env.contains(env.run("history", "MainPage", "-d"), "=== v1 -> v2")

	d := env.run("diff", "MainPage")
	env.contains(d, "- beta")
	env.contains(d, "+ gamma")

	d = env.run("diff", "MainPage", "-v", "2:1")
	env.contains(d, "+ beta")

	d = env.run("diff", "MainPage", "--with", "Other")
	env.contains(d, "+ delta")
}

func TestMv(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Old", "old text")
	env.run("write", "Linker", "points at [Old]")

	out := env.run("mv", "Old", "New")
	env.contains(out, "Renamed Old -> New")
	env.contains(out, "Linker")

	env.equals(env.run("cat", "New"), "old text")
	env.equals(env.run("cat", "Linker"), "points at [New]")
	_, err := env.runErr("cat", "Old")
	assert.Error(t, err)

	env.equals(env.run("refs", "to", "New"), "Linker")
}

func TestRm(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Page", "one")
	env.run("write", "Page", "two")

	env.contains(env.run("rm", "Page", "--version", "2"), "version 2")
	env.equals(env.run("cat", "Page"), "one")

	env.run("rm", "Page")
	_, err := env.runErr("cat", "Page")
	assert.Error(t, err)

	_, err = env.runErr("rm", "Page")
	assert.Error(t, err)
}

func TestRevert(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Page", "good")
	env.run("write", "Page", "vandalised")

	env.contains(env.run("revert", "Page", "1"), "now v3")
	env.equals(env.run("cat", "Page"), "good")
	env.contains(env.run("history", "Page"), "Revert to v1")

	_, err := env.runErr("revert", "Page", "0")
	assert.Error(t, err)
}
