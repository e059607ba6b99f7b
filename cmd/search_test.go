package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Garden", "Tomatoes need full sun.")
	env.run("write", "Kitchen/Sauce", "Tomatoes make a fine sauce.")
	env.run("write", "Travel", "Trains across Europe.")

	assert.ElementsMatch(t, []string{"Garden", "Kitchen/Sauce"}, lines(env.run("find", "tomato*", "-l")))
	assert.Equal(t, []string{"Kitchen/Sauce"}, lines(env.run("find", "tomatoes", "-l", "-p", "Kitchen/")))
	env.contains(env.run("find", "trains"), "Travel: [Trains]")

	// Edits, renames and deletes keep the index current.
	env.run("edit", "Travel", "Trains", "Ferries")
	assert.Empty(t, lines(env.run("find", "trains", "-l")))
	env.run("mv", "Garden", "Allotment")
	assert.Contains(t, lines(env.run("find", "sun", "-l")), "Allotment")
	env.run("rm", "Allotment")
	assert.Empty(t, lines(env.run("find", "sun", "-l")))

	var res struct {
		Query string `json:"query"`
		Hits  []struct {
			Page string `json:"page"`
		} `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(env.stdout("find", "sauce", "--json"), &res))
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Kitchen/Sauce", res.Hits[0].Page)
}

func TestReindex(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "One", "first")
	env.run("write", "Two", "second")

	env.contains(env.run("reindex"), "Indexed 2 page(s)")

	var res map[string]int
	require.NoError(t, json.Unmarshal(env.stdout("reindex", "--json"), &res))
	assert.Equal(t, 2, res["indexed"])
}

func TestGrep(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Alpha", "first line\nTODO fix\nlast line")
	env.run("write", "Docs/Beta", "todo later")

	env.equals(env.run("grep", "TODO"), "Alpha:2:TODO fix")
	assert.Equal(t, []string{"Alpha", "Docs/Beta"}, lines(env.run("grep", "-i", "-l", "todo")))
	env.equals(env.run("grep", "-i", "todo", "Docs/"), "Docs/Beta:1:todo later")
	env.equals(env.run("grep", "-c", "line", "Alpha"), "Alpha:2")

	_, err := env.runErr("grep", "(")
	assert.Error(t, err)
}

func TestGlob(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"Home", "Project/Plan", "Project/Notes", "Archive/2024/Plan"} {
		env.run("write", name, "x")
	}

	assert.Equal(t, []string{"Project/Notes", "Project/Plan"}, lines(env.run("glob", "project/*")))
	assert.Equal(t, []string{"Archive/2024/Plan", "Project/Plan"}, lines(env.run("glob", "Plan")))
	assert.Len(t, lines(env.run("glob")), 4)

	var names []string
	require.NoError(t, json.Unmarshal(env.stdout("glob", "H*", "--json"), &names))
	assert.Equal(t, []string{"Home"}, names)
}
