package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefs(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "Home", "Links to [About] and [Contact].")
	env.run("write", "About", "Back to [Home].")
	env.run("write", "Orphan", "Nobody links here.")

	assert.Equal(t, []string{"About", "Contact"}, lines(env.run("refs", "from", "Home")))
	assert.Equal(t, []string{"Home"}, lines(env.run("refs", "to", "About")))
	assert.Equal(t, []string{"Contact"}, lines(env.run("refs", "uncreated")))
	assert.Equal(t, []string{"Orphan"}, lines(env.run("refs", "unreferenced")))

	env.run("write", "Contact", "Mail us.")
	assert.Empty(t, lines(env.run("refs", "uncreated")))

	env.contains(env.run("refs", "rebuild"), "Rebuilt")
	assert.Equal(t, []string{"Orphan"}, lines(env.run("refs", "unreferenced")))

	var names []string
	require.NoError(t, json.Unmarshal(env.stdout("refs", "to", "Home", "--json"), &names))
	assert.Equal(t, []string{"About"}, names)
}
