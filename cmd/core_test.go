package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	env := newTestEnv(t)

	env.equals(env.run("config", "author.name"), "tester")

	env.run("config", "--local", "locks.expiry", "30m")
	env.contains(env.run("config", "--local", "locks.expiry"), "30m")

	_, err := env.runErr("config", "no.such.key", "x")
	assert.Error(t, err)

	_, err = env.runErr("config", "--local", "--global", "author.name")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	env := newBareEnv(t)
	env.contains(env.run("version"), "Build Tag:")

	var info map[string]string
	require.NoError(t, json.Unmarshal(env.stdout("version", "--json"), &info))
	assert.NotEmpty(t, info["go_version"])
}

func TestGuide(t *testing.T) {
	env := newBareEnv(t)
	env.contains(env.run("guide"), "wikid")
	env.contains(env.run("guide", "config"), "author.name")

	_, err := env.runErr("guide", "nonsense")
	assert.Error(t, err)
}

func TestLog(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "MainPage", "text")
	_, _ = env.runErr("cat", "Missing")

	out := env.run("log", "--page", "MainPage")
	env.contains(out, "wiki:save")

	out = env.run("log", "--level", "error")
	env.contains(out, "page:cat")

	_, err := env.runErr("log", "--level", "loud")
	assert.Error(t, err)
}

func TestLock(t *testing.T) {
	env := newTestEnv(t)
	env.run("write", "MainPage", "text")

	env.contains(env.run("lock", "acquire", "MainPage"), "Locked MainPage")
	// Locks live in the process, so a fresh run sees none.
	env.equals(env.run("lock", "ls"), "")
	_, err := env.runErr("lock", "release", "MainPage")
	assert.Error(t, err)
}
