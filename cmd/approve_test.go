package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApprovalEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.run("config", "storage.backend", "repository")
	env.run("config", "approval.pages", "Policies/*")
	env.run("config", "approval.trusted", "admin")
	return env
}

func heldIDs(t *testing.T, env *testEnv) []string {
	t.Helper()
	var held []struct {
		ID   string `json:"id"`
		Page string `json:"page"`
	}
	require.NoError(t, json.Unmarshal(env.stdout("approve", "--json"), &held))
	var ids []string
	for _, h := range held {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestApprove(t *testing.T) {
	t.Run("approve commits the held text", func(t *testing.T) {
		env := newApprovalEnv(t)

		env.contains(env.run("write", "Policies/Leave", "Take leave."), "Held Policies/Leave for approval")
		_, err := env.runErr("cat", "Policies/Leave")
		assert.Error(t, err, "nothing is committed while held")

		list := env.run("approve")
		env.contains(list, "Policies/Leave")
		env.contains(list, "tester")

		ids := heldIDs(t, env)
		require.Len(t, ids, 1)
		env.contains(env.run("approve", ids[0]), "Approved Policies/Leave v1")
		env.equals(env.run("cat", "Policies/Leave"), "Take leave.")
		assert.Empty(t, heldIDs(t, env))
	})

	t.Run("reject keeps the committed version", func(t *testing.T) {
		env := newApprovalEnv(t)
		env.run("write", "Policies/Leave", "v1", "--author", "admin")
		env.run("write", "Policies/Leave", "v2")

		ids := heldIDs(t, env)
		require.Len(t, ids, 1)
		env.contains(env.run("approve", ids[0], "--reject"), "Rejected save of Policies/Leave")
		env.equals(env.run("cat", "Policies/Leave"), "v1")

		_, err := env.runErr("approve", ids[0])
		assert.Error(t, err)
	})

	t.Run("unmatched pages save directly", func(t *testing.T) {
		env := newApprovalEnv(t)
		env.contains(env.run("write", "Notes", "hello"), "Wrote Notes v1")
		assert.Empty(t, heldIDs(t, env))
	})
}
