package extension

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

// testExtension is a minimal Extension implementation for testing.
type testExtension struct {
	name string
}

func (e testExtension) Name() string               { return e.name }
func (e testExtension) Commands() []*cobra.Command { return nil }
func (e testExtension) MCPTools() []MCPTool        { return nil }

type listener struct {
	testExtension
	got []Event
}

func (l *listener) HandleEvent(_ Context, e Event) error {
	l.got = append(l.got, e)
	return nil
}

func TestRegister_PanicOnDuplicate(t *testing.T) {
	name := "test-duplicate-panic"
	Register(testExtension{name: name})

	assert.Panics(t, func() { Register(testExtension{name: name}) })
}

func TestHandlers_OnlyEventHandlers(t *testing.T) {
	l := &listener{testExtension: testExtension{name: "test-listener"}}
	Register(testExtension{name: "test-silent"})
	Register(l)

	var names []string
	for _, h := range Handlers() {
		names = append(names, h.Name())
	}
	assert.Contains(t, names, "test-listener")
	assert.NotContains(t, names, "test-silent")
	assert.Same(t, Get("test-listener"), Extension(l))
}

func TestEvents(t *testing.T) {
	saved := PageSavedEvent{Page: "Main", Version: 2}
	assert.Equal(t, EventPageSaved, saved.EventType())
	assert.Equal(t, "Main", saved.EventPage())

	renamed := PageRenamedEvent{From: "Old", To: "New"}
	assert.Equal(t, EventPageRenamed, renamed.EventType())
	assert.Equal(t, "New", renamed.EventPage())

	assert.Equal(t, EventPageDeleted, PageDeletedEvent{Page: "X"}.EventType())
}
