// events.go defines the event types for extension notifications.
//
// Separated from extension.go to isolate the event system. Events let
// extensions react to page changes without modifying core logic.
//
// Design: events are delivered after the store has committed. Extensions
// observe; they cannot block or veto a save. Save-time vetoes belong to
// content filters, which run inside the save workflow.

package extension

// EventType identifies the kind of event.
type EventType string

const (
	EventPageSaved   EventType = "page.saved"
	EventPageDeleted EventType = "page.deleted"
	EventPageRenamed EventType = "page.renamed"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	EventPage() string
}

// PageSavedEvent is fired after a page version is stored.
type PageSavedEvent struct {
	Page       string
	Version    int
	Author     string
	ChangeNote string
	Text       string
}

func (e PageSavedEvent) EventType() EventType { return EventPageSaved }
func (e PageSavedEvent) EventPage() string    { return e.Page }

// PageDeletedEvent is fired after a page or one of its versions is removed.
// Version is 0 when the whole page was deleted.
type PageDeletedEvent struct {
	Page    string
	Version int
}

func (e PageDeletedEvent) EventType() EventType { return EventPageDeleted }
func (e PageDeletedEvent) EventPage() string    { return e.Page }

// PageRenamedEvent is fired after a page moves. Rewritten lists the
// referring pages whose links were updated.
type PageRenamedEvent struct {
	From      string
	To        string
	Rewritten []string
}

func (e PageRenamedEvent) EventType() EventType { return EventPageRenamed }
func (e PageRenamedEvent) EventPage() string    { return e.To }

// EventHandler is implemented by extensions that want to receive events.
type EventHandler interface {
	HandleEvent(ctx Context, e Event) error
}
