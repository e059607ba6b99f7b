// workflow.go implements the two-phase save.
//
// Phase one resolves the author, runs the pre-save filters and stashes the
// filtered text on the node as a pending attribute. Phase two copies the
// pending text into the node, checks in a version, then runs the post-save
// filters and hooks. Phase two only starts once phase one has succeeded and
// any required approval has been given, so a failed filter never leaves a
// partial commit.
//
// A save waiting for approval is recorded on its node, so any process
// opening the repository can list and decide it. A page holds at most one
// waiting save; a later save to the page replaces it.

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/validate"
	"github.com/jpl-au/wikid/internal/wikipath"
)

// State is the position of a workflow.
type State string

const (
	StateRunning   State = "running"
	StateWaiting   State = "waiting"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Workflow tracks one save.
type Workflow struct {
	ID      string
	Page    provider.Page
	State   State
	Created time.Time
	// Err is set when the workflow aborted.
	Err error

	path    wikipath.WikiPath
	resumed bool
}

// heldSave is the record stored in attrWorkflow while a save waits.
type heldSave struct {
	ID         string            `json:"id"`
	Author     string            `json:"author"`
	ChangeNote string            `json:"changenote,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Created    time.Time         `json:"created"`
}

// Save runs the save workflow for p with text. When approval is required
// the returned workflow is waiting and nothing has been committed; resume it
// with Decide. On completion p.Version and p.Author describe the new
// version.
func (m *Manager) Save(ctx context.Context, p *provider.Page, text string) (*Workflow, error) {
	name, err := validate.PageName(p.Name, 0)
	if err != nil {
		return nil, err
	}
	path := m.Path(name)
	if path.IsZero() {
		return nil, fmt.Errorf("%w: %q has no page path", validate.ErrInvalidName, name)
	}
	if err := validate.Properties(customAttrs(p.Attributes), m.limits); err != nil {
		return nil, err
	}
	// An existing page or stub decides the case of new nodes.
	path = m.resolver.CanonicalPath(ctx, path)

	m.mu.Lock()
	filters := append([]Filter(nil), m.filters...)
	approver := m.approver
	m.mu.Unlock()

	wf := &Workflow{ID: uuid.NewString(), State: StateRunning, Created: time.Now(), path: path}

	if p.Author == "" {
		p.Author = m.principalOf(ctx)
	}
	if p.Author == "" {
		p.Author = DefaultAuthor
	}

	for _, f := range filters {
		if text, err = f.PreSave(ctx, p, text); err != nil {
			return m.abort(wf, p, fmt.Errorf("pre-save filter: %w", err))
		}
	}

	wait := approver != nil && approver.RequiresApproval(ctx, p)
	var held []byte
	if wait {
		held, err = json.Marshal(heldSave{
			ID:         wf.ID,
			Author:     p.Author,
			ChangeNote: p.ChangeNote,
			Attributes: customAttrs(p.Attributes),
			Created:    wf.Created.UTC(),
		})
		if err != nil {
			return m.abort(wf, p, fmt.Errorf("record workflow: %w", err))
		}
	}

	err = m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		n, err := s.Ensure(ctx, path.RepoPath())
		if err != nil {
			return err
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]string)
		}
		n.Attrs[attrPending] = text
		if wait {
			n.Attrs[attrWorkflow] = string(held)
		} else {
			delete(n.Attrs, attrWorkflow)
		}
		// Save rewrites the live fields too, so keep them as they are.
		return s.Save(ctx, n)
	})
	if err != nil {
		return m.abort(wf, p, fmt.Errorf("stash %s: %w", path, err))
	}
	wf.Page = *p.Clone()

	if wait {
		wf.State = StateWaiting
		log.Event("content:save", "wait").
			Author(p.Author).
			Page(name).
			Detail("workflow", wf.ID).
			Write(nil)
		return wf, nil
	}

	err = m.commit(ctx, wf)
	// A hook failure still leaves a committed version behind.
	p.Version = wf.Page.Version
	p.LastModified = wf.Page.LastModified
	return wf, err
}

func (m *Manager) abort(wf *Workflow, p *provider.Page, err error) (*Workflow, error) {
	wf.State = StateAborted
	wf.Err = err
	wf.Page = *p.Clone()
	log.Event("content:save", "abort").
		Author(p.Author).
		Page(p.Name).
		Detail("workflow", wf.ID).
		Write(err)
	return wf, err
}

// commit is phase two.
func (m *Manager) commit(ctx context.Context, wf *Workflow) error {
	p := &wf.Page
	var text string
	var created bool
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		n, err := s.Node(ctx, wf.path.RepoPath())
		if err != nil {
			return err
		}
		if wf.resumed {
			if h, ok := decodeHeld(n); !ok || h.ID != wf.ID {
				return fmt.Errorf("%w: %s", ErrUnknownWorkflow, wf.ID)
			}
		}
		pending, ok := n.Attrs[attrPending]
		if !ok {
			return fmt.Errorf("%s has no pending text", wf.path)
		}
		text = pending

		attrs := maps.Clone(customAttrs(p.Attributes))
		if attrs == nil {
			attrs = make(map[string]string)
		}
		created = !isPage(n)
		if created {
			attrs[attrCreated] = time.Now().UTC().Format(time.RFC3339)
		} else {
			attrs[attrCreated] = n.Attrs[attrCreated]
		}

		n.Content = text
		n.Author = p.Author
		n.ChangeNote = p.ChangeNote
		n.Attrs = attrs
		n.Modified = time.Now()
		if err := s.Save(ctx, n); err != nil {
			return err
		}
		v, err := s.CheckIn(ctx, wf.path.RepoPath())
		if err != nil {
			return err
		}
		p.Version = v
		p.LastModified = n.Modified
		p.Size = int64(len(text))

		if created {
			return m.dropStub(ctx, s, wf.path)
		}
		return nil
	})
	if err != nil {
		wf.State = StateAborted
		wf.Err = err
		log.Event("content:save", "commit").Author(p.Author).Page(p.Name).Write(err)
		return err
	}
	if created {
		m.resolver.Clear()
	}
	log.Event("content:save", "commit").
		Author(p.Author).
		Page(p.Name).
		Version(p.Version).
		Write(nil)

	m.mu.Lock()
	filters := append([]Filter(nil), m.filters...)
	hooks := append([]Hook(nil), m.hooks...)
	strict := m.strict
	m.mu.Unlock()

	for _, f := range filters {
		if err := f.PostSave(ctx, p, text); err != nil {
			wf.State = StateAborted
			wf.Err = fmt.Errorf("post-save filter: %w", err)
			return wf.Err
		}
	}

	var hookErr error
	for _, h := range hooks {
		if err := h(ctx, p.Clone(), text); err != nil {
			log.Event("content:hook", "save").
				Author(p.Author).
				Page(p.Name).
				Warn(err)
			hookErr = errors.Join(hookErr, err)
		}
	}
	wf.State = StateCompleted
	if strict && hookErr != nil {
		return fmt.Errorf("post-save hook: %w", hookErr)
	}
	return nil
}

// Decide resumes a waiting workflow. Approval commits the stashed text;
// rejection discards it and leaves the workflow aborted with ErrRejected.
func (m *Manager) Decide(ctx context.Context, id string, approved bool) (*Workflow, error) {
	m.deciding.Lock()
	defer m.deciding.Unlock()

	wf, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if approved {
		wf.State = StateRunning
		wf.resumed = true
		return wf, m.commit(ctx, wf)
	}

	wf.State = StateAborted
	wf.Err = ErrRejected
	err = m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		n, err := s.Node(ctx, wf.path.RepoPath())
		if err != nil {
			return err
		}
		delete(n.Attrs, attrPending)
		delete(n.Attrs, attrWorkflow)
		if !isPage(n) {
			// Nothing was ever committed here; drop the node again.
			kids, err := s.Children(ctx, wf.path.RepoPath())
			if err != nil {
				return err
			}
			if len(kids) == 0 {
				return s.Remove(ctx, wf.path.RepoPath())
			}
		}
		return s.Save(ctx, n)
	})
	log.Event("content:save", "reject").
		Author(wf.Page.Author).
		Page(wf.Page.Name).
		Detail("workflow", wf.ID).
		Write(err)
	return wf, err
}

func (m *Manager) find(ctx context.Context, id string) (*Workflow, error) {
	waiting, err := m.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	for i := range waiting {
		if waiting[i].ID == id {
			return &waiting[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
}

func decodeHeld(n *repository.Node) (heldSave, bool) {
	raw, ok := n.Attrs[attrWorkflow]
	if !ok {
		return heldSave{}, false
	}
	var h heldSave
	if err := json.Unmarshal([]byte(raw), &h); err != nil || h.ID == "" {
		return heldSave{}, false
	}
	return h, true
}

// Waiting returns the workflows waiting for a decision, oldest first.
func (m *Manager) Waiting(ctx context.Context) ([]Workflow, error) {
	var out []Workflow
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		nodes, err := s.Descendants(ctx, wikipath.PagesRoot)
		if err != nil {
			return err
		}
		for i := range nodes {
			n := &nodes[i]
			h, ok := decodeHeld(n)
			if !ok {
				continue
			}
			if _, ok := n.Attrs[attrPending]; !ok {
				continue
			}
			path, err := m.resolver.PathOf(ctx, n.UUID)
			if err != nil {
				return err
			}
			out = append(out, Workflow{
				ID: h.ID,
				Page: provider.Page{
					Name:       m.Name(path),
					Author:     h.Author,
					ChangeNote: h.ChangeNote,
					Attributes: h.Attributes,
				},
				State:   StateWaiting,
				Created: h.Created,
				path:    path,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, err
}
