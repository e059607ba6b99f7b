// approval.go connects the content repository's save workflow to the
// wiki: the configured approval gate, the page size filter, the reference
// hook, and the commands that decide held saves.

package wiki

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/validate"
)

// pageApprover holds saves to pages matching approval.pages unless the
// author is trusted.
type pageApprover struct {
	patterns []string
	trusted  []string
}

func newApprover(a config.Approval) content.Approver {
	if len(a.Pages) == 0 {
		return nil
	}
	out := pageApprover{trusted: a.Trusted}
	for _, p := range a.Pages {
		out.patterns = append(out.patterns, strings.ToLower(p))
	}
	return out
}

func (a pageApprover) RequiresApproval(_ context.Context, p *provider.Page) bool {
	if slices.ContainsFunc(a.trusted, func(t string) bool { return strings.EqualFold(t, p.Author) }) {
		return false
	}
	name := strings.ToLower(p.Name)
	for _, pattern := range a.patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// sizeFilter rejects page text over limits.max_page_size.
type sizeFilter struct {
	max int64
}

func (f sizeFilter) PreSave(_ context.Context, _ *provider.Page, text string) (string, error) {
	return text, validate.Content(text, f.max)
}

func (sizeFilter) PostSave(context.Context, *provider.Page, string) error { return nil }

// configureContent installs the wiki's gates and hooks on the content
// store.
func (s *Service) configureContent(m *content.Manager) {
	m.SetStrictHooks(s.cfg.StrictReferences())
	m.SetPrincipal(func(context.Context) string { return s.cfg.Author.Name })
	if max := s.cfg.MaxPageSize(); max > 0 {
		m.AddFilter(sizeFilter{max: max})
	}
	if a := newApprover(s.cfg.Approval); a != nil {
		m.SetApprover(a)
	}
	m.AddHook(s.pageCommitted)
}

// pageCommitted refreshes the reference index after every commit to the
// content store, including saves committed later by Decide.
func (s *Service) pageCommitted(ctx context.Context, p *provider.Page, text string) error {
	if err := s.refs.PageSaved(ctx, p.Name, text); err != nil {
		return fmt.Errorf("%w: %v", ErrReferences, err)
	}
	return nil
}

// Pending returns the saves held for approval. Only the content store
// holds saves.
func (s *Service) Pending(ctx context.Context) ([]service.PendingSave, error) {
	if s.content == nil {
		return nil, nil
	}
	waiting, err := s.content.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.PendingSave, len(waiting))
	for i, wf := range waiting {
		out[i] = service.PendingSave{
			ID:         wf.ID,
			Page:       wf.Page.Name,
			Author:     wf.Page.Author,
			ChangeNote: wf.Page.ChangeNote,
			Created:    wf.Created,
		}
	}
	return out, nil
}

// Decide approves or rejects the held save id.
func (s *Service) Decide(ctx context.Context, id string, approve bool) (*provider.Page, error) {
	if s.content == nil {
		return nil, fmt.Errorf("%w: %s", content.ErrUnknownWorkflow, id)
	}
	action := "approve"
	if !approve {
		action = "reject"
	}

	wf, err := s.content.Decide(ctx, id, approve)
	if wf == nil {
		log.Event("wiki:approval", action).Detail("workflow", id).Write(err)
		return nil, err
	}
	p := wf.Page.Clone()
	log.Event("wiki:approval", action).
		Author(p.Author).
		Page(p.Name).
		Version(p.Version).
		Detail("workflow", id).
		Write(err)
	// A strict reference failure leaves the version committed but, as in
	// Save, extensions are not told.
	if !approve || err != nil {
		return p, err
	}

	text, err := s.pages.PageText(ctx, p.Name, p.Version)
	if err != nil {
		return p, err
	}
	s.fireEvent(extension.PageSavedEvent{
		Page:       p.Name,
		Version:    p.Version,
		Author:     p.Author,
		ChangeNote: p.ChangeNote,
		Text:       text,
	})
	return p, nil
}
