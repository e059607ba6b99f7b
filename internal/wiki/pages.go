// pages.go implements page operations on the wiki service.
//
// Separated from wiki.go to keep store wiring apart from the per-operation
// pipeline: validate, commit to the store, update the reference index,
// audit, then notify extensions.

package wiki

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/validate"
)

// author returns a, falling back to the configured author.
func (s *Service) author(a string) string {
	if a != "" {
		return a
	}
	return s.cfg.Author.Name
}

// Save stores text as the newest version of name.
func (s *Service) Save(ctx context.Context, name, text string, opts service.SaveOptions) (*provider.Page, error) {
	name, err := validate.PageName(name, validate.MaxNameLength)
	if err != nil {
		return nil, err
	}
	if err := validate.Properties(opts.Attributes, s.cfg.PropertyLimits()); err != nil {
		return nil, err
	}

	// The content store enforces the size limit in its own filter chain.
	if s.content == nil {
		if err := validate.Content(text, s.cfg.MaxPageSize()); err != nil {
			return nil, err
		}
	}

	p := &provider.Page{
		Name:       name,
		Author:     s.author(opts.Author),
		ChangeNote: opts.ChangeNote,
		Attributes: maps.Clone(opts.Attributes),
	}
	err = s.pages.PutPageText(ctx, p, text)
	if errors.Is(err, content.ErrPending) {
		log.Event("wiki:save", "hold").Author(p.Author).Page(name).Detail("bytes", len(text)).Write(nil)
		return p, err
	}
	// The content store refreshes references from its commit hook; a
	// strict failure there arrives here after the commit.
	committed := err == nil || errors.Is(err, ErrReferences)
	writeErr := err
	if committed {
		writeErr = nil
	}
	log.Event("wiki:save", "write").
		Author(p.Author).
		Page(name).
		Version(p.Version).
		Detail("bytes", len(text)).
		Write(writeErr)
	if !committed {
		return nil, err
	}
	if err != nil {
		return p, err
	}

	if s.content == nil {
		if err := s.indexed("save", name, s.refs.PageSaved(ctx, name, text)); err != nil {
			return p, err
		}
	}
	s.fireEvent(extension.PageSavedEvent{
		Page:       name,
		Version:    p.Version,
		Author:     p.Author,
		ChangeNote: p.ChangeNote,
		Text:       text,
	})
	return p, nil
}

// Text returns the text of name at version.
func (s *Service) Text(ctx context.Context, name string, version int) (string, error) {
	return s.pages.PageText(ctx, name, version)
}

// Info returns the metadata of name at version.
func (s *Service) Info(ctx context.Context, name string, version int) (*provider.Page, error) {
	return s.pages.PageInfo(ctx, name, version)
}

// History returns every version of name, newest first.
func (s *Service) History(ctx context.Context, name string) ([]provider.Page, error) {
	return s.pages.VersionHistory(ctx, name)
}

// Exists reports whether name exists.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	return s.pages.PageExists(ctx, name, provider.Latest)
}

// List returns the latest version of every page matching opts.
func (s *Service) List(ctx context.Context, opts service.ListOptions) ([]provider.Page, error) {
	var (
		all []provider.Page
		err error
	)
	if opts.Since.IsZero() {
		all, err = s.pages.AllPages(ctx)
	} else {
		all, err = s.pages.AllChangedSince(ctx, opts.Since)
	}
	if err != nil || opts.Prefix == "" {
		return all, err
	}
	prefix := strings.ToLower(opts.Prefix)
	out := all[:0]
	for _, p := range all {
		if strings.HasPrefix(strings.ToLower(p.Name), prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

// subPages returns the pages below name ("name/..."). Only the content
// repository nests pages; the flat stores treat "/" as part of the name.
func (s *Service) subPages(ctx context.Context, name string) ([]string, error) {
	if s.content == nil {
		return nil, nil
	}
	below, err := s.List(ctx, service.ListOptions{Prefix: name + "/"})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(below))
	for i, p := range below {
		names[i] = p.Name
	}
	return names, nil
}

// Delete removes name with its history, its attachments and, in the
// content repository, its sub-pages.
func (s *Service) Delete(ctx context.Context, name string) error {
	subs, err := s.subPages(ctx, name)
	if err != nil {
		return err
	}
	gone := append([]string{name}, subs...)

	for _, page := range gone {
		if err := s.deleteAttachments(ctx, page); err != nil {
			return err
		}
	}

	err = s.pages.DeletePage(ctx, name)
	log.Event("wiki:delete", "delete").Page(name).Detail("subpages", len(subs)).Write(err)
	if err != nil {
		return err
	}

	var refErr error
	for _, page := range gone {
		refErr = errors.Join(refErr, s.refs.PageDeleted(ctx, page))
	}
	if err := s.indexed("delete", name, refErr); err != nil {
		return err
	}
	s.fireEvent(extension.PageDeletedEvent{Page: name})
	return nil
}

// DeleteVersion removes one version of name. Removing the latest version
// promotes the previous one, so the index is refreshed from whatever is
// now the latest text.
func (s *Service) DeleteVersion(ctx context.Context, name string, version int) error {
	err := s.pages.DeleteVersion(ctx, name, version)
	log.Event("wiki:delete", "delete-version").Page(name).Version(version).Write(err)
	if err != nil {
		return err
	}

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.indexed("delete", name, s.refs.PageDeleted(ctx, name)); err != nil {
			return err
		}
		s.fireEvent(extension.PageDeletedEvent{Page: name})
		return nil
	}

	text, err := s.Text(ctx, name, provider.Latest)
	if err != nil {
		return err
	}
	if err := s.indexed("delete", name, s.refs.PageSaved(ctx, name, text)); err != nil {
		return err
	}
	s.fireEvent(extension.PageDeletedEvent{Page: name, Version: version})
	return nil
}

// Rename moves from to to, moves its attachments and rewrites every link
// to from. Rewrites are saved as new versions of the referring pages by
// author.
func (s *Service) Rename(ctx context.Context, from, to, author string) (*service.RenameResult, error) {
	to, err := validate.PageName(to, validate.MaxNameLength)
	if err != nil {
		return nil, err
	}
	subs, err := s.subPages(ctx, from)
	if err != nil {
		return nil, err
	}

	err = s.pages.MovePage(ctx, from, to)
	log.Event("wiki:rename", "move").Author(s.author(author)).Page(from).Target(to).Write(err)
	if err != nil {
		return nil, err
	}

	moved := map[string]string{from: to}
	for _, sub := range subs {
		moved[sub] = to + sub[len(from):]
	}
	var refErr error
	for oldName, newName := range moved {
		if err := s.atts.MoveAttachmentsForPage(ctx, oldName, newName); err != nil {
			// The page has moved; its attachments stay reachable under the
			// old name until moved by hand.
			log.Event("wiki:rename", "move-attachments").Page(oldName).Target(newName).Warn(err)
		}
		refErr = errors.Join(refErr, s.refs.Renamed(ctx, oldName, newName))
	}
	if err := s.indexed("rename", from, refErr); err != nil {
		return nil, err
	}

	res := &service.RenameResult{From: from, To: to}
	rewrites, err := s.refs.Rewrites(ctx, from, to)
	if err != nil {
		return res, err
	}
	note := fmt.Sprintf("Renamed links from %s to %s", from, to)
	for _, rw := range rewrites {
		_, err := s.Save(ctx, rw.Page, rw.Text, service.SaveOptions{Author: author, ChangeNote: note})
		if errors.Is(err, content.ErrPending) {
			// The rewrite waits for approval like any other save.
			continue
		}
		if err != nil {
			return res, fmt.Errorf("rewrite links in %s: %w", rw.Page, err)
		}
		res.Rewritten = append(res.Rewritten, rw.Page)
	}

	s.fireEvent(extension.PageRenamedEvent{From: from, To: to, Rewritten: res.Rewritten})
	return res, nil
}

// Diff compares two versions of name, or name with opts.Page2. Without
// versions the previous version is compared with the latest.
func (s *Service) Diff(ctx context.Context, name string, opts diff.Options) (diff.Result, error) {
	if opts.Page2 != "" {
		a, err := s.Text(ctx, name, provider.Latest)
		if err != nil {
			return diff.Result{}, err
		}
		b, err := s.Text(ctx, opts.Page2, provider.Latest)
		if err != nil {
			return diff.Result{}, err
		}
		return diff.Compute(a, b, name, opts.Page2), nil
	}

	v1, v2 := opts.Version1, opts.Version2
	if v2 == 0 {
		latest, err := s.Info(ctx, name, provider.Latest)
		if err != nil {
			return diff.Result{}, err
		}
		v2 = latest.Version
	}
	if v1 == 0 {
		v1 = max(v2-1, 1)
	}

	a, err := s.Text(ctx, name, v1)
	if err != nil {
		return diff.Result{}, err
	}
	b, err := s.Text(ctx, name, v2)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.Compute(a, b, fmt.Sprintf("%s@%d", name, v1), fmt.Sprintf("%s@%d", name, v2)), nil
}
