// pages.go implements provider.PageProvider over the node repository.
//
// Design: a page that has never been checked in has no version history in
// the repository. Reads of version 1 or Latest then fall back to the live
// node; any other version is a NoSuchVersion error.

package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/wikipath"
)

// PutPageText saves text through the workflow. A save waiting for approval
// returns an error matching ErrPending.
func (m *Manager) PutPageText(ctx context.Context, p *provider.Page, text string) error {
	wf, err := m.Save(ctx, p, text)
	if err != nil {
		return err
	}
	if wf.State == StateWaiting {
		return fmt.Errorf("%s: %w (workflow %s)", p.Name, ErrPending, wf.ID)
	}
	return nil
}

// AddPage creates an empty page at name without checking in a version.
func (m *Manager) AddPage(ctx context.Context, name string) (*provider.Page, error) {
	path := m.Path(name)
	if path.IsZero() {
		return nil, fmt.Errorf("page %q: %w", name, provider.ErrNotFound)
	}
	var out *provider.Page
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		n, err := s.Ensure(ctx, path.RepoPath())
		if err != nil {
			return err
		}
		if isPage(n) {
			return fmt.Errorf("page %q: %w", name, provider.ErrExists)
		}
		n.Attrs[attrCreated] = time.Now().UTC().Format(time.RFC3339)
		if err := s.Save(ctx, n); err != nil {
			return err
		}
		if err := m.dropStub(ctx, s, path); err != nil {
			return err
		}
		out = m.livePage(path, n)
		return nil
	})
	if err == nil {
		m.resolver.Clear()
	}
	return out, err
}

func (m *Manager) livePage(p wikipath.WikiPath, n *repository.Node) *provider.Page {
	v := n.Version
	if v == 0 {
		v = 1
	}
	return &provider.Page{
		Name:         m.Name(p),
		Version:      v,
		Author:       n.Author,
		ChangeNote:   n.ChangeNote,
		LastModified: n.Modified,
		Size:         int64(len(n.Content)),
		Attributes:   customAttrs(n.Attrs),
		HasMetadata:  true,
	}
}

// version resolves a requested version of the page at name.
func (m *Manager) version(ctx context.Context, s *repository.Session, name string, version int) (*provider.Page, string, error) {
	p, n, err := m.page(ctx, s, name)
	if err != nil {
		return nil, "", err
	}
	if version == provider.Latest || (version == n.Version && n.Version > 0) {
		return m.livePage(p, n), n.Content, nil
	}

	v, err := s.Version(ctx, p.RepoPath(), version)
	switch {
	case errors.Is(err, repository.ErrUnsupported):
		if version == 1 {
			return m.livePage(p, n), n.Content, nil
		}
		return nil, "", &provider.NoSuchVersionError{Name: m.Name(p), Requested: version, Latest: 1}
	case errors.Is(err, repository.ErrNoSuchVersion):
		return nil, "", &provider.NoSuchVersionError{Name: m.Name(p), Requested: version, Latest: n.Version}
	case err != nil:
		return nil, "", err
	}
	page := m.livePage(p, v)
	page.Version = version
	return page, v.Content, nil
}

// Page returns the page at name with its text.
func (m *Manager) Page(ctx context.Context, name string, version int) (*provider.Page, string, error) {
	var page *provider.Page
	var text string
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		var err error
		page, text, err = m.version(ctx, s, name, version)
		return err
	})
	return page, text, err
}

// PageText returns the text of a page version.
func (m *Manager) PageText(ctx context.Context, name string, version int) (string, error) {
	_, text, err := m.Page(ctx, name, version)
	return text, err
}

// PageInfo returns the metadata of a page version.
func (m *Manager) PageInfo(ctx context.Context, name string, version int) (*provider.Page, error) {
	page, _, err := m.Page(ctx, name, version)
	return page, err
}

// PageExists reports whether the page, or the given version of it, exists.
func (m *Manager) PageExists(ctx context.Context, name string, version int) (bool, error) {
	_, _, err := m.Page(ctx, name, version)
	if errors.Is(err, provider.ErrNotFound) || errors.Is(err, provider.ErrNoSuchVersion) {
		return false, nil
	}
	return err == nil, err
}

// AllPages returns the latest version of every page in every space.
func (m *Manager) AllPages(ctx context.Context) ([]provider.Page, error) {
	return m.pagesUnder(ctx, wikipath.PagesRoot)
}

// AllPagesIn returns the pages of one space.
func (m *Manager) AllPagesIn(ctx context.Context, space string) ([]provider.Page, error) {
	return m.pagesUnder(ctx, wikipath.PagesRoot+"/"+space)
}

func (m *Manager) pagesUnder(ctx context.Context, root string) ([]provider.Page, error) {
	var out []provider.Page
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		nodes, err := s.Descendants(ctx, root)
		if err != nil {
			return err
		}
		for i := range nodes {
			n := &nodes[i]
			if !isPage(n) {
				continue
			}
			p, err := m.resolver.PathOf(ctx, n.UUID)
			if err != nil {
				return err
			}
			out = append(out, *m.livePage(p, n))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// AllChangedSince returns pages modified after since.
func (m *Manager) AllChangedSince(ctx context.Context, since time.Time) ([]provider.Page, error) {
	all, err := m.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var out []provider.Page
	for _, p := range all {
		if p.LastModified.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// PageCount returns the number of pages.
func (m *Manager) PageCount(ctx context.Context) (int, error) {
	all, err := m.AllPages(ctx)
	return len(all), err
}

// VersionHistory returns every version of the page, newest first. A page
// that has never been checked in reports its live node as version 1.
func (m *Manager) VersionHistory(ctx context.Context, name string) ([]provider.Page, error) {
	var out []provider.Page
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		p, n, err := m.page(ctx, s, name)
		if err != nil {
			return err
		}
		vs, err := s.Versions(ctx, p.RepoPath())
		if errors.Is(err, repository.ErrUnsupported) {
			out = []provider.Page{*m.livePage(p, n)}
			return nil
		}
		if err != nil {
			return err
		}
		for i := range vs {
			out = append(out, *m.livePage(p, &vs[i]))
		}
		return nil
	})
	return out, err
}

// DeleteVersion removes one version. Removing the newest promotes the one
// before it; removing the only version deletes the page.
func (m *Manager) DeleteVersion(ctx context.Context, name string, version int) error {
	var deletePage bool
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		p, n, err := m.page(ctx, s, name)
		if err != nil {
			return err
		}
		if version == provider.Latest {
			version = max(n.Version, 1)
		}
		if !n.Versionable {
			if version != 1 {
				return &provider.NoSuchVersionError{Name: m.Name(p), Requested: version, Latest: 1}
			}
			deletePage = true
			return nil
		}
		left, err := s.RemoveVersion(ctx, p.RepoPath(), version)
		if errors.Is(err, repository.ErrNoSuchVersion) {
			return &provider.NoSuchVersionError{Name: m.Name(p), Requested: version, Latest: n.Version}
		}
		if err != nil {
			return err
		}
		deletePage = left == 0
		return nil
	})
	if err == nil && deletePage {
		return m.DeletePage(ctx, name)
	}
	log.Event("content:delete", "delete-version").Page(name).Version(version).Write(err)
	return err
}

// DeletePage removes the page with its sub-pages and history.
func (m *Manager) DeletePage(ctx context.Context, name string) error {
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		p, _, err := m.page(ctx, s, name)
		if err != nil {
			return err
		}
		return s.Remove(ctx, p.RepoPath())
	})
	if err == nil {
		m.resolver.Clear()
	}
	log.Event("content:delete", "delete").Page(name).Write(err)
	return err
}

// MovePage renames a page with its sub-pages and history.
func (m *Manager) MovePage(ctx context.Context, from, to string) error {
	dst := m.Path(to)
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		src, _, err := m.page(ctx, s, from)
		if err != nil {
			return err
		}
		if err := s.Move(ctx, src.RepoPath(), dst.RepoPath()); err != nil {
			if errors.Is(err, repository.ErrExists) {
				return fmt.Errorf("move %s to %s: %w", from, to, provider.ErrExists)
			}
			return err
		}
		return m.dropStub(ctx, s, dst)
	})
	if err == nil {
		m.resolver.Clear()
	}
	log.Event("content:move", "move").Page(from).Target(to).Write(err)
	return err
}

// ProviderInfo describes the store.
func (m *Manager) ProviderInfo() string {
	waiting, err := m.Waiting(context.Background())
	if err != nil {
		return fmt.Sprintf("ContentManager: default space %s", m.space)
	}
	return fmt.Sprintf("ContentManager: default space %s, %d workflows waiting", m.space, len(waiting))
}
