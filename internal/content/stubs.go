// stubs.go implements uncreated-page stubs and page locks.
//
// A stub is a node under /wiki:uncreated recording how a missing page was
// first spelled in a link, so the resolver can canonicalise its case before
// the page exists. The reference manager adds stubs as links to missing
// pages appear and the store drops a stub once the page is created.

package content

import (
	"context"
	"errors"

	"github.com/jpl-au/wikid/internal/lock"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/wikipath"
)

// AddStub records name as referenced but not created. It does nothing when
// the page exists.
func (m *Manager) AddStub(ctx context.Context, name string) error {
	p := m.Path(name)
	if p.IsZero() {
		return nil
	}
	return m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		if n, err := s.Node(ctx, p.RepoPath()); err == nil && isPage(n) {
			return nil
		}
		n, err := s.Ensure(ctx, p.UncreatedPath())
		if err != nil {
			return err
		}
		if n.Attrs[attrStub] != "" {
			return nil
		}
		n.Attrs[attrStub] = "true"
		return s.Save(ctx, n)
	})
}

// RemoveStub forgets the stub for name.
func (m *Manager) RemoveStub(ctx context.Context, name string) error {
	p := m.Path(name)
	if p.IsZero() {
		return nil
	}
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		return m.dropStub(ctx, s, p)
	})
	if err == nil {
		m.resolver.Clear()
	}
	return err
}

// dropStub removes the stub at p. A stub with stubs beneath it only loses
// its marker so the deeper stubs survive.
func (m *Manager) dropStub(ctx context.Context, s *repository.Session, p wikipath.WikiPath) error {
	n, err := s.Node(ctx, p.UncreatedPath())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	kids, err := s.Children(ctx, p.UncreatedPath())
	if err != nil {
		return err
	}
	if len(kids) == 0 {
		return s.Remove(ctx, p.UncreatedPath())
	}
	delete(n.Attrs, attrStub)
	return s.Save(ctx, n)
}

// Stubs returns the names of all uncreated stubs.
func (m *Manager) Stubs(ctx context.Context) ([]string, error) {
	var out []string
	err := m.session(ctx, func(ctx context.Context, s *repository.Session) error {
		nodes, err := s.Descendants(ctx, wikipath.UncreatedRoot)
		if err != nil {
			return err
		}
		for i := range nodes {
			if nodes[i].Attrs[attrStub] == "" {
				continue
			}
			p, err := m.resolver.PathOf(ctx, nodes[i].UUID)
			if err != nil {
				return err
			}
			out = append(out, m.Name(p))
		}
		return nil
	})
	return out, err
}

// Locks returns the lock manager.
func (m *Manager) Locks() *lock.Manager { return m.locks }

// LockPage locks name for user, returning nil when someone holds it.
func (m *Manager) LockPage(name, user string) *lock.PageLock {
	return m.locks.Lock(m.Path(name).String(), user)
}

// UnlockPage releases l.
func (m *Manager) UnlockPage(l *lock.PageLock) {
	m.locks.Unlock(l)
}

// CurrentLock returns the lock held on name, or nil.
func (m *Manager) CurrentLock(name string) *lock.PageLock {
	return m.locks.Current(m.Path(name).String())
}

// ActiveLocks returns every unexpired lock.
func (m *Manager) ActiveLocks() []lock.PageLock {
	return m.locks.Active()
}
