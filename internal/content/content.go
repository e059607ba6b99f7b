// Package content is the hierarchical page store. Pages are nodes under
// /pages/{space}/{path} in a [repository.Repository]; each save runs a
// two-phase workflow (filter and stash, then commit) and checks in a new
// node version.
//
// A Manager satisfies provider.PageProvider, so the wiki service and the
// reference manager treat it like the file stores. Page names given to the
// PageProvider methods are WikiPath strings; names in the default space may
// omit the "space:" prefix and are returned without it.
//
// Every operation runs inside a repository session. Callers that want several
// operations on one session wrap them in [repository.Repository.WithSession]
// themselves; the Manager then reuses the session from the context.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jpl-au/wikid/internal/lock"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/validate"
	"github.com/jpl-au/wikid/internal/wikipath"
)

var (
	// ErrPending is returned by PutPageText when the save waits for an
	// approval decision.
	ErrPending = errors.New("save is waiting for approval")
	// ErrRejected marks a save vetoed by a filter or by a rejecting
	// decision.
	ErrRejected = errors.New("save rejected")
	// ErrUnknownWorkflow is returned by Decide for an id that is not
	// waiting.
	ErrUnknownWorkflow = errors.New("no such waiting workflow")
)

// Node attributes reserved by the store. Custom page attributes never start
// with "wiki:".
const (
	attrPrefix   = "wiki:"
	attrCreated  = "wiki:created"
	attrPending  = "wiki:pending"
	attrWorkflow = "wiki:workflow" // a save waiting for approval
	attrStub     = "wiki:stub"
)

// DefaultAuthor is recorded when no author can be determined.
const DefaultAuthor = "unknown"

// Filter transforms page text around a save. PreSave runs before the text
// is stashed and may rewrite it; PostSave runs after the commit.
type Filter interface {
	PreSave(ctx context.Context, p *provider.Page, text string) (string, error)
	PostSave(ctx context.Context, p *provider.Page, text string) error
}

// Approver gates saves behind a decision. When RequiresApproval is true the
// workflow waits until Decide is called with its id.
type Approver interface {
	RequiresApproval(ctx context.Context, p *provider.Page) bool
}

// PrincipalFunc returns the user behind ctx, or "".
type PrincipalFunc func(ctx context.Context) string

// Hook runs after a save commits, for example to refresh the reference
// index. Its error is logged, and returned from the save when the manager
// is strict.
type Hook func(ctx context.Context, p *provider.Page, text string) error

// Options configures a Manager.
type Options struct {
	// Space is the default space for names without a "space:" prefix.
	Space    string
	Limits   validate.Limits
	Filters  []Filter
	Approver Approver
	// Principal resolves the author when a page carries none.
	Principal PrincipalFunc
	Hooks     []Hook
	// StrictHooks makes hook failures fail the save.
	StrictHooks bool
	// Locks is shared with other backends; a private manager is created
	// when nil.
	Locks *lock.Manager
	// ResolverSize bounds the resolver caches.
	ResolverSize int
}

// Manager stores pages in a repository.
type Manager struct {
	repo     *repository.Repository
	resolver *wikipath.Resolver
	locks    *lock.Manager
	ownLocks bool
	ownRepo  bool
	space    string
	limits   validate.Limits

	mu        sync.Mutex
	filters   []Filter
	approver  Approver
	principal PrincipalFunc
	hooks     []Hook
	strict    bool

	deciding sync.Mutex
}

var _ provider.PageProvider = (*Manager)(nil)

// New returns a Manager over repo.
func New(repo *repository.Repository, opts Options) *Manager {
	m := &Manager{
		repo:      repo,
		space:     opts.Space,
		limits:    opts.Limits,
		filters:   opts.Filters,
		approver:  opts.Approver,
		principal: opts.Principal,
		hooks:     opts.Hooks,
		strict:    opts.StrictHooks,
		locks:     opts.Locks,
	}
	if m.space == "" {
		m.space = wikipath.DefaultSpace
	}
	if m.limits == (validate.Limits{}) {
		m.limits = validate.DefaultLimits()
	}
	if m.locks == nil {
		m.locks = lock.NewManager(lock.Options{})
		m.ownLocks = true
	}
	m.resolver = wikipath.NewResolver(tree{repo}, opts.ResolverSize)
	return m
}

// Open opens the repository database at path and returns a Manager that
// closes it on Close.
func Open(path string, opts Options) (*Manager, error) {
	repo, err := repository.Open(path)
	if err != nil {
		return nil, err
	}
	m := New(repo, opts)
	m.ownRepo = true
	return m, nil
}

// Close stops a private lock reaper and closes an owned repository.
func (m *Manager) Close() error {
	if m.ownLocks {
		m.locks.Close()
	}
	if m.ownRepo {
		return m.repo.Close()
	}
	return nil
}

// Repository returns the underlying node repository.
func (m *Manager) Repository() *repository.Repository { return m.repo }

// Resolver returns the path resolver over the repository.
func (m *Manager) Resolver() *wikipath.Resolver { return m.resolver }

// Space returns the default space.
func (m *Manager) Space() string { return m.space }

// AddFilter appends a save filter.
func (m *Manager) AddFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
}

// AddHook appends a post-commit hook.
func (m *Manager) AddHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// SetApprover installs the approval gate. Nil disables approval.
func (m *Manager) SetApprover(a Approver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approver = a
}

// SetPrincipal installs the current-user lookup.
func (m *Manager) SetPrincipal(fn PrincipalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.principal = fn
}

// SetStrictHooks controls whether hook errors fail saves.
func (m *Manager) SetStrictHooks(strict bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strict = strict
}

// Path parses a page name in the default space.
func (m *Manager) Path(name string) wikipath.WikiPath {
	return wikipath.Parse(name, m.space)
}

// Name formats p the way PageProvider methods return names: without the
// space prefix when p is in the default space.
func (m *Manager) Name(p wikipath.WikiPath) string {
	if strings.EqualFold(p.Space(), m.space) {
		return p.Path()
	}
	return p.String()
}

// session runs fn on the session carried by ctx or a fresh one.
func (m *Manager) session(ctx context.Context, fn func(context.Context, *repository.Session) error) error {
	return m.repo.WithSession(ctx, m.principalOf(ctx), fn)
}

func (m *Manager) principalOf(ctx context.Context) string {
	m.mu.Lock()
	fn := m.principal
	m.mu.Unlock()
	if fn == nil {
		return ""
	}
	return fn(ctx)
}

// page resolves name and checks that it names a page.
func (m *Manager) page(ctx context.Context, s *repository.Session, name string) (wikipath.WikiPath, *repository.Node, error) {
	p := m.Path(name)
	if p.IsZero() {
		return p, nil, fmt.Errorf("page %q: %w", name, provider.ErrNotFound)
	}
	n, err := s.Node(ctx, p.RepoPath())
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !isPage(n)) {
		return p, nil, fmt.Errorf("page %q: %w", name, provider.ErrNotFound)
	}
	if err != nil {
		return p, nil, err
	}
	return m.resolver.CanonicalPath(ctx, p), n, nil
}

// isPage distinguishes pages from intermediate nodes created as ancestors.
func isPage(n *repository.Node) bool {
	return n.Attrs[attrCreated] != ""
}

// customAttrs returns the node attributes that belong to the page.
func customAttrs(attrs map[string]string) map[string]string {
	var out map[string]string
	for k, v := range attrs {
		if strings.HasPrefix(k, attrPrefix) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

// tree adapts the repository to wikipath.Tree.
type tree struct {
	repo *repository.Repository
}

func (t tree) node(ctx context.Context, fn func(context.Context, *repository.Session) (*repository.Node, error)) (*repository.Node, error) {
	var n *repository.Node
	err := t.repo.WithSession(ctx, "", func(ctx context.Context, s *repository.Session) error {
		var err error
		n, err = fn(ctx, s)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", wikipath.ErrNotFound, err)
	}
	return n, err
}

func (t tree) Title(ctx context.Context, rp string) (string, error) {
	n, err := t.node(ctx, func(ctx context.Context, s *repository.Session) (*repository.Node, error) {
		return s.Node(ctx, rp)
	})
	if err != nil {
		return "", err
	}
	return n.Title, nil
}

func (t tree) UUID(ctx context.Context, rp string) (string, error) {
	n, err := t.node(ctx, func(ctx context.Context, s *repository.Session) (*repository.Node, error) {
		return s.Node(ctx, rp)
	})
	if err != nil {
		return "", err
	}
	return n.UUID, nil
}

func (t tree) PathOf(ctx context.Context, id string) (string, error) {
	n, err := t.node(ctx, func(ctx context.Context, s *repository.Session) (*repository.Node, error) {
		return s.NodeByUUID(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return n.Path, nil
}
