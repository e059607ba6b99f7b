// Package wiki provides the wiki service: the page store selected by
// configuration, the attachment store, the reference index and the lock
// table behind one [service.Service].
//
// Every mutation follows the same order: the store commits, the reference
// index follows, then extensions are notified. Reference failures are
// logged and tolerated unless references.strict is set.
package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/cache"
	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/lock"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/reference"
	"github.com/jpl-au/wikid/internal/repository"
	"github.com/jpl-au/wikid/internal/service"
	"github.com/jpl-au/wikid/internal/workspace"
)

// ErrReferences wraps a reference index failure surfaced in strict mode.
var ErrReferences = errors.New("reference index update failed")

// Service implements service.Service.
type Service struct {
	ws      workspace.Workspace
	cfg     *config.Config
	repo    *repository.Repository
	pages   provider.PageProvider
	content *content.Manager // set when storage.backend is repository
	atts    provider.AttachmentProvider
	refs    *reference.Manager
	locks   *lock.Manager
	caches  *cache.Factory
	extCtx  extension.Context
}

var _ service.Service = (*Service)(nil)

// New discovers the workspace from the working directory, loads the
// configuration and opens the service.
func New(ctx context.Context) (*Service, error) {
	ws, err := workspace.Discover()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err // config.Load provides detailed, actionable error messages
	}
	return Open(ctx, ws, cfg, nil)
}

// Open opens the stores for ws as cfg describes. Cache metrics register
// with reg when it is non-nil.
func Open(ctx context.Context, ws workspace.Workspace, cfg *config.Config, reg prometheus.Registerer) (*Service, error) {
	s := &Service{ws: ws, cfg: cfg}
	if err := s.open(ctx, reg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(ctx context.Context, reg prometheus.Registerer) error {
	repo, err := repository.Open(s.ws.DBPath())
	if err != nil {
		return fmt.Errorf("open workspace database: %w", err)
	}
	s.repo = repo
	s.locks = lock.NewManager(lock.Options{Expiry: s.cfg.LockExpiry(), Sweep: s.cfg.LockSweep()})

	if s.cfg.CacheEnabled() {
		dir := s.cfg.Cache.Dir
		if dir == "" && s.cfg.CacheBackend() == cache.BackendBadger {
			dir = "cache"
		}
		s.caches, err = cache.NewFactory(cache.Config{Backend: s.cfg.CacheBackend(), Dir: s.ws.Resolve(dir)}, reg)
		if err != nil {
			return err
		}
	}

	opts := s.providerOptions()
	if err := s.openPages(ctx, opts); err != nil {
		return err
	}
	if err := s.openAttachments(ctx, opts); err != nil {
		return err
	}

	refOpts := reference.Options{
		MatchPlurals: s.cfg.MatchPlurals(),
		Interwiki:    s.cfg.References.Interwiki,
		Attachments:  s.atts,
	}
	if s.content != nil {
		refOpts.Stubs = s.content
	}
	s.refs, err = reference.Open(ctx, repo.DB(), s.pages, refOpts)
	if err != nil {
		return fmt.Errorf("open reference index: %w", err)
	}
	return nil
}

// Close releases stores, caches, locks and the workspace database. It is
// safe on a partially opened service.
func (s *Service) Close() error {
	var errs []error
	if s.locks != nil {
		s.locks.Close()
	}
	for _, p := range []any{s.pages, s.atts} {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if s.caches != nil {
		errs = append(errs, s.caches.Close())
	}
	if s.repo != nil {
		errs = append(errs, s.repo.Close())
	}
	return errors.Join(errs...)
}

// SetExtensionContext sets the extension context for firing events.
// Called from cmd after creating the context.
func (s *Service) SetExtensionContext(ctx extension.Context) {
	s.extCtx = ctx
}

// ExtensionContext returns the context set by SetExtensionContext.
func (s *Service) ExtensionContext() extension.Context { return s.extCtx }

// Config returns the configuration the service was opened with.
func (s *Service) Config() *config.Config { return s.cfg }

// Workspace returns the workspace the service was opened in.
func (s *Service) Workspace() workspace.Workspace { return s.ws }

// DB returns the workspace database.
func (s *Service) DB() *sql.DB { return s.repo.DB() }

// ProviderInfo describes the page and attachment stores.
func (s *Service) ProviderInfo() string {
	return s.pages.ProviderInfo() + "\n" + s.atts.ProviderInfo()
}

// fireEvent notifies all registered extension event handlers.
//
// Design: handler errors are logged, not propagated. Events are
// notifications after the fact; an extension cannot undo a committed save.
func (s *Service) fireEvent(e extension.Event) {
	if s.extCtx == nil {
		return
	}
	for _, h := range extension.Handlers() {
		if err := h.HandleEvent(s.extCtx, e); err != nil {
			log.Event("event:error", "error").
				Detail("ext", h.Name()).
				Detail("event", string(e.EventType())).
				Page(e.EventPage()).
				Write(err)
		}
	}
}

// indexed reports a reference index failure. The failure is always logged;
// it is returned only when references.strict is set.
func (s *Service) indexed(action, page string, err error) error {
	if err == nil {
		return nil
	}
	log.Event("wiki:references", action).Page(page).Warn(err)
	if s.cfg.StrictReferences() {
		return fmt.Errorf("%w: %v", ErrReferences, err)
	}
	return nil
}
