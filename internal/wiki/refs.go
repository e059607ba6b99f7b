package wiki

import (
	"context"
	"time"

	"github.com/jpl-au/wikid/internal/log"
)

// Referrers returns the pages linking to name.
func (s *Service) Referrers(ctx context.Context, name string) ([]string, error) {
	return s.refs.Referrers(ctx, name)
}

// RefersTo returns the targets name links to.
func (s *Service) RefersTo(ctx context.Context, name string) ([]string, error) {
	return s.refs.RefersTo(ctx, name)
}

// Uncreated returns link targets without a page.
func (s *Service) Uncreated(ctx context.Context) ([]string, error) {
	return s.refs.Uncreated(ctx)
}

// Unreferenced returns pages nothing links to.
func (s *Service) Unreferenced(ctx context.Context) ([]string, error) {
	return s.refs.Unreferenced(ctx)
}

// RebuildReferences recomputes the reference index from every page.
func (s *Service) RebuildReferences(ctx context.Context) error {
	start := time.Now()
	err := s.refs.Rebuild(ctx)
	log.Event("wiki:references", "rebuild").Detail("elapsed_ms", time.Since(start).Milliseconds()).Write(err)
	return err
}
