// stores.go builds the page and attachment stores from configuration.
//
// Separated from wiki.go to isolate the mapping from config keys to
// provider registry names and settings. Stores are always built through the
// registry so out-of-tree backends registered by extensions are selectable
// by name.
//
// Design: the caching decorators wrap the flat-file stores only. The
// content repository is addressed directly because its save workflow can
// commit later (after an approval decision), which a write-through cache
// in front of it would not observe.

package wiki

import (
	"context"
	"fmt"

	"github.com/jpl-au/wikid/internal/content"
	"github.com/jpl-au/wikid/internal/markup"
	"github.com/jpl-au/wikid/internal/provider"
	_ "github.com/jpl-au/wikid/internal/provider/s3" // registers "s3"
)

const cachingProvider = "caching"

func (s *Service) providerOptions() provider.Options {
	cfg := s.cfg
	pages, texts, histories, attachments := cfg.CacheSizes()
	return provider.Options{
		PageDir:       s.ws.Resolve(cfg.PageDir()),
		AttachmentDir: s.ws.Resolve(cfg.AttachmentDir()),
		Encoding:      cfg.Encoding(),
		Limits:        cfg.PropertyLimits(),
		NoCache:       cfg.Attachments.NoCache,
		Caches:        s.caches,
		Parser:        markup.NewParser(cfg.PropertyLimits()),
		Settings: map[string]any{
			cachingProvider: map[string]any{
				"provider":            cfg.PageProvider(),
				"attachment_provider": cfg.AttachmentProvider(),
				"pages":               pages,
				"texts":               texts,
				"histories":           histories,
				"attachments":         attachments,
			},
			"s3": map[string]any{
				"bucket":     cfg.Storage.S3.Bucket,
				"region":     cfg.Storage.S3.Region,
				"key_prefix": cfg.Storage.S3.Prefix,
				"endpoint":   cfg.Storage.S3.Endpoint,
				"path_style": cfg.S3PathStyle(),
			},
		},
	}
}

func (s *Service) openPages(ctx context.Context, opts provider.Options) error {
	if s.cfg.Backend() == "repository" {
		s.content = content.New(s.repo, content.Options{
			Space:  s.cfg.DefaultSpaceName(),
			Limits: s.cfg.PropertyLimits(),
			Locks:  s.locks,
		})
		s.configureContent(s.content)
		s.pages = s.content
		return nil
	}

	name := s.cfg.PageProvider()
	if s.caches != nil {
		name = cachingProvider
	}
	p, err := provider.NewPage(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("open page store %s: %w", name, err)
	}
	s.pages = p
	return nil
}

func (s *Service) openAttachments(ctx context.Context, opts provider.Options) error {
	name := s.cfg.AttachmentProvider()
	if s.caches != nil {
		name = cachingProvider
	}
	a, err := provider.NewAttachment(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("open attachment store %s: %w", name, err)
	}
	s.atts = a
	return nil
}
