// registry.go implements provider selection by name.
//
// Separated from provider.go to isolate the global registry state. Stores
// self-register during init(), before main() runs, and configuration picks
// one by name.
//
// Design: registration panics on duplicates following database/sql.Register
// conventions. Store-specific settings arrive as map[string]any and are
// decoded with mapstructure, so a backend can add options without touching
// the Options struct.

package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/jpl-au/wikid/internal/cache"
	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/validate"
)

// Options configures a store. Zero values select defaults.
type Options struct {
	PageDir       string
	AttachmentDir string
	// Encoding is the charset used for mangling and page bytes (UTF-8
	// when empty).
	Encoding string
	Limits   validate.Limits
	// NoCache is a regular expression matched against whole attachment
	// file names that must not be cached by browsers.
	NoCache string

	// Mangler overrides the mangler built from Encoding.
	Mangler *mangle.Mangler
	// Caches supplies the backend for the caching decorators. Nil means
	// in-memory LRUs without metrics.
	Caches *cache.Factory
	// Parser repairs pages that have not had their metadata extracted.
	Parser MetadataParser

	// Settings holds per-store settings keyed by registry name.
	Settings map[string]any
}

// BuildMangler returns Mangler, or a mangler for Encoding when it is nil.
func (o Options) BuildMangler() (*mangle.Mangler, error) {
	if o.Mangler != nil {
		return o.Mangler, nil
	}
	m, err := mangle.New(o.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return m, nil
}

func (o Options) limits() validate.Limits {
	l := o.Limits
	d := validate.DefaultLimits()
	if l.MaxProperties <= 0 {
		l.MaxProperties = d.MaxProperties
	}
	if l.MaxKeyLength <= 0 {
		l.MaxKeyLength = d.MaxKeyLength
	}
	if l.MaxValueLength <= 0 {
		l.MaxValueLength = d.MaxValueLength
	}
	return l
}

// Decode decodes the settings registered under name into out. Missing
// settings leave out untouched.
func (o Options) Decode(name string, out any) error {
	raw, ok := o.Settings[name]
	if !ok || raw == nil {
		return nil
	}
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("%w: %s settings: %v", ErrConfig, name, err)
	}
	return nil
}

// PageFactory builds a page store.
type PageFactory func(ctx context.Context, opts Options) (PageProvider, error)

// AttachmentFactory builds an attachment store.
type AttachmentFactory func(ctx context.Context, opts Options) (AttachmentProvider, error)

var (
	mu          sync.RWMutex
	pages       = make(map[string]PageFactory)
	attachments = make(map[string]AttachmentFactory)
)

// RegisterPage makes a page store available under name. Called from init().
// Registering the same name twice panics.
func RegisterPage(name string, f PageFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := pages[name]; exists {
		panic("page provider already registered: " + name)
	}
	pages[name] = f
}

// RegisterAttachment makes an attachment store available under name.
func RegisterAttachment(name string, f AttachmentFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := attachments[name]; exists {
		panic("attachment provider already registered: " + name)
	}
	attachments[name] = f
}

// NewPage builds the page store registered under name.
func NewPage(ctx context.Context, name string, opts Options) (PageProvider, error) {
	mu.RLock()
	f, ok := pages[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown page provider %q", ErrConfig, name)
	}
	return f(ctx, opts)
}

// NewAttachment builds the attachment store registered under name.
func NewAttachment(ctx context.Context, name string, opts Options) (AttachmentProvider, error) {
	mu.RLock()
	f, ok := attachments[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown attachment provider %q", ErrConfig, name)
	}
	return f(ctx, opts)
}

// PageProviders returns the registered page store names, sorted.
func PageProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(pages)
}

// AttachmentProviders returns the registered attachment store names, sorted.
func AttachmentProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(attachments)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CachingSettings configures the caching decorators. Provider and
// AttachmentProvider name the wrapped stores; the sizes bound each cache.
type CachingSettings struct {
	Provider           string `mapstructure:"provider"`
	AttachmentProvider string `mapstructure:"attachment_provider"`
	Pages              int    `mapstructure:"pages"`
	Texts              int    `mapstructure:"texts"`
	Histories          int    `mapstructure:"histories"`
	Attachments        int    `mapstructure:"attachments"`
	Lists              int    `mapstructure:"lists"`
}

// Default cache sizes.
const (
	DefaultCachePages       = 1000
	DefaultCacheTexts       = 200
	DefaultCacheHistories   = 100
	DefaultCacheAttachments = 1000
	DefaultCacheLists       = 1000
)

func (o Options) caching() (CachingSettings, error) {
	s := CachingSettings{
		Provider:           "versioning",
		AttachmentProvider: "basic",
		Pages:              DefaultCachePages,
		Texts:              DefaultCacheTexts,
		Histories:          DefaultCacheHistories,
		Attachments:        DefaultCacheAttachments,
		Lists:              DefaultCacheLists,
	}
	if err := o.Decode("caching", &s); err != nil {
		return s, err
	}
	if s.Provider == "caching" || s.AttachmentProvider == "caching" {
		return s, fmt.Errorf("%w: caching provider cannot wrap itself", ErrConfig)
	}
	return s, nil
}

func init() {
	RegisterPage("filesystem", func(_ context.Context, opts Options) (PageProvider, error) {
		return NewFileSystemProvider(opts)
	})
	RegisterPage("versioning", func(_ context.Context, opts Options) (PageProvider, error) {
		return NewVersioningProvider(opts)
	})
	RegisterPage("caching", func(ctx context.Context, opts Options) (PageProvider, error) {
		s, err := opts.caching()
		if err != nil {
			return nil, err
		}
		inner, err := NewPage(ctx, s.Provider, opts)
		if err != nil {
			return nil, err
		}
		return NewCachingProvider(inner, opts, s)
	})
	RegisterAttachment("basic", func(_ context.Context, opts Options) (AttachmentProvider, error) {
		return NewBasicAttachmentProvider(opts)
	})
	RegisterAttachment("caching", func(ctx context.Context, opts Options) (AttachmentProvider, error) {
		s, err := opts.caching()
		if err != nil {
			return nil, err
		}
		inner, err := NewAttachment(ctx, s.AttachmentProvider, opts)
		if err != nil {
			return nil, err
		}
		return NewCachingAttachmentProvider(inner, opts, s)
	})
}
