// Package config provides reading and writing of wikid configuration.
// Supports both global (~/.wikid/config.yaml) and local (.wikid/config.yaml).
// Reading: uses local if it exists, otherwise global, with WIKID_* environment
// variables layered on top (WIKID_STORAGE_PAGE_PROVIDER=filesystem).
// Writing: defaults to global, use --local for local.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jpl-au/wikid/internal/duration"
	"github.com/jpl-au/wikid/internal/validate"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "WIKID"

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config in ~/.wikid/config.yaml (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is workspace config in .wikid/config.yaml
	ScopeLocal
)

// Author is recorded on saves when --author is not given.
type Author struct {
	Name  string `yaml:"name,omitempty" mapstructure:"name"`
	Email string `yaml:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`
}

// S3 configures the s3 attachment provider.
type S3 struct {
	Bucket    string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	Region    string `yaml:"region,omitempty" mapstructure:"region"`
	Prefix    string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	Endpoint  string `yaml:"endpoint,omitempty" mapstructure:"endpoint" validate:"omitempty,url"`
	PathStyle *bool  `yaml:"path_style,omitempty" mapstructure:"path_style"`
}

// Storage selects and places the page and attachment stores.
type Storage struct {
	// Backend is "files" for the flat-file providers or "repository" for
	// the hierarchical content store in the workspace database.
	Backend            string `yaml:"backend,omitempty" mapstructure:"backend" validate:"omitempty,oneof=files repository"`
	PageProvider       string `yaml:"page_provider,omitempty" mapstructure:"page_provider" validate:"omitempty,oneof=filesystem versioning"`
	AttachmentProvider string `yaml:"attachment_provider,omitempty" mapstructure:"attachment_provider" validate:"omitempty,oneof=basic s3"`
	PageDir            string `yaml:"page_dir,omitempty" mapstructure:"page_dir"`
	AttachmentDir      string `yaml:"attachment_dir,omitempty" mapstructure:"attachment_dir"`
	Encoding           string `yaml:"encoding,omitempty" mapstructure:"encoding"`
	S3                 S3     `yaml:"s3,omitempty" mapstructure:"s3"`
}

// Limits bounds custom page properties.
type Limits struct {
	MaxProperties    *int `yaml:"max_properties,omitempty" mapstructure:"max_properties" validate:"omitempty,min=1,max=10000"`
	MaxPropertyKey   *int `yaml:"max_property_key,omitempty" mapstructure:"max_property_key" validate:"omitempty,min=1,max=65536"`
	MaxPropertyValue *int `yaml:"max_property_value,omitempty" mapstructure:"max_property_value" validate:"omitempty,min=1,max=1048576"`
	// MaxPageSize bounds page text in bytes. Unset means no limit.
	MaxPageSize      *int `yaml:"max_page_size,omitempty" mapstructure:"max_page_size" validate:"omitempty,min=1"`
}

// Approval holds saves to the content repository until someone decides
// them with "wikid approve".
type Approval struct {
	// Pages are path.Match patterns matched case-insensitively against page
	// names. A save to a matching page waits for a decision.
	Pages   []string `yaml:"pages,omitempty" mapstructure:"pages"`
	// Trusted authors never wait.
	Trusted []string `yaml:"trusted,omitempty" mapstructure:"trusted"`
}

// Attachments holds attachment serving options.
type Attachments struct {
	// NoCache matches whole file names that browsers must not cache.
	NoCache string `yaml:"no_cache,omitempty" mapstructure:"no_cache"`
}

// Cache configures the caching decorators.
type Cache struct {
	Enabled     *bool  `yaml:"enabled,omitempty" mapstructure:"enabled"`
	Backend     string `yaml:"backend,omitempty" mapstructure:"backend" validate:"omitempty,oneof=memory badger"`
	Dir         string `yaml:"dir,omitempty" mapstructure:"dir"`
	Pages       *int   `yaml:"pages,omitempty" mapstructure:"pages" validate:"omitempty,min=1"`
	Texts       *int   `yaml:"texts,omitempty" mapstructure:"texts" validate:"omitempty,min=1"`
	Histories   *int   `yaml:"histories,omitempty" mapstructure:"histories" validate:"omitempty,min=1"`
	Attachments *int   `yaml:"attachments,omitempty" mapstructure:"attachments" validate:"omitempty,min=1"`
}

// References configures the reference graph.
type References struct {
	MatchPlurals *bool `yaml:"match_plurals,omitempty" mapstructure:"match_plurals"`
	// Strict makes a failed reference update fail the save.
	Strict    *bool    `yaml:"strict,omitempty" mapstructure:"strict"`
	Interwiki []string `yaml:"interwiki,omitempty" mapstructure:"interwiki"`
}

// Locks configures advisory page locks. Durations use duration.Parse.
type Locks struct {
	Expiry string `yaml:"expiry,omitempty" mapstructure:"expiry"`
	Sweep  string `yaml:"sweep,omitempty" mapstructure:"sweep"`
}

// Space holds wiki space settings.
type Space struct {
	Default string `yaml:"default,omitempty" mapstructure:"default" validate:"omitempty,excludesall=:/"`
}

// HTTP configures serve --http.
type HTTP struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Defaults applied when a key is not configured.
const (
	DefaultBackend            = "files"
	DefaultPageProvider       = "versioning"
	DefaultAttachmentProvider = "basic"
	DefaultPageDir            = "pages"
	DefaultAttachmentDir      = "attachments"
	DefaultEncoding           = "UTF-8"
	DefaultCacheBackend       = "memory"
	DefaultCachePages         = 1000
	DefaultCacheTexts         = 200
	DefaultCacheHistories     = 100
	DefaultCacheAttachments   = 1000
	DefaultLockExpiry         = 60 * time.Minute
	DefaultLockSweep          = 60 * time.Second
	DefaultSpace              = "Main"
	DefaultHTTPAddr           = "127.0.0.1:8080"
)

// Config contains configuration for wikid.
type Config struct {
	Author      Author      `yaml:"author,omitempty" mapstructure:"author"`
	Storage     Storage     `yaml:"storage,omitempty" mapstructure:"storage"`
	Limits      Limits      `yaml:"limits,omitempty" mapstructure:"limits"`
	Attachments Attachments `yaml:"attachments,omitempty" mapstructure:"attachments"`
	Cache       Cache       `yaml:"cache,omitempty" mapstructure:"cache"`
	References  References  `yaml:"references,omitempty" mapstructure:"references"`
	Locks       Locks       `yaml:"locks,omitempty" mapstructure:"locks"`
	Space       Space       `yaml:"space,omitempty" mapstructure:"space"`
	HTTP        HTTP        `yaml:"http,omitempty" mapstructure:"http"`
	Approval    Approval    `yaml:"approval,omitempty" mapstructure:"approval"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

var structs = validator.New()

// Validate checks struct constraints, then the rules that span fields.
func (c *Config) Validate() error {
	if err := structs.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%w: %s fails %q (value: %v)", ErrInvalidValue, e.Namespace(), e.Tag(), e.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if c.Attachments.NoCache != "" {
		if _, err := regexp.Compile(c.Attachments.NoCache); err != nil {
			return fmt.Errorf("%w: attachments.no_cache: %v", ErrInvalidValue, err)
		}
	}
	for key, s := range map[string]string{"locks.expiry": c.Locks.Expiry, "locks.sweep": c.Locks.Sweep} {
		if s == "" {
			continue
		}
		if d, err := duration.Parse(s); err != nil || d == 0 {
			return fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalidValue, key, s)
		}
	}
	if c.AttachmentProvider() == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("%w: storage.s3.bucket is required for the s3 attachment provider", ErrInvalidValue)
	}
	if c.Cache.Dir != "" && c.CacheBackend() != "badger" {
		return fmt.Errorf("%w: cache.dir only applies to the badger backend", ErrInvalidValue)
	}
	for _, pattern := range c.Approval.Pages {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: approval.pages: %q: %v", ErrInvalidValue, pattern, err)
		}
	}
	return nil
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Backend returns the storage backend (defaults to files).
func (c *Config) Backend() string { return or(c.Storage.Backend, DefaultBackend) }

// PageProvider returns the flat-file page provider (defaults to versioning).
func (c *Config) PageProvider() string { return or(c.Storage.PageProvider, DefaultPageProvider) }

// AttachmentProvider returns the attachment provider (defaults to basic).
func (c *Config) AttachmentProvider() string {
	return or(c.Storage.AttachmentProvider, DefaultAttachmentProvider)
}

// PageDir returns the page directory, relative paths being relative to the
// workspace directory.
func (c *Config) PageDir() string { return or(c.Storage.PageDir, DefaultPageDir) }

// AttachmentDir returns the attachment directory.
func (c *Config) AttachmentDir() string { return or(c.Storage.AttachmentDir, DefaultAttachmentDir) }

// Encoding returns the page charset.
func (c *Config) Encoding() string { return or(c.Storage.Encoding, DefaultEncoding) }

// S3PathStyle reports whether S3 requests use path-style addressing
// (defaults to true when a custom endpoint is set).
func (c *Config) S3PathStyle() bool {
	return deref(c.Storage.S3.PathStyle, c.Storage.S3.Endpoint != "")
}

// PropertyLimits returns the custom property limits.
func (c *Config) PropertyLimits() validate.Limits {
	return validate.Limits{
		MaxProperties:  deref(c.Limits.MaxProperties, validate.DefaultMaxProperties),
		MaxKeyLength:   deref(c.Limits.MaxPropertyKey, validate.DefaultMaxPropertyKey),
		MaxValueLength: deref(c.Limits.MaxPropertyValue, validate.DefaultMaxPropertyValue),
	}
}

// MaxPageSize returns the page text limit in bytes, 0 for none.
func (c *Config) MaxPageSize() int64 { return int64(deref(c.Limits.MaxPageSize, 0)) }

// CacheEnabled reports whether the caching decorators wrap the stores
// (defaults to true).
func (c *Config) CacheEnabled() bool { return deref(c.Cache.Enabled, true) }

// CacheBackend returns the cache backend (defaults to memory).
func (c *Config) CacheBackend() string { return or(c.Cache.Backend, DefaultCacheBackend) }

// CacheSizes returns the pages, texts, histories and attachments cache
// sizes.
func (c *Config) CacheSizes() (pages, texts, histories, attachments int) {
	return deref(c.Cache.Pages, DefaultCachePages),
		deref(c.Cache.Texts, DefaultCacheTexts),
		deref(c.Cache.Histories, DefaultCacheHistories),
		deref(c.Cache.Attachments, DefaultCacheAttachments)
}

// MatchPlurals reports whether links match singular and plural page names
// (defaults to true).
func (c *Config) MatchPlurals() bool { return deref(c.References.MatchPlurals, true) }

// StrictReferences reports whether reference failures fail saves.
func (c *Config) StrictReferences() bool { return deref(c.References.Strict, false) }

// LockExpiry returns the lock lifetime.
func (c *Config) LockExpiry() time.Duration { return parseOr(c.Locks.Expiry, DefaultLockExpiry) }

// LockSweep returns the reaper interval.
func (c *Config) LockSweep() time.Duration { return parseOr(c.Locks.Sweep, DefaultLockSweep) }

func parseOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := duration.Parse(s)
	if err != nil || d == 0 {
		return def
	}
	return d
}

// DefaultSpaceName returns the space for names without a prefix.
func (c *Config) DefaultSpaceName() string { return or(c.Space.Default, DefaultSpace) }

// HTTPAddr returns the serve --http listen address.
func (c *Config) HTTPAddr() string { return or(c.HTTP.Addr, DefaultHTTPAddr) }

// LocalPath returns the path to the local (workspace) config file.
func LocalPath() string {
	return filepath.Join(".wikid", "config.yaml")
}

// GlobalPath returns the path to the global (user) config file: ~/.wikid/config.yaml
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wikid", "config.yaml")
}

// Load reads configuration: local if it exists, otherwise global, then
// applies WIKID_* environment overrides.
func Load() (*Config, error) {
	scope := ScopeGlobal
	if _, err := os.Stat(LocalPath()); err == nil {
		scope = ScopeLocal
	}
	path := pathForScope(scope)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range ValidKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.path = path
	cfg.scope = scope
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadScope reads configuration from a specific scope without environment
// overrides, for editing.
func LoadScope(scope Scope) (*Config, error) {
	path := pathForScope(scope)
	if path == "" {
		return &Config{scope: scope}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path, scope: scope}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults", path, err)
	}
	cfg.path = path
	cfg.scope = scope

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration to its original location.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = pathForScope(c.scope)
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(c.path)
}

// SaveScope writes the configuration to the specified scope.
func (c *Config) SaveScope(scope Scope) error {
	path := pathForScope(scope)
	if path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(path)
}

// saveToPath writes configuration to a specific filesystem path.
func (c *Config) saveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func pathForScope(scope Scope) string {
	switch scope {
	case ScopeLocal:
		return LocalPath()
	case ScopeGlobal:
		return GlobalPath()
	default:
		return ""
	}
}
