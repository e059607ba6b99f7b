// config_keys.go provides key-value access to configuration settings.
//
// Separated from config.go to isolate the key enumeration and string-based
// get/set logic. config.go focuses on YAML structure and loading, while this
// file handles the CLI and MCP interface where config is accessed by string
// keys (e.g., "storage.page_provider").
//
// Design: Pointers are used for optional fields so "not set" (nil) and
// "explicitly set to zero/false" differ. Get reports the effective value,
// defaults included; IsSet reports only what the file carries.

package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jpl-au/wikid/internal/duration"
)

// key describes one configuration key.
type key struct {
	name  string
	get   func(*Config) string
	set   func(*Config, string) error
	isSet func(*Config) bool
}

func stringKey(name string, field func(*Config) *string, effective func(*Config) string) key {
	return key{
		name:  name,
		get:   effective,
		set:   func(c *Config, v string) error { *field(c) = v; return nil },
		isSet: func(c *Config) bool { return *field(c) != "" },
	}
}

func choiceKey(name string, field func(*Config) *string, effective func(*Config) string, choices ...string) key {
	k := stringKey(name, field, effective)
	k.set = func(c *Config, v string) error {
		if !slices.Contains(choices, v) {
			return fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, name, strings.Join(choices, ", "))
		}
		*field(c) = v
		return nil
	}
	return k
}

func boolKey(name string, field func(*Config) **bool, effective func(*Config) bool) key {
	return key{
		name: name,
		get:  func(c *Config) string { return strconv.FormatBool(effective(c)) },
		set: func(c *Config, v string) error {
			v = strings.ToLower(v)
			if v != "true" && v != "false" {
				return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, name)
			}
			b := v == "true"
			*field(c) = &b
			return nil
		},
		isSet: func(c *Config) bool { return *field(c) != nil },
	}
}

func intKey(name string, field func(*Config) **int, effective func(*Config) int) key {
	return key{
		name: name,
		get:  func(c *Config) string { return strconv.Itoa(effective(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidValue, name)
			}
			*field(c) = &n
			return nil
		},
		isSet: func(c *Config) bool { return *field(c) != nil },
	}
}

func durationKey(name string, field func(*Config) *string, effective func(*Config) string) key {
	k := stringKey(name, field, effective)
	k.set = func(c *Config, v string) error {
		if d, err := duration.Parse(v); err != nil || d == 0 {
			return fmt.Errorf("%w: %s must be a positive duration like 60m or 1d", ErrInvalidValue, name)
		}
		*field(c) = v
		return nil
	}
	return k
}

func listKey(name string, field func(*Config) *[]string) key {
	return key{
		name: name,
		get:  func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var out []string
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			*field(c) = out
			return nil
		},
		isSet: func(c *Config) bool { return len(*field(c)) > 0 },
	}
}

var keys = []key{
	stringKey("author.name", func(c *Config) *string { return &c.Author.Name }, func(c *Config) string { return c.Author.Name }),
	stringKey("author.email", func(c *Config) *string { return &c.Author.Email }, func(c *Config) string { return c.Author.Email }),

	choiceKey("storage.backend", func(c *Config) *string { return &c.Storage.Backend }, (*Config).Backend, "files", "repository"),
	choiceKey("storage.page_provider", func(c *Config) *string { return &c.Storage.PageProvider }, (*Config).PageProvider, "filesystem", "versioning"),
	choiceKey("storage.attachment_provider", func(c *Config) *string { return &c.Storage.AttachmentProvider }, (*Config).AttachmentProvider, "basic", "s3"),
	stringKey("storage.page_dir", func(c *Config) *string { return &c.Storage.PageDir }, (*Config).PageDir),
	stringKey("storage.attachment_dir", func(c *Config) *string { return &c.Storage.AttachmentDir }, (*Config).AttachmentDir),
	stringKey("storage.encoding", func(c *Config) *string { return &c.Storage.Encoding }, (*Config).Encoding),
	stringKey("storage.s3.bucket", func(c *Config) *string { return &c.Storage.S3.Bucket }, func(c *Config) string { return c.Storage.S3.Bucket }),
	stringKey("storage.s3.region", func(c *Config) *string { return &c.Storage.S3.Region }, func(c *Config) string { return c.Storage.S3.Region }),
	stringKey("storage.s3.prefix", func(c *Config) *string { return &c.Storage.S3.Prefix }, func(c *Config) string { return c.Storage.S3.Prefix }),
	stringKey("storage.s3.endpoint", func(c *Config) *string { return &c.Storage.S3.Endpoint }, func(c *Config) string { return c.Storage.S3.Endpoint }),
	boolKey("storage.s3.path_style", func(c *Config) **bool { return &c.Storage.S3.PathStyle }, (*Config).S3PathStyle),

	intKey("limits.max_properties", func(c *Config) **int { return &c.Limits.MaxProperties }, func(c *Config) int { return c.PropertyLimits().MaxProperties }),
	intKey("limits.max_property_key", func(c *Config) **int { return &c.Limits.MaxPropertyKey }, func(c *Config) int { return c.PropertyLimits().MaxKeyLength }),
	intKey("limits.max_property_value", func(c *Config) **int { return &c.Limits.MaxPropertyValue }, func(c *Config) int { return c.PropertyLimits().MaxValueLength }),
	intKey("limits.max_page_size", func(c *Config) **int { return &c.Limits.MaxPageSize }, func(c *Config) int { return int(c.MaxPageSize()) }),

	stringKey("attachments.no_cache", func(c *Config) *string { return &c.Attachments.NoCache }, func(c *Config) string { return c.Attachments.NoCache }),

	boolKey("cache.enabled", func(c *Config) **bool { return &c.Cache.Enabled }, (*Config).CacheEnabled),
	choiceKey("cache.backend", func(c *Config) *string { return &c.Cache.Backend }, (*Config).CacheBackend, "memory", "badger"),
	stringKey("cache.dir", func(c *Config) *string { return &c.Cache.Dir }, func(c *Config) string { return c.Cache.Dir }),
	intKey("cache.pages", func(c *Config) **int { return &c.Cache.Pages }, func(c *Config) int { n, _, _, _ := c.CacheSizes(); return n }),
	intKey("cache.texts", func(c *Config) **int { return &c.Cache.Texts }, func(c *Config) int { _, n, _, _ := c.CacheSizes(); return n }),
	intKey("cache.histories", func(c *Config) **int { return &c.Cache.Histories }, func(c *Config) int { _, _, n, _ := c.CacheSizes(); return n }),
	intKey("cache.attachments", func(c *Config) **int { return &c.Cache.Attachments }, func(c *Config) int { _, _, _, n := c.CacheSizes(); return n }),

	boolKey("references.match_plurals", func(c *Config) **bool { return &c.References.MatchPlurals }, (*Config).MatchPlurals),
	boolKey("references.strict", func(c *Config) **bool { return &c.References.Strict }, (*Config).StrictReferences),
	listKey("references.interwiki", func(c *Config) *[]string { return &c.References.Interwiki }),

	durationKey("locks.expiry", func(c *Config) *string { return &c.Locks.Expiry }, func(c *Config) string { return c.LockExpiry().String() }),
	durationKey("locks.sweep", func(c *Config) *string { return &c.Locks.Sweep }, func(c *Config) string { return c.LockSweep().String() }),

	stringKey("space.default", func(c *Config) *string { return &c.Space.Default }, (*Config).DefaultSpaceName),
	stringKey("http.addr", func(c *Config) *string { return &c.HTTP.Addr }, (*Config).HTTPAddr),

	listKey("approval.pages", func(c *Config) *[]string { return &c.Approval.Pages }),
	listKey("approval.trusted", func(c *Config) *[]string { return &c.Approval.Trusted }),
}

func lookup(name string) (key, error) {
	for _, k := range keys {
		if k.name == name {
			return k, nil
		}
	}
	return key{}, fmt.Errorf("%w: %s", ErrUnknownKey, name)
}

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.name
	}
	return out
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(name string) bool {
	_, err := lookup(name)
	return err == nil
}

// Get returns the effective value of a configuration key as a string.
func (c *Config) Get(name string) (string, error) {
	k, err := lookup(name)
	if err != nil {
		return "", err
	}
	return k.get(c), nil
}

// Set sets the value of a configuration key.
func (c *Config) Set(name, value string) error {
	k, err := lookup(name)
	if err != nil {
		return err
	}
	return k.set(c, value)
}

// All returns all effective configuration values as a map.
func (c *Config) All() map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k.name] = k.get(c)
	}
	return out
}

// IsSet returns true if the key has an explicit value (not just defaults).
func (c *Config) IsSet(name string) bool {
	k, err := lookup(name)
	return err == nil && k.isSet(c)
}
