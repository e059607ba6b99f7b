package content

import (
	"context"
	"fmt"

	"github.com/jpl-au/wikid/internal/provider"
)

// Settings are the "repository" registry settings.
type Settings struct {
	// Path is the SQLite database holding the node tree.
	Path  string `mapstructure:"path"`
	Space string `mapstructure:"space"`
}

func init() {
	provider.RegisterPage("repository", func(_ context.Context, opts provider.Options) (provider.PageProvider, error) {
		var s Settings
		if err := opts.Decode("repository", &s); err != nil {
			return nil, err
		}
		if s.Path == "" {
			return nil, fmt.Errorf("%w: repository path not set", provider.ErrConfig)
		}
		return Open(s.Path, Options{Space: s.Space, Limits: opts.Limits})
	})
}
