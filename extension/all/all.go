// Package all imports all core wikid extensions.
// Import this package to register all built-in commands.
package all

import (
	// Core extensions - each registers itself via init()
	_ "github.com/jpl-au/wikid/extension/approve"
	_ "github.com/jpl-au/wikid/extension/attach"
	_ "github.com/jpl-au/wikid/extension/core"
	_ "github.com/jpl-au/wikid/extension/edit"
	_ "github.com/jpl-au/wikid/extension/lock"
	_ "github.com/jpl-au/wikid/extension/page"
	_ "github.com/jpl-au/wikid/extension/refs"
	_ "github.com/jpl-au/wikid/extension/search"
	_ "github.com/jpl-au/wikid/extension/tag"
	_ "github.com/jpl-au/wikid/extension/transfer"
)
