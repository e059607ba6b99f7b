// config.go implements the "wikid config" command for configuration management.
//
// Separated from extension.go to isolate config-specific logic including
// the local vs global config precedence rules.
//
// Design: Config follows a cascade model similar to git: local config
// (.wikid/config.yaml) takes precedence over global (~/.wikid/config.yaml).
// Writes go where reads come from unless --local or --global picks a scope.
// WIKID_* environment overrides apply to reads only and are never written.

package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/config"
	"github.com/jpl-au/wikid/internal/log"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "View or set config values",
		Long: `View or set config values.

  wikid config                        # show config
  wikid config storage.backend        # show one value
  wikid config cache.backend badger   # set a value

Configuration locations:
  Global: ~/.wikid/config.yaml
  Local:  .wikid/config.yaml

Uses local config if it exists, otherwise global.
Writes go to the same place reads come from.
Use --local or --global to pick one.

See "wikid guide config" for every key.`,
		Args: cobra.MaximumNArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: runConfig,
	}
	c.Flags().Bool(extension.FlagLocal, false, "Use local config (.wikid/config.yaml)")
	c.Flags().Bool(extension.FlagGlobal, false, "Use global config (~/.wikid/config.yaml)")
	c.MarkFlagsMutuallyExclusive(extension.FlagLocal, extension.FlagGlobal)
	return c
}

func runConfig(c *cobra.Command, args []string) error {
	forceLocal, _ := c.Flags().GetBool(extension.FlagLocal)
	forceGlobal, _ := c.Flags().GetBool(extension.FlagGlobal)

	var cfg *config.Config
	var err error
	switch {
	case forceLocal:
		cfg, err = config.LoadScope(config.ScopeLocal)
	case forceGlobal:
		cfg, err = config.LoadScope(config.ScopeGlobal)
	case len(args) == 2:
		// Edit the file itself, without environment overrides.
		cfg, err = config.Load()
		if err == nil {
			cfg, err = config.LoadScope(cfg.Scope())
		}
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("config load: %w", err))
	}

	scopeName := "global"
	if cfg.Scope() == config.ScopeLocal {
		scopeName = "local"
	}

	switch len(args) {
	case 0:
		all := cfg.All()
		log.Event("core:config", "list").Author(cmd.Author()).Write(nil)
		if cmd.JSON() {
			return cmd.PrintJSON(all)
		}
		for _, k := range slices.Sorted(maps.Keys(all)) {
			fmt.Fprintf(cmd.Out(), "%s: %s\n", k, all[k])
		}

	case 1:
		v, err := cfg.Get(args[0])
		log.Event("core:config", "get").Author(cmd.Author()).Detail("key", args[0]).Write(err)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("config get %q: %w", args[0], err))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]string{args[0]: v})
		}
		fmt.Fprintln(cmd.Out(), v)

	case 2:
		if err := cfg.Set(args[0], args[1]); err != nil {
			log.Event("core:config", "set").Author(cmd.Author()).Detail("key", args[0]).Write(err)
			return cmd.PrintJSONError(fmt.Errorf("config set %q: %w", args[0], err))
		}
		if err := cfg.Validate(); err != nil {
			log.Event("core:config", "set").Author(cmd.Author()).Detail("key", args[0]).Write(err)
			return cmd.PrintJSONError(fmt.Errorf("config set %q: %w", args[0], err))
		}

		saveErr := cfg.Save()
		// Values are never logged.
		log.Event("core:config", "set").Author(cmd.Author()).Detail("key", args[0]).Detail("scope", scopeName).Write(saveErr)
		if saveErr != nil {
			return cmd.PrintJSONError(fmt.Errorf("config save: %w", saveErr))
		}
		if cmd.JSON() {
			return cmd.PrintJSON(map[string]string{"key": args[0], "value": args[1], "scope": scopeName})
		}
		fmt.Fprintf(cmd.Out(), "%s = %s (%s)\n", args[0], args[1], scopeName)
	}
	return nil
}
