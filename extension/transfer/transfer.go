// Package transfer provides the transfer extension for moving pages
// between the wiki and plain files. Registers commands: import, export.
//
// File names are the mangled page names used by the filesystem page store,
// one directory per sub-page level, so an export imports back unchanged.
package transfer

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/exporter"
	"github.com/jpl-au/wikid/internal/importer"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/mangle"
	"github.com/jpl-au/wikid/internal/progress"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the transfer extension.
type Extension struct {
	svc     service.Service
	mangler *mangle.Mangler
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "transfer".
func (e *Extension) Name() string { return "transfer" }

// Init receives the service and builds a mangler for the configured
// storage encoding.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	m, err := mangle.New(ctx.Config().Encoding())
	if err != nil {
		return err
	}
	e.mangler = m
	return nil
}

// Commands returns import and export.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{
		e.newImportCmd(),
		e.newExportCmd(),
	}
}

// MCPTools returns nil.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

func (e *Extension) newImportCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "import <path>",
		Short: "Import text files as pages",
		Long: `Import a text file, or every text file below a directory, as pages.

Directories become sub-pages and file names are decoded the way export
writes them ("Main+Page.txt" is the page "Main Page"). Files whose text
matches the latest version of their page are skipped.

  wikid import ./pages              # every .txt file below ./pages
  wikid import notes.md --ext md    # one Markdown file
  wikid import ./docs -t Docs       # under the Docs/ prefix
  wikid import ./docs -n            # dry run`,
		Args: cobra.ExactArgs(1),
		RunE: e.runImport,
	}
	c.Flags().StringP(extension.FlagTo, "t", "", "Target page name prefix")
	c.Flags().BoolP(extension.FlagFlat, "F", false, "Flatten directory structure")
	c.Flags().BoolP(extension.FlagDryRun, "n", false, "Show what would be imported")
	c.Flags().BoolP(extension.FlagIncludeHidden, "H", false, "Include hidden files and directories")
	c.Flags().String(extension.FlagExt, importer.DefaultExt, "File extension to import")
	return c
}

func (e *Extension) runImport(c *cobra.Command, args []string) error {
	src := args[0]
	opts := importer.Options{
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
		Mangler:    e.mangler,
	}
	opts.Prefix, _ = c.Flags().GetString(extension.FlagTo)
	opts.Flat, _ = c.Flags().GetBool(extension.FlagFlat)
	opts.DryRun, _ = c.Flags().GetBool(extension.FlagDryRun)
	opts.Hidden, _ = c.Flags().GetBool(extension.FlagIncludeHidden)
	opts.Ext, _ = c.Flags().GetString(extension.FlagExt)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	s := progress.NewSpinner("Importing")
	s.Start()
	result, err := importer.Run(c.Context(), w, e.svc, src, opts)
	s.Stop()

	log.Event("transfer:import", "import").
		Author(cmd.Author()).
		Page(opts.Prefix).
		Detail("source", src).
		Detail("count", result.Imported).
		Detail("dry_run", opts.DryRun).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("import %q: %w", src, err))
	}

	if !cmd.JSON() {
		switch {
		case len(result.Pages) == 0:
			fmt.Fprintf(w, "No %s files found in %q\n", opts.Ext, src)
		case !opts.DryRun:
			fmt.Fprintf(w, "\nImported %d page(s), %d unchanged\n", result.Imported, result.Unchanged)
		}
	}
	return cmd.PrintJSON(result)
}

func (e *Extension) newExportCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "export <page|prefix/> <path>",
		Short: "Export pages to text files",
		Long: `Export pages to text files.

A single page is written to the given file, or into the given directory
under its encoded name. A name ending in "/" exports every page below it
into the directory; "/" alone exports the whole wiki.

  wikid export MainPage main.txt
  wikid export MainPage -v 3 ./out
  wikid export Project/ ./project
  wikid export / ./backup`,
		Args: cobra.ExactArgs(2),
		RunE: e.runExport,
	}
	c.Flags().IntP(extension.FlagVersion, "v", 0, "Export a specific version of a single page")
	c.Flags().String(extension.FlagExt, exporter.DefaultExt, "File extension for exported pages")
	return c
}

func (e *Extension) runExport(c *cobra.Command, args []string) error {
	name, dst := args[0], args[1]
	opts := exporter.Options{
		Force:   cmd.Force(),
		Mangler: e.mangler,
	}
	opts.Version, _ = c.Flags().GetInt(extension.FlagVersion)
	opts.Ext, _ = c.Flags().GetString(extension.FlagExt)

	w := cmd.Out()
	if cmd.JSON() {
		w = io.Discard
	}

	s := progress.NewSpinner("Exporting")
	s.Start()
	result, err := exporter.Run(c.Context(), w, e.svc, name, dst, opts)
	s.Stop()

	log.Event("transfer:export", "export").
		Author(cmd.Author()).
		Page(name).
		Version(opts.Version).
		Detail("dest", dst).
		Detail("count", result.Exported).
		Write(err)

	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("export %q to %q: %w", name, dst, err))
	}
	if result.Exported > 1 && !cmd.JSON() {
		fmt.Fprintf(w, "\nExported %d page(s)\n", result.Exported)
	}
	return cmd.PrintJSON(result)
}
