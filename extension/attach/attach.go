// Package attach provides the attach extension for page attachments.
// It registers commands: attach (with subcommands put, get, ls, history, rm).
package attach

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpl-au/wikid/cmd"
	"github.com/jpl-au/wikid/extension"
	"github.com/jpl-au/wikid/internal/format"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

func init() {
	extension.Register(&Extension{})
}

// Extension implements the attach extension.
type Extension struct {
	svc service.Service
}

var (
	_ extension.Extension     = (*Extension)(nil)
	_ extension.Initializable = (*Extension)(nil)
)

// Name returns "attach".
func (e *Extension) Name() string { return "attach" }

// Init receives the shared service from the extension context.
func (e *Extension) Init(ctx extension.Context) error {
	e.svc = ctx.Service()
	return nil
}

// Commands returns the attach command with its subcommands.
func (e *Extension) Commands() []*cobra.Command {
	return []*cobra.Command{e.newAttachCmd()}
}

// MCPTools returns nil.
func (e *Extension) MCPTools() []extension.MCPTool {
	return nil
}

func (e *Extension) newAttachCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "attach",
		Short: "Manage page attachments",
		Long: `Store, read, list and delete files attached to a page.

  wikid attach put MainPage logo.png -f ./logo.png
  wikid attach get MainPage logo.png -f out.png
  wikid attach ls MainPage
  wikid attach history MainPage logo.png
  wikid attach rm MainPage logo.png --all`,
	}
	c.AddCommand(e.newPutCmd())
	c.AddCommand(e.newGetCmd())
	c.AddCommand(e.newLsCmd())
	c.AddCommand(e.newHistoryCmd())
	c.AddCommand(e.newRmCmd())
	return c
}

func (e *Extension) newPutCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "put <page> <file>",
		Short: "Store a new version of an attachment",
		Long:  `Store a new version of an attachment. Content comes from -f or stdin.`,
		Args:  cobra.ExactArgs(2),
		RunE:  e.runPut,
	}
	c.Flags().StringP(extension.FlagFile, "f", "", "Read content from file")
	return c
}

func (e *Extension) newGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <page> <file>",
		Short: "Write an attachment to stdout or a file",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runGet,
	}
	c.Flags().IntP(extension.FlagVersion, "v", 0, "Read a specific version")
	c.Flags().StringP(extension.FlagFile, "f", "", "Write content to file")
	return c
}

func (e *Extension) newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <page>",
		Short: "List the attachments of a page",
		Args:  cobra.ExactArgs(1),
		RunE:  e.runLs,
	}
}

func (e *Extension) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <page> <file>",
		Short: "Show every version of an attachment",
		Args:  cobra.ExactArgs(2),
		RunE:  e.runHistory,
	}
}

func (e *Extension) newRmCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "rm <page> <file>",
		Short: "Delete an attachment version, or every version",
		Long: `Delete one version of an attachment. Without --version the latest
version is deleted; --all deletes the attachment entirely.`,
		Args: cobra.ExactArgs(2),
		RunE: e.runRm,
	}
	c.Flags().Int(extension.FlagVersion, 0, "Delete only this version")
	c.Flags().Bool(extension.FlagAll, false, "Delete every version")
	c.MarkFlagsMutuallyExclusive(extension.FlagVersion, extension.FlagAll)
	return c
}

func (e *Extension) runPut(c *cobra.Command, args []string) error {
	page, file := args[0], args[1]

	var r io.Reader = os.Stdin
	if path, _ := c.Flags().GetString(extension.FlagFile); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("open %q: %w", path, err))
		}
		defer f.Close()
		r = f
	}

	att := &provider.Attachment{
		Page:       page,
		FileName:   file,
		Author:     cmd.Author(),
		ChangeNote: cmd.Message(),
	}
	if err := e.svc.Attach(c.Context(), att, r); err != nil {
		return cmd.PrintJSONError(fmt.Errorf("attach %s/%s: %w", page, file, err))
	}

	if !cmd.JSON() {
		fmt.Fprintf(cmd.Out(), "Stored %s v%d (%d bytes)\n", att.Name(), att.Version, att.Size)
	}
	return cmd.PrintJSON(att)
}

func (e *Extension) runGet(c *cobra.Command, args []string) (err error) {
	page, file := args[0], args[1]
	version, _ := c.Flags().GetInt(extension.FlagVersion)
	if version == 0 {
		version = provider.Latest
	}
	path, _ := c.Flags().GetString(extension.FlagFile)

	defer func() {
		log.Event("attach:get", "read").Author(cmd.Author()).Page(page + "/" + file).Version(version).Write(err)
	}()

	att, rc, err := e.svc.Attachment(c.Context(), page, file, version)
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("attachment %s/%s: %w", page, file, err))
	}
	defer rc.Close()

	if cmd.JSON() && path == "" {
		return cmd.PrintJSON(att)
	}

	w := cmd.Out()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("create %q: %w", path, err))
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		w = f
	}
	if _, err = io.Copy(w, rc); err != nil {
		return cmd.PrintJSONError(fmt.Errorf("read %s: %w", att.Name(), err))
	}
	return cmd.PrintJSON(att)
}

func (e *Extension) runLs(c *cobra.Command, args []string) error {
	atts, err := e.svc.Attachments(c.Context(), args[0])
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return cmd.PrintJSONError(fmt.Errorf("attachments of %s: %w", args[0], err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(atts)
	}
	return format.Attachments(cmd.Out(), atts)
}

func (e *Extension) runHistory(c *cobra.Command, args []string) error {
	atts, err := e.svc.AttachmentHistory(c.Context(), args[0], args[1])
	if err != nil {
		return cmd.PrintJSONError(fmt.Errorf("history %s/%s: %w", args[0], args[1], err))
	}
	if cmd.JSON() {
		return cmd.PrintJSON(atts)
	}
	return format.Attachments(cmd.Out(), atts)
}

// rmResult contains the outcome of an attachment delete.
type rmResult struct {
	Attachment string `json:"attachment"`
	Version    int    `json:"version,omitempty"`
	All        bool   `json:"all,omitempty"`
}

func (e *Extension) runRm(c *cobra.Command, args []string) error {
	ctx := c.Context()
	page, file := args[0], args[1]
	version, _ := c.Flags().GetInt(extension.FlagVersion)
	all, _ := c.Flags().GetBool(extension.FlagAll)

	if version == 0 && !all {
		info, err := e.svc.AttachmentHistory(ctx, page, file)
		if err != nil {
			return cmd.PrintJSONError(fmt.Errorf("rm %s/%s: %w", page, file, err))
		}
		if len(info) == 0 {
			return cmd.PrintJSONError(fmt.Errorf("rm %s/%s: %w", page, file, provider.ErrNotFound))
		}
		version = info[0].Version
	}
	if all {
		version = provider.Latest
	}

	if err := e.svc.DeleteAttachment(ctx, page, file, version, all); err != nil {
		return cmd.PrintJSONError(fmt.Errorf("rm %s/%s: %w", page, file, err))
	}

	res := rmResult{Attachment: page + "/" + file, All: all}
	if !all {
		res.Version = version
	}
	if !cmd.JSON() {
		if all {
			fmt.Fprintf(cmd.Out(), "Deleted %s\n", res.Attachment)
		} else {
			fmt.Fprintf(cmd.Out(), "Deleted %s (version %d)\n", res.Attachment, version)
		}
	}
	return cmd.PrintJSON(res)
}
