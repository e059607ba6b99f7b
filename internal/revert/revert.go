// Package revert provides forward-moving version rollback.
//
// Revert saves an old version's text as a new version rather than deleting
// the versions after it, so the revert itself shows up in history and can
// be reverted in turn.
package revert

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// Options configures a revert operation.
type Options struct {
	Author     string
	ChangeNote string // defaults to "Revert to vN"
}

// Result contains the outcome of a revert operation.
type Result struct {
	Page       string `json:"page"`
	RevertedTo int    `json:"reverted_to"`
	NewVersion int    `json:"new_version"`
	Author     string `json:"author"`
	ChangeNote string `json:"changenote"`
}

// Run saves version of name as its newest version. Custom attributes of
// the old version are carried over.
func Run(ctx context.Context, w io.Writer, svc service.Service, name string, version int, opts Options) (Result, error) {
	var result Result
	if version < 1 {
		return result, fmt.Errorf("version required: wikid revert %s <version>", name)
	}

	old, err := svc.Info(ctx, name, version)
	if err != nil {
		if errors.Is(err, provider.ErrNoSuchVersion) {
			return result, fmt.Errorf("version %d not found for %s: %w", version, name, err)
		}
		return result, err
	}
	text, err := svc.Text(ctx, name, version)
	if err != nil {
		return result, err
	}

	note := opts.ChangeNote
	if note == "" {
		note = fmt.Sprintf("Revert to v%d", version)
	}
	p, err := svc.Save(ctx, name, text, service.SaveOptions{
		Author:     opts.Author,
		ChangeNote: note,
		Attributes: old.Attributes,
	})
	if err != nil {
		return result, fmt.Errorf("save reverted text: %w", err)
	}

	result = Result{
		Page:       name,
		RevertedTo: version,
		NewVersion: p.Version,
		Author:     p.Author,
		ChangeNote: note,
	}
	fmt.Fprintf(w, "Reverted %s to v%d (now v%d)\n", name, version, p.Version)
	return result, nil
}
