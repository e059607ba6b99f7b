// Package rm provides deletion of pages and single page versions.
//
// Deletion is permanent: a page's history and attachments go with it.
// Removing one version instead keeps the rest of the history; removing the
// latest promotes the previous version.
package rm

import (
	"context"
	"fmt"
	"io"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// Options configures a delete operation.
type Options struct {
	Version int // if > 0 (or provider.Latest), delete only this version
}

// Result contains the outcome of a delete operation.
type Result struct {
	Page    string `json:"page"`
	Version int    `json:"version,omitempty"`
	// Gone is set when the page no longer exists afterwards.
	Gone bool `json:"gone"`
}

// Run deletes a page, or one version of it.
func Run(ctx context.Context, w io.Writer, svc service.Service, name string, opts Options) (Result, error) {
	result := Result{Page: name}

	if opts.Version == 0 {
		if err := svc.Delete(ctx, name); err != nil {
			return result, err
		}
		result.Gone = true
		fmt.Fprintf(w, "Deleted %s\n", name)
		return result, nil
	}

	version := opts.Version
	if version == provider.Latest {
		info, err := svc.Info(ctx, name, provider.Latest)
		if err != nil {
			return result, err
		}
		version = info.Version
	}
	if err := svc.DeleteVersion(ctx, name, version); err != nil {
		return result, err
	}
	result.Version = version

	exists, err := svc.Exists(ctx, name)
	if err != nil {
		return result, err
	}
	result.Gone = !exists
	if result.Gone {
		fmt.Fprintf(w, "Deleted %s (version %d was the last)\n", name, version)
	} else {
		fmt.Fprintf(w, "Deleted %s (version %d)\n", name, version)
	}
	return result, nil
}
