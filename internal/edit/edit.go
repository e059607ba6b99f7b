// Package edit provides partial page edits: search/replace of a text
// fragment, or replacement of a line range. Every edit is saved as a new
// page version, so it shows up in history and can be reverted.
package edit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

var (
	// ErrTextNotFound is returned when search text is not in the page.
	ErrTextNotFound = errors.New("text not found")
	// ErrInvalidLineRange is returned when a line range is malformed.
	ErrInvalidLineRange = errors.New("invalid line range")
	// ErrUnchanged is returned when an edit would leave the text as it is.
	ErrUnchanged = errors.New("edit leaves page unchanged")
)

// Options configures a search/replace edit.
type Options struct {
	Old             string
	New             string
	CaseInsensitive bool
	Author          string
	ChangeNote      string
}

// LineRangeOptions configures a line-range edit.
type LineRangeOptions struct {
	Start      int // 1-indexed, 0 means the first line
	End        int // inclusive, 0 means the last line
	Author     string
	ChangeNote string
}

// Result contains the outcome of an edit.
type Result struct {
	Page    string `json:"page"`
	Version int    `json:"version"`
}

// Run replaces the first occurrence of opts.Old in the latest version of
// name and saves the result.
func Run(ctx context.Context, w io.Writer, svc service.Service, name string, opts Options) (Result, error) {
	return apply(ctx, w, svc, name, opts.Author, opts.ChangeNote, func(text string) (string, error) {
		return Replace(text, opts.Old, opts.New, opts.CaseInsensitive)
	})
}

// RunLineRange replaces lines opts.Start to opts.End of name with
// replacement and saves the result.
func RunLineRange(ctx context.Context, w io.Writer, svc service.Service, name, replacement string, opts LineRangeOptions) (Result, error) {
	return apply(ctx, w, svc, name, opts.Author, opts.ChangeNote, func(text string) (string, error) {
		return ReplaceLines(text, opts.Start, opts.End, replacement)
	})
}

// Transform is a text rewrite applied to the latest version of a page.
type Transform func(text string) (string, error)

// Apply runs fn over the latest text of name and saves the result as a new
// version. Custom attributes carry over.
func Apply(ctx context.Context, w io.Writer, svc service.Service, name, author, note string, fn Transform) (Result, error) {
	return apply(ctx, w, svc, name, author, note, fn)
}

func apply(ctx context.Context, w io.Writer, svc service.Service, name, author, note string, fn Transform) (Result, error) {
	r := Result{Page: name}

	info, err := svc.Info(ctx, name, provider.Latest)
	if err != nil {
		return r, err
	}
	text, err := svc.Text(ctx, name, provider.Latest)
	if err != nil {
		return r, err
	}
	updated, err := fn(text)
	if err != nil {
		return r, err
	}
	if updated == text {
		return r, ErrUnchanged
	}

	p, err := svc.Save(ctx, name, updated, service.SaveOptions{
		Author:     author,
		ChangeNote: note,
		Attributes: info.Attributes,
	})
	if err != nil {
		return r, err
	}
	r.Version = p.Version
	fmt.Fprintf(w, "Edited %s (now v%d)\n", name, p.Version)
	return r, nil
}

// Replace replaces the first occurrence of old in text with newStr.
// With caseInsensitive, matching ignores case; the replacement is inserted
// as given. Returns ErrTextNotFound if old does not occur.
func Replace(text, old, newStr string, caseInsensitive bool) (string, error) {
	if caseInsensitive {
		idx := strings.Index(strings.ToLower(text), strings.ToLower(old))
		if idx == -1 {
			return "", fmt.Errorf("%w: %q", ErrTextNotFound, old)
		}
		return text[:idx] + newStr + text[idx+len(old):], nil
	}

	if !strings.Contains(text, old) {
		return "", fmt.Errorf("%w: %q", ErrTextNotFound, old)
	}
	return strings.Replace(text, old, newStr, 1), nil
}

// ReplaceLines replaces a range of lines with new content.
// Lines are 1-indexed and the range is inclusive.
//
// Boundary behaviour:
//   - start == 0: treated as 1
//   - start > page length: error
//   - end == 0: treated as the page length
//   - end < start (when both > 0): error
//   - end > page length: clamped
func ReplaceLines(text string, start, end int, replacement string) (string, error) {
	lines := strings.Split(text, "\n")

	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = len(lines)
	}

	if start < 1 {
		return "", fmt.Errorf("start line must be >= 1, got %d", start)
	}
	if end < start {
		return "", fmt.Errorf("end line %d cannot be less than start line %d", end, start)
	}
	if start > len(lines) {
		return "", fmt.Errorf("start line %d exceeds page length %d", start, len(lines))
	}
	if end > len(lines) {
		end = len(lines)
	}

	var result []string
	result = append(result, lines[:start-1]...)

	replacement = strings.TrimSuffix(replacement, "\n")
	if replacement != "" {
		result = append(result, strings.Split(replacement, "\n")...)
	}

	result = append(result, lines[end:]...)

	return strings.Join(result, "\n"), nil
}

// ParseLineRange parses a line range like "5:10", "5:" or ":10".
// Zero means unspecified.
func ParseLineRange(s string) (start, end int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q (expected start:end)", ErrInvalidLineRange, s)
	}

	if parts[0] == "" && parts[1] == "" {
		return 0, 0, fmt.Errorf("%w: %q (at least start or end line required)", ErrInvalidLineRange, s)
	}

	if parts[0] != "" {
		start, err = strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: invalid start line %q", ErrInvalidLineRange, parts[0])
		}
		if start < 1 {
			return 0, 0, fmt.Errorf("%w: start line must be >= 1, got %d", ErrInvalidLineRange, start)
		}
	}

	if parts[1] != "" {
		end, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: invalid end line %q", ErrInvalidLineRange, parts[1])
		}
		if end < 1 {
			return 0, 0, fmt.Errorf("%w: end line must be >= 1, got %d", ErrInvalidLineRange, end)
		}
	}

	if start > 0 && end > 0 && start > end {
		return 0, 0, fmt.Errorf("%w: start line %d is greater than end line %d", ErrInvalidLineRange, start, end)
	}

	return start, end, nil
}
