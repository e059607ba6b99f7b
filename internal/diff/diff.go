// Package diff computes and formats line differences between page
// versions.
package diff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines shown before/after changes.
// Longer equal runs are collapsed with "...".
const contextLines = 3

// Options selects what to compare. With no versions set the page's previous
// version is compared with its latest.
type Options struct {
	Page2    string // second page, compared at its latest version
	Version1 int
	Version2 int
}

// Differ is implemented by the wiki service.
type Differ interface {
	Diff(ctx context.Context, page string, opts Options) (Result, error)
}

// Run computes a diff through svc and writes it to w.
func Run(ctx context.Context, w io.Writer, svc Differ, page string, opts Options, colour bool) (Result, error) {
	r, err := svc.Diff(ctx, page, opts)
	if err != nil {
		return r, err
	}
	fmt.Fprint(w, r.Format(colour))
	return r, nil
}

// Result holds diff output.
type Result struct {
	Old  string `json:"old"`
	New  string `json:"new"`
	Diff string `json:"diff"`
}

// Empty reports whether the two sides are identical.
func (r Result) Empty() bool {
	for _, line := range strings.Split(r.Diff, "\n") {
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "+ ") {
			return false
		}
	}
	return true
}

// Compute returns a diff between old and new content.
func Compute(oldText, newText, oldLabel, newLabel string) Result {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	d := dmp.DiffMain(a, b, false)
	d = dmp.DiffCharsToLines(d, lines)

	return Result{
		Old:  oldLabel,
		New:  newLabel,
		Diff: format(d),
	}
}

// format converts diffs to unified-style text.
func format(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				b.WriteString("- " + l + "\n")
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				b.WriteString("+ " + l + "\n")
			}
		case diffmatchpatch.DiffEqual:
			if len(lines) > 2*contextLines {
				for _, l := range lines[:contextLines] {
					b.WriteString("  " + l + "\n")
				}
				b.WriteString("  ...\n")
				for _, l := range lines[len(lines)-contextLines:] {
					b.WriteString("  " + l + "\n")
				}
				continue
			}
			for _, l := range lines {
				b.WriteString("  " + l + "\n")
			}
		}
	}
	return b.String()
}

// Colourise adds ANSI colours to diff output.
func Colourise(d string) string {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		reset = "\033[0m"
	)

	var b strings.Builder
	for _, line := range strings.Split(d, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			b.WriteString(red + line + reset + "\n")
		case strings.HasPrefix(line, "+ "):
			b.WriteString(green + line + reset + "\n")
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// Format returns the full diff with header.
func (r Result) Format(colour bool) string {
	header := fmt.Sprintf("--- %s\n+++ %s\n", r.Old, r.New)
	if colour {
		return header + Colourise(r.Diff)
	}
	return header + r.Diff
}

// ParseVersionRange parses a version range string like "3:5".
func ParseVersionRange(s string) (v1, v2 int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid version range %q (expected v1:v2)", s)
	}
	if parts[0] == "" || parts[1] == "" {
		return 0, 0, errors.New("invalid version range: both versions required")
	}
	if v1, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid start version: %w", err)
	}
	if v2, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid end version: %w", err)
	}
	if v1 < 1 {
		return 0, 0, fmt.Errorf("start version must be >= 1, got %d", v1)
	}
	if v2 < 1 {
		return 0, 0, fmt.Errorf("end version must be >= 1, got %d", v2)
	}
	return v1, v2, nil
}
