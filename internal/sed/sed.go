// Package sed provides sed-style text substitution for pages.
//
// Supports the familiar s/old/new/ syntax with an optional 'g' flag for
// global replacement. Alternate delimiters (s|old|new|) work too. Only
// substitution commands are supported.
package sed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jpl-au/wikid/internal/edit"
	"github.com/jpl-au/wikid/internal/service"
)

var (
	// ErrInvalidExpr is returned when a sed expression is malformed.
	ErrInvalidExpr = errors.New("invalid sed expression")
	// ErrUnsupportedCommand is returned for non-substitution commands.
	ErrUnsupportedCommand = errors.New("only substitution (s) commands are supported")
)

// Options configures a sed operation.
type Options struct {
	Author     string
	ChangeNote string
}

// Expr represents a parsed sed expression.
type Expr struct {
	Old    string
	New    string
	Global bool // 'g' flag
}

// Apply substitutes e in text. It fails with edit.ErrTextNotFound when Old
// does not occur.
func (e Expr) Apply(text string) (string, error) {
	if !strings.Contains(text, e.Old) {
		return "", fmt.Errorf("%w: %q", edit.ErrTextNotFound, e.Old)
	}
	if e.Global {
		return strings.ReplaceAll(text, e.Old, e.New), nil
	}
	return strings.Replace(text, e.Old, e.New, 1), nil
}

// Run applies a substitution to the latest version of name and saves the
// result as a new version.
func Run(ctx context.Context, w io.Writer, svc service.Service, name, expr string, opts Options) (edit.Result, error) {
	parsed, err := ParseExpr(expr)
	if err != nil {
		return edit.Result{Page: name}, err
	}
	return edit.Apply(ctx, w, svc, name, opts.Author, opts.ChangeNote, parsed.Apply)
}

// ParseExpr parses a sed substitution expression like s/old/new/ or s|old|new|g.
func ParseExpr(expr string) (Expr, error) {
	if len(expr) < 4 {
		return Expr{}, ErrInvalidExpr
	}

	if expr[0] != 's' {
		return Expr{}, ErrUnsupportedCommand
	}

	delim := expr[1]
	rest := expr[2:]

	parts := splitByDelim(rest, delim)
	if len(parts) < 2 {
		return Expr{}, fmt.Errorf("%w: expected s%cold%cnew%c", ErrInvalidExpr, delim, delim, delim)
	}

	if parts[0] == "" {
		return Expr{}, fmt.Errorf("%w: empty search text", ErrInvalidExpr)
	}

	result := Expr{
		Old: parts[0],
		New: parts[1],
	}

	// Check for flags (third part after final delimiter)
	if len(parts) >= 3 {
		flags := parts[2]
		if strings.Contains(flags, "g") {
			result.Global = true
		}
	}

	return result, nil
}

// splitByDelim splits a string by delimiter, respecting escaped delimiters.
func splitByDelim(s string, delim byte) []string {
	var parts []string
	var current strings.Builder
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == delim {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
