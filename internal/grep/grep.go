// Package grep provides regex search over the latest text of pages.
//
// While the full-text index (find) handles word queries, grep gives exact
// pattern matching with familiar Unix semantics (-i, -v, -l, -c, -C).
package grep

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// DefaultMaxLineLength bounds a single scanned line.
const DefaultMaxLineLength = 10 * 1024 * 1024

// Options configures a grep operation.
type Options struct {
	Prefix     string // Scope search to a page name prefix
	NamesOnly  bool   // Only output page names (-l)
	IgnoreCase bool   // -i
	Invert     bool   // -v
	Context    int    // Lines of context around matches (-C)
	CountOnly  bool   // Only output the match count per page (-c)

	// MaxLineLength is the longest line scanned (0 = DefaultMaxLineLength).
	MaxLineLength int
}

// Match is a single matching line.
type Match struct {
	Line    int    `json:"line"` // 1-indexed
	Content string `json:"content"`
}

// PageMatch holds every match within one page.
type PageMatch struct {
	Page    string  `json:"page"`
	Version int     `json:"version"`
	Matches []Match `json:"matches"`

	text string
}

// Result contains the outcome of a grep operation.
type Result struct {
	Pattern string      `json:"pattern"`
	Hits    []PageMatch `json:"hits"`
}

// Names returns the matching page names.
func (r Result) Names() []string {
	names := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		names[i] = h.Page
	}
	return names
}

// Run searches the latest version of every page for pattern and writes
// grep-style output to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, pattern string, opts Options) (Result, error) {
	result := Result{Pattern: pattern, Hits: []PageMatch{}}

	flags := ""
	if opts.IgnoreCase {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return result, fmt.Errorf("invalid regex: %w", err)
	}

	pages, err := svc.List(ctx, service.ListOptions{Prefix: opts.Prefix})
	if err != nil {
		return result, err
	}

	for _, p := range pages {
		text, err := svc.Text(ctx, p.Name, provider.Latest)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", p.Name, err)
		}
		matches, err := matchLines(re, text, opts.Invert, opts.MaxLineLength)
		if err != nil {
			return result, fmt.Errorf("scanning %s: %w", p.Name, err)
		}
		if len(matches) > 0 {
			result.Hits = append(result.Hits, PageMatch{
				Page:    p.Name,
				Version: p.Version,
				Matches: matches,
				text:    text,
			})
		}
	}

	switch {
	case opts.NamesOnly:
		for _, hit := range result.Hits {
			fmt.Fprintln(w, hit.Page)
		}
	case opts.CountOnly:
		for _, hit := range result.Hits {
			fmt.Fprintf(w, "%s:%d\n", hit.Page, len(hit.Matches))
		}
	case opts.Context > 0:
		for _, hit := range result.Hits {
			writeContext(w, hit, opts.Context)
		}
	default:
		for _, hit := range result.Hits {
			for _, m := range hit.Matches {
				fmt.Fprintf(w, "%s:%d:%s\n", hit.Page, m.Line, m.Content)
			}
		}
	}

	return result, nil
}

// writeContext follows grep conventions: ":" after a matching line number,
// "-" after a context line number, "--" between non-contiguous groups.
func writeContext(w io.Writer, hit PageMatch, n int) {
	lines := strings.Split(hit.text, "\n")
	printed := make(map[int]bool)
	needSep := false

	for _, m := range hit.Matches {
		start := max(m.Line-n-1, 0)
		end := min(m.Line+n, len(lines))

		if needSep && !printed[start] && !printed[start-1] {
			fmt.Fprintln(w, "--")
		}

		for i := start; i < end; i++ {
			if printed[i] {
				continue
			}
			printed[i] = true
			sep := "-"
			if i+1 == m.Line {
				sep = ":"
			}
			fmt.Fprintf(w, "%s%s%d%s%s\n", hit.Page, sep, i+1, sep, lines[i])
		}
		needSep = true
	}
}

// matchLines returns the lines of text matching re, or not matching it
// when invert is set.
func matchLines(re *regexp.Regexp, text string, invert bool, maxLineLength int) ([]Match, error) {
	var matches []Match
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if re.MatchString(line) != invert {
			matches = append(matches, Match{Line: n, Content: line})
		}
	}
	return matches, scanner.Err()
}
