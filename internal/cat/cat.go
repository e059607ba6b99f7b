// Package cat provides page reading with line range support.
//
// StartLine/EndLine let a caller read one section of a long page (lines
// 50-70) without the rest, which matters to MCP clients paying per token
// as much as to a human at a terminal.
package cat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

// minLineNumWidth is the minimum column width for line numbers.
const minLineNumWidth = 6

// maxLineLength bounds a single scanned line.
const maxLineLength = 10 * 1024 * 1024

// Options configures a cat operation.
type Options struct {
	Version     int  // 0 or provider.Latest for the newest version
	LineNumbers bool // prefix lines with their number

	StartLine int // first line to show (1-indexed, 0 = start)
	EndLine   int // last line to show (1-indexed, 0 = end)
}

// Result contains the outcome of a cat operation.
type Result struct {
	Page *provider.Page `json:"page"`
	Text string         `json:"text"`
}

// Run reads a page and writes the selected lines to w.
func Run(ctx context.Context, w io.Writer, svc service.Service, name string, opts Options) (Result, error) {
	var result Result
	version := opts.Version
	if version == 0 {
		version = provider.Latest
	}

	info, err := svc.Info(ctx, name, version)
	if err != nil {
		return result, err
	}
	text, err := svc.Text(ctx, name, version)
	if err != nil {
		return result, err
	}
	result.Page = info
	result.Text = text

	if opts.StartLine == 0 && opts.EndLine == 0 && !opts.LineNumbers {
		fmt.Fprint(w, text)
		return result, nil
	}

	totalLines := strings.Count(text, "\n") + 1
	hasTrailingNewline := strings.HasSuffix(text, "\n")
	if hasTrailingNewline {
		totalLines--
	}

	start, end := 1, totalLines
	if opts.StartLine > 0 {
		start = opts.StartLine
	}
	if opts.EndLine > 0 && opts.EndLine < end {
		end = opts.EndLine
	}
	width := max(len(strconv.Itoa(end)), minLineNumWidth)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < start {
			continue
		}
		if lineNum > end {
			break
		}

		if opts.LineNumbers {
			fmt.Fprintf(w, "%*d\t%s", width, lineNum, scanner.Text())
		} else {
			fmt.Fprint(w, scanner.Text())
		}
		if lineNum < end || hasTrailingNewline {
			fmt.Fprintln(w)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("reading page text: %w", err)
	}
	return result, nil
}

// ParseLineRange parses a line range string like "10:20", "5:", or ":15".
// Returns start and end line numbers (1-indexed), where 0 means unspecified.
func ParseLineRange(s string) (start, end int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid line range %q: expected format START:END", s)
	}
	if parts[0] != "" {
		if start, err = strconv.Atoi(parts[0]); err != nil || start < 1 {
			return 0, 0, fmt.Errorf("invalid start line %q", parts[0])
		}
	}
	if parts[1] != "" {
		if end, err = strconv.Atoi(parts[1]); err != nil || end < 1 {
			return 0, 0, fmt.Errorf("invalid end line %q", parts[1])
		}
	}
	if start > 0 && end > 0 && start > end {
		return 0, 0, fmt.Errorf("start line %d is greater than end line %d", start, end)
	}
	return start, end, nil
}
