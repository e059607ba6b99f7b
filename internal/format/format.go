// Package format provides output formatting utilities for CLI display.
//
// Centralises formatting logic so that command implementations focus on
// wiki operations while this package handles presentation concerns like
// column alignment, tree rendering, and colourised output.
package format

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jpl-au/wikid/internal/diff"
	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/service"
)

const timeLayout = "2006-01-02 15:04"

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// List prints page names, one per line.
func List(w io.Writer, pages []provider.Page) error {
	for _, p := range pages {
		fmt.Fprintln(w, p.Name)
	}
	return nil
}

// Names prints names, one per line.
func Names(w io.Writer, names []string) error {
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

// Long prints pages with version, size, modification time and author.
//
// Column order is VER, SIZE, UPDATED, AUTHOR, NAME. Fixed-width columns
// come first; AUTHOR is padded to the widest author so NAME lines up.
func Long(w io.Writer, pages []provider.Page) error {
	if len(pages) == 0 {
		return nil
	}

	maxAuthor := len("AUTHOR")
	for _, p := range pages {
		maxAuthor = max(maxAuthor, len(orDash(p.Author)))
	}

	fmt.Fprintf(w, "%4s  %8s  %-16s  %-*s  %s\n", "VER", "SIZE", "UPDATED", maxAuthor, "AUTHOR", "NAME")
	for _, p := range pages {
		fmt.Fprintf(w, "%4d  %8s  %s  %-*s  %s\n",
			p.Version,
			humanize.IBytes(uint64(max(p.Size, 0))),
			p.LastModified.Format(timeLayout),
			maxAuthor, orDash(p.Author),
			p.Name,
		)
	}
	return nil
}

// Tree prints pages as a hierarchy split on "/".
func Tree(w io.Writer, pages []provider.Page) error {
	if len(pages) == 0 {
		return nil
	}

	type node struct {
		children map[string]*node
		isPage   bool
	}
	root := &node{children: make(map[string]*node)}
	for _, p := range pages {
		cur := root
		for _, part := range strings.Split(p.Name, "/") {
			if cur.children[part] == nil {
				cur.children[part] = &node{children: make(map[string]*node)}
			}
			cur = cur.children[part]
		}
		cur.isPage = true
	}

	var printNode func(n *node, prefix string)
	printNode = func(n *node, prefix string) {
		names := slices.Sorted(maps.Keys(n.children))
		for i, name := range names {
			child := n.children[name]
			last := i == len(names)-1

			connector, indent := "├── ", "│   "
			if last {
				connector, indent = "└── ", "    "
			}
			suffix := ""
			if !child.isPage {
				suffix = "/"
			}
			fmt.Fprintf(w, "%s%s%s%s\n", prefix, connector, name, suffix)
			printNode(child, prefix+indent)
		}
	}
	printNode(root, "")
	return nil
}

// Info prints one page version's metadata as "key: value" lines, custom
// attributes last and sorted.
func Info(w io.Writer, p *provider.Page) error {
	fmt.Fprintf(w, "name:       %s\n", p.Name)
	fmt.Fprintf(w, "version:    %d\n", p.Version)
	fmt.Fprintf(w, "author:     %s\n", orDash(p.Author))
	fmt.Fprintf(w, "modified:   %s (%s)\n", p.LastModified.Format(time.RFC3339), humanize.Time(p.LastModified))
	fmt.Fprintf(w, "size:       %s\n", humanize.IBytes(uint64(max(p.Size, 0))))
	if p.ChangeNote != "" {
		fmt.Fprintf(w, "changenote: %s\n", p.ChangeNote)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Attributes)) {
		fmt.Fprintf(w, "@%s: %s\n", k, p.Attributes[k])
	}
	return nil
}

// History prints version history, newest first.
func History(w io.Writer, versions []provider.Page) error {
	for _, p := range versions {
		note := "-"
		if p.ChangeNote != "" {
			note = strconv.Quote(p.ChangeNote)
		}
		fmt.Fprintf(w, "v%-3d  %s  %-16s  %s\n",
			p.Version,
			p.LastModified.Format(timeLayout),
			orDash(p.Author),
			note,
		)
	}
	return nil
}

// HistoryDiff prints version history with the diff each version introduced.
// versions are newest first and texts[i] is the text of versions[i].
func HistoryDiff(w io.Writer, versions []provider.Page, texts []string, colour bool) error {
	if len(versions) != len(texts) {
		return fmt.Errorf("history diff: %d versions but %d texts", len(versions), len(texts))
	}
	for i := 0; i < len(versions)-1; i++ {
		newer, older := versions[i], versions[i+1]

		fmt.Fprintf(w, "=== v%d -> v%d (%s by %s) ===\n",
			older.Version, newer.Version,
			newer.LastModified.Format(timeLayout),
			orDash(newer.Author),
		)
		if newer.ChangeNote != "" {
			fmt.Fprintf(w, "Note: %s\n", newer.ChangeNote)
		}

		r := diff.Compute(texts[i+1], texts[i], "v"+strconv.Itoa(older.Version), "v"+strconv.Itoa(newer.Version))
		fmt.Fprint(w, r.Format(colour))
		fmt.Fprintln(w)
	}
	return nil
}

// Attachments prints attachments with version, size, time and author.
func Attachments(w io.Writer, atts []provider.Attachment) error {
	if len(atts) == 0 {
		return nil
	}

	maxAuthor := len("AUTHOR")
	for _, a := range atts {
		maxAuthor = max(maxAuthor, len(orDash(a.Author)))
	}

	fmt.Fprintf(w, "%4s  %8s  %-16s  %-*s  %s\n", "VER", "SIZE", "UPDATED", maxAuthor, "AUTHOR", "FILE")
	for _, a := range atts {
		fmt.Fprintf(w, "%4d  %8s  %s  %-*s  %s\n",
			a.Version,
			humanize.IBytes(uint64(max(a.Size, 0))),
			a.LastModified.Format(timeLayout),
			maxAuthor, orDash(a.Author),
			a.FileName,
		)
	}
	return nil
}

// Pending prints saves held for approval, oldest first.
func Pending(w io.Writer, held []service.PendingSave) error {
	for _, h := range held {
		note := "-"
		if h.ChangeNote != "" {
			note = strconv.Quote(h.ChangeNote)
		}
		fmt.Fprintf(w, "%s  %-14s  %-16s  %s  %s\n",
			h.ID,
			humanize.Time(h.Created),
			orDash(h.Author),
			h.Page,
			note,
		)
	}
	return nil
}
