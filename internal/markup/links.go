// Package markup reads the parts of wiki markup the stores care about:
// outbound page links, link rewriting when a page is renamed, and page
// variables set with [{SET name=value}]. It is not a renderer.
//
// Link forms recognised:
//
//	[Target]            plain link
//	[text|Target]       link with display text
//	[Target#anchor]     link to a section
//	[Page/file.png]     link to an attachment or sub-page
//
// Skipped: "[[" escapes, [{...}] plugins and variables, numeric footnotes,
// anchor-only links, external URLs, configured interwiki prefixes and
// anything inside {{{ }}} blocks.
package markup

import (
	"strings"
	"unicode"
)

// Link is an internal link found in page text.
type Link struct {
	Text   string // display text, empty when the link has none
	Target string // link target as written, without anchor
	Anchor string // section anchor, without '#'

	// Byte offsets of Target within the text that was scanned.
	TargetStart, TargetEnd int
}

// Options controls which links count as internal.
type Options struct {
	// Interwiki lists link prefixes ("Wikipedia", "JSPWiki") that point to
	// other sites. Links of the form "Prefix:Page" with a listed prefix are
	// skipped. Comparison ignores case.
	Interwiki []string
}

// scan calls fn for every internal link in text.
func scan(text string, opts Options, fn func(Link)) {
	for i := 0; i < len(text); i++ {
		switch {
		case strings.HasPrefix(text[i:], "{{{"):
			end := strings.Index(text[i+3:], "}}}")
			if end < 0 {
				return
			}
			i += 3 + end + 2
		case text[i] == '[':
			if i+1 < len(text) && text[i+1] == '[' {
				i++
				continue
			}
			if i+1 < len(text) && text[i+1] == '{' {
				end := strings.Index(text[i:], "}]")
				if end < 0 {
					return
				}
				i += end + 1
				continue
			}
			end := strings.IndexByte(text[i+1:], ']')
			if end < 0 {
				return
			}
			body := text[i+1 : i+1+end]
			if l, ok := parseLink(body, i+1, opts); ok {
				fn(l)
			}
			i += end + 1
		}
	}
}

// parseLink interprets the body of a [ ] link starting at offset off.
func parseLink(body string, off int, opts Options) (Link, bool) {
	var l Link
	target, start := body, 0
	if bar := strings.IndexByte(body, '|'); bar >= 0 {
		l.Text = strings.TrimSpace(body[:bar])
		target, start = body[bar+1:], bar+1
		// [text|target|attributes]
		if bar2 := strings.IndexByte(target, '|'); bar2 >= 0 {
			target = target[:bar2]
		}
	}
	if hash := strings.IndexByte(target, '#'); hash >= 0 {
		l.Anchor = strings.TrimSpace(target[hash+1:])
		target = target[:hash]
	}

	lead := len(target) - len(strings.TrimLeft(target, " \t"))
	trimmed := strings.TrimSpace(target)
	if trimmed == "" || isFootnote(trimmed) || isExternal(trimmed) || isInterwiki(trimmed, opts.Interwiki) {
		return Link{}, false
	}
	l.Target = trimmed
	l.TargetStart = off + start + lead
	l.TargetEnd = l.TargetStart + len(trimmed)
	return l, true
}

func isFootnote(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isExternal(s string) bool {
	if strings.Contains(s, "://") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "file:")
}

func isInterwiki(s string, prefixes []string) bool {
	prefix, _, ok := strings.Cut(s, ":")
	if !ok {
		return false
	}
	for _, p := range prefixes {
		if strings.EqualFold(p, prefix) {
			return true
		}
	}
	return false
}

// Links returns the internal links in text in order of appearance.
func Links(text string, opts Options) []Link {
	var out []Link
	scan(text, opts, func(l Link) { out = append(out, l) })
	return out
}

// Targets returns the distinct cleaned link targets in text, in order of
// first appearance.
func Targets(text string, opts Options) []string {
	seen := make(map[string]bool)
	var out []string
	scan(text, opts, func(l Link) {
		t := CleanLink(l.Target)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	})
	return out
}

// legalPunct are the punctuation characters kept by CleanLink.
const legalPunct = "()&+,-=._$/:"

// CleanLink turns a link target into a page name: words are joined with
// their first letters capitalised ("main page" becomes "MainPage") and
// characters outside letters, digits and a small punctuation set are
// dropped.
func CleanLink(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r):
			upper = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		case strings.ContainsRune(legalPunct, r):
			b.WriteRune(r)
			upper = false
		}
	}
	return b.String()
}

// afterSlash returns s from its nth slash onwards.
func afterSlash(s string, n int) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			n--
			if n == 0 {
				return s[i:]
			}
		}
	}
	return ""
}

// RenameLinks rewrites links to from so they point at to. Links to
// attachments or sub-pages of from ("from/x") are rewritten too. Display
// text and anchors are kept. It reports whether anything changed.
func RenameLinks(text, from, to string, opts Options) (string, bool) {
	src := CleanLink(from)
	if src == "" {
		return text, false
	}

	var b strings.Builder
	last := 0
	changed := false
	scan(text, opts, func(l Link) {
		clean := CleanLink(l.Target)
		var rest string
		switch {
		case strings.EqualFold(clean, src):
		case len(clean) > len(src) && strings.EqualFold(clean[:len(src)], src) && clean[len(src)] == '/':
			rest = afterSlash(l.Target, strings.Count(src, "/")+1)
		default:
			return
		}
		b.WriteString(text[last:l.TargetStart])
		b.WriteString(to)
		b.WriteString(rest)
		last = l.TargetEnd
		changed = true
	})
	if !changed {
		return text, false
	}
	b.WriteString(text[last:])
	return b.String(), true
}
