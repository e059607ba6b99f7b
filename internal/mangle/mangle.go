// Package mangle maps wiki page and attachment names to filesystem-safe
// tokens and back.
//
// A token is the form-URL encoding of the name in the configured charset.
// Two characters receive extra treatment so that a token is always a single,
// visible path component:
//
//   - "/" is always escaped (%2F), so a hierarchical page name stays one file
//   - a leading "." is escaped (%2E), so no token is a hidden file or ".."
//
// On Windows, names that collide with reserved device names (CON, NUL, LPT1,
// ...) are prefixed with "$$$". The "$" character is itself always escaped,
// so the guard can never be confused with a real name.
package mangle

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// ReservedPrefix guards names that collide with Windows device names.
const ReservedPrefix = "$$$"

var (
	// ErrCharset indicates the configured character encoding is unknown.
	ErrCharset = errors.New("unsupported character encoding")
	// ErrMalformed indicates a token contains an invalid escape sequence.
	ErrMalformed = errors.New("malformed mangled name")
	// ErrUnrepresentable indicates a name has no exact encoding in the
	// configured charset.
	ErrUnrepresentable = errors.New("name not representable in charset")
)

var reserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// Mangler converts between names and tokens. It is safe for concurrent use.
type Mangler struct {
	charset string
	enc     encoding.Encoding
	guard   bool
}

// Option configures a Mangler.
type Option func(*Mangler)

// WithReservedGuard enables or disables the Windows device-name guard.
// The default follows the host platform.
func WithReservedGuard(on bool) Option {
	return func(m *Mangler) { m.guard = on }
}

// New returns a Mangler for the named charset ("UTF-8", "ISO-8859-1", ...).
// An empty charset selects UTF-8.
func New(charset string, opts ...Option) (*Mangler, error) {
	if charset == "" {
		charset = "UTF-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCharset, charset)
	}
	m := &Mangler{charset: charset, enc: enc, guard: guardDefault}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Charset returns the configured character encoding name.
func (m *Mangler) Charset() string { return m.charset }

// Encoding returns the configured character encoding.
func (m *Mangler) Encoding() encoding.Encoding { return m.enc }

// Check reports whether name survives Mangle and Unmangle unchanged.
// Stores call it before creating anything named after name.
func (m *Mangler) Check(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrUnrepresentable, name)
	}
	if _, err := m.enc.NewEncoder().String(name); err != nil {
		return fmt.Errorf("%w: %q in %s", ErrUnrepresentable, name, m.charset)
	}
	return nil
}

// Mangle returns the filesystem token for name. Names that fail Check
// still produce a token, so lookups of them miss instead of failing.
func (m *Mangler) Mangle(name string) string {
	raw, err := m.enc.NewEncoder().String(name)
	if err != nil {
		raw = name
	}

	var b strings.Builder
	b.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '.' && i == 0:
			b.WriteString("%2E")
		case unreserved(c):
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}

	token := b.String()
	if m.guard && reserved[strings.ToLower(name)] {
		token = ReservedPrefix + token
	}
	return token
}

// Unmangle reverses Mangle.
func (m *Mangler) Unmangle(token string) (string, error) {
	if m.guard && len(token) > len(ReservedPrefix) && strings.HasPrefix(token, ReservedPrefix) {
		token = token[len(ReservedPrefix):]
	}

	buf := make([]byte, 0, len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch c {
		case '+':
			buf = append(buf, ' ')
		case '%':
			if i+2 >= len(token) {
				return "", fmt.Errorf("%w: %q", ErrMalformed, token)
			}
			hi, ok1 := unhex(token[i+1])
			lo, ok2 := unhex(token[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("%w: %q", ErrMalformed, token)
			}
			buf = append(buf, hi<<4|lo)
			i += 2
		default:
			buf = append(buf, c)
		}
	}

	name, err := m.enc.NewDecoder().Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, token, err)
	}
	return string(name), nil
}

func unreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '.' || c == '-' || c == '*' || c == '_'
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
