// properties.go reads and writes the Java-style properties sidecars that
// carry page and attachment metadata.
//
// Files are ISO-8859-1 with \uXXXX escapes so existing wikis can be read and
// written by other properties tooling. Property expansion ("${key}") is
// disabled because values are user text.

package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/magiconair/properties"
)

// Sidecar keys.
const (
	keyAuthor     = "author"
	keyChangeNote = "changenote"
	keyViewCount  = "viewcount"
	attrPrefix    = "@"
)

// loadProps reads a properties file. A missing file yields an empty map.
func loadProps(path string) (map[string]string, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read properties %s: %w", path, err)
	}
	return parseProps(buf, path)
}

func parseProps(buf []byte, path string) (map[string]string, error) {
	l := &properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}
	p, err := l.LoadBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("parse properties %s: %w", path, err)
	}
	return p.Map(), nil
}

// encodeProps renders m with keys in sorted order.
func encodeProps(m map[string]string) ([]byte, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, _, err := p.Set(k, m[k]); err != nil {
			return nil, fmt.Errorf("set property %q: %w", k, err)
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.ISO_8859_1); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// storeProps writes m to path atomically.
func storeProps(path string, m map[string]string) error {
	buf, err := encodeProps(m)
	if err != nil {
		return fmt.Errorf("encode properties %s: %w", path, err)
	}
	return writeFileAtomic(path, buf)
}

// customAttrs extracts "@"-prefixed keys as page attributes.
func customAttrs(m map[string]string) map[string]string {
	var out map[string]string
	for k, v := range m {
		if len(k) > len(attrPrefix) && k[:len(attrPrefix)] == attrPrefix {
			if out == nil {
				out = make(map[string]string)
			}
			out[k[len(attrPrefix):]] = v
		}
	}
	return out
}

// setCustomAttrs replaces the "@"-prefixed keys in m with attrs.
func setCustomAttrs(m map[string]string, attrs map[string]string) {
	for k := range m {
		if len(k) > len(attrPrefix) && k[:len(attrPrefix)] == attrPrefix {
			delete(m, k)
		}
	}
	for k, v := range attrs {
		m[attrPrefix+k] = v
	}
}
