// name.go implements page and attachment name validation.
//
// Names are mangled before they touch the filesystem, so almost any
// printable text is acceptable. What is rejected here is text that cannot
// survive a round trip through a directory listing or a properties file.

package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds page names. Mangling can triple a name's length and
// most filesystems cap a component at 255 bytes.
const MaxNameLength = 100

// PageName validates a page name and returns it trimmed of surrounding
// whitespace.
//
// Validation rules:
//   - Empty (or whitespace-only) names rejected
//   - Invalid UTF-8 rejected
//   - Control characters rejected (includes null bytes and newlines)
//   - Max length enforced if maxLen > 0
func PageName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidName)
	}
	if i := strings.IndexFunc(name, unicode.IsControl); i >= 0 {
		return "", fmt.Errorf("%w: control character at offset %d", ErrInvalidName, i)
	}
	if maxLen > 0 && len(name) > maxLen {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrNameTooLong, len(name), maxLen)
	}
	return name, nil
}

// AttachmentName validates an attachment file name. Unlike page names an
// attachment name is a single component: it may not contain "/" and may
// not be "." or "..".
func AttachmentName(name string) (string, error) {
	name, err := PageName(name, MaxNameLength)
	if err != nil {
		return "", err
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: attachment name contains '/'", ErrInvalidName)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("%w: attachment name %q", ErrInvalidName, name)
	}
	return name, nil
}
