// properties.go validates custom page attributes.
//
// Custom attributes are persisted as "@key=value" lines in properties
// sidecar files. The limits keep those files small and the ASCII-printable
// rule keeps them readable by any properties parser without escapes.

package validate

import "fmt"

// Default attribute limits.
const (
	DefaultMaxProperties    = 200
	DefaultMaxPropertyKey   = 255
	DefaultMaxPropertyValue = 4096
)

// Limits bounds the custom attributes a page may carry. It is fixed at store
// construction and never changed afterwards.
type Limits struct {
	MaxProperties  int
	MaxKeyLength   int
	MaxValueLength int
}

// DefaultLimits returns Limits with the default maxima.
func DefaultLimits() Limits {
	return Limits{
		MaxProperties:  DefaultMaxProperties,
		MaxKeyLength:   DefaultMaxPropertyKey,
		MaxValueLength: DefaultMaxPropertyValue,
	}
}

// Properties validates custom attributes against l. Nothing is truncated:
// the first violation is returned and the caller must not persist attrs.
func Properties(attrs map[string]string, l Limits) error {
	if l.MaxProperties > 0 && len(attrs) > l.MaxProperties {
		return fmt.Errorf("%w: %d properties exceeds limit of %d", ErrInvalidProperty, len(attrs), l.MaxProperties)
	}
	for k, v := range attrs {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidProperty)
		}
		if l.MaxKeyLength > 0 && len(k) > l.MaxKeyLength {
			return fmt.Errorf("%w: key %q is %d characters, limit is %d", ErrInvalidProperty, k, len(k), l.MaxKeyLength)
		}
		if l.MaxValueLength > 0 && len(v) > l.MaxValueLength {
			return fmt.Errorf("%w: value of %q is %d characters, limit is %d", ErrInvalidProperty, k, len(v), l.MaxValueLength)
		}
		if !printable(k) {
			return fmt.Errorf("%w: key %q is not ASCII-printable", ErrInvalidProperty, k)
		}
		if !printable(v) {
			return fmt.Errorf("%w: value %q of key %q is not ASCII-printable", ErrInvalidProperty, v, k)
		}
	}
	return nil
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
