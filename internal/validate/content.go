// content.go implements page content validation.
//
// Only size is checked. Wiki markup is stored as given and interpreted by
// readers, never by the stores.

package validate

import "fmt"

// Content validates page content size. A maxLen of 0 means no limit.
func Content(content string, maxLen int64) error {
	if maxLen > 0 && int64(len(content)) > maxLen {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrContentTooLarge, len(content), maxLen)
	}
	return nil
}
