// errors.go defines sentinel errors for validation failures.
//
// Separated to centralise error definitions. Detailed messages are provided
// by wrapping these with fmt.Errorf in the validation functions.

package validate

import "errors"

var (
	ErrInvalidName     = errors.New("invalid page name")
	ErrNameTooLong     = errors.New("page name too long")
	ErrInvalidProperty = errors.New("invalid page property")
	ErrContentTooLarge = errors.New("content too large")
)
