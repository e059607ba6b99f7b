// Package validate provides input validation for wikid's domain types.
//
// This package enforces data integrity rules at the boundary between user
// input and the page stores. Each validation function returns nil on success
// or a descriptive error wrapping one of the sentinels in errors.go.
//
// # Validation Functions
//
// PageName validates page names before they are mangled to file tokens.
// AttachmentName validates attachment file names.
// Properties validates custom page attributes against configured Limits.
// Content validates page body size.
//
// # Error Handling
//
//	if errors.Is(err, validate.ErrInvalidProperty) {
//	    // the message names the offending key or value
//	}
package validate
