// errors.go defines the provider error taxonomy.
//
// Design: not-found conditions are always errors, never nil results, so a
// caller cannot mistake "no such page" for "empty page". Configuration
// errors wrap ErrConfig and are only returned from constructors.

package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the page or attachment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoSuchVersion indicates a version outside the stored history.
	ErrNoSuchVersion = errors.New("no such version")
	// ErrConfig indicates a misconfigured store (missing directory, bad
	// pattern, unknown provider name).
	ErrConfig = errors.New("provider misconfigured")
	// ErrExists prevents a move from overwriting an existing page.
	ErrExists = errors.New("already exists")
)

// NoSuchVersionError reports a requested version and the latest available.
type NoSuchVersionError struct {
	Name      string
	Requested int
	Latest    int
}

func (e *NoSuchVersionError) Error() string {
	return fmt.Sprintf("%s: requested version %d, but latest is %d", e.Name, e.Requested, e.Latest)
}

// Is makes errors.Is(err, ErrNoSuchVersion) match.
func (e *NoSuchVersionError) Is(target error) bool { return target == ErrNoSuchVersion }

func notFound(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
}
