package profiles

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is returned when a profile lookup finds no matching row.
var ErrProfileNotFound = errors.New("profile not found")

// InvalidIdentifierError is returned for identifiers that are neither an
// address nor a normalizable ENS name.
type InvalidIdentifierError struct {
	Identifier string
	Reason     string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Identifier, e.Reason)
}

// ResolutionError wraps a registry failure with the identifier that
// triggered it, so callers can tell an outage apart from absence.
type ResolutionError struct {
	Identifier string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed for %s: %v", e.Identifier, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
