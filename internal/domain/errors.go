package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a referenced entity does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation is not valid for the entity's
// current state.
var ErrConflict = errors.New("conflict")

// ValidationError reports a bad or dangling reference in a request. A batch
// that fails validation never starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
