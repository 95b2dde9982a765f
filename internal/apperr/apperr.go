// Package apperr is the error taxonomy the HTTP layer maps onto status
// codes: unauthenticated (401), forbidden (403), validation (422), not
// found (404), everything else a generic persistence failure (500).
package apperr

import "errors"

var (
	// ErrUnauthenticated means no actor could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound means the referenced project, task or user does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports per-field payload violations.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// IsValidation extracts a ValidationError from err, if any.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
