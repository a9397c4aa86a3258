// Package apperr defines the error kinds shared by the store, the services
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyReviewed = errors.New("document has already been reviewed")
	ErrNotRejected     = errors.New("only rejected documents can be resubmitted")
	ErrValidation      = errors.New("validation failed")
	ErrStoreConflict   = errors.New("concurrent update conflict, retry the operation")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
)

// Wrap preserves kind for errors.Is while adding operation context.
func Wrap(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// Error pairs a kind with a message that is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Is reports whether err carries kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError is returned by the upload boundary and other input checks.
type ValidationError struct {
	Message string
	Allowed []string
}

func NewValidationError(message string, allowed ...string) *ValidationError {
	return &ValidationError{Message: message, Allowed: allowed}
}

func (e *ValidationError) Error() string {
	if len(e.Allowed) == 0 {
		return e.Message
	}
	return e.Message + " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
