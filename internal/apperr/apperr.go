// Package apperr holds the error kinds shared by the catalog, order and auth
// packages. Callers classify with errors.Is against the sentinel kinds.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Error is a business-rule violation with a caller-facing reason.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newf(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newf(ErrInvalidTransition, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(ErrForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(ErrConflict, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newf(ErrUnauthorized, format, args...)
}

// Reason returns the caller-facing text of a business error, or "" for
// anything that is not one (infrastructure failures stay private).
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err.Error()
		}
	}
	return ""
}

var kinds = []error{
	ErrValidation, ErrNotFound, ErrInvalidTransition, ErrForbidden, ErrConflict, ErrUnauthorized,
}
