package services

import (
	"errors"
	"fmt"

	"fuel-reconciliation-service/internal/repositories"
)

// Error kinds. Handlers map them to status codes with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrGone            = errors.New("gone")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Error carries a user-facing message together with its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func conflictError(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// lookupError turns a repository miss into a not-found error with msg and
// wraps anything else.
func lookupError(err error, msg, op string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFoundError("%s", msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
