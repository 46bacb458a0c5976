package book

import (
	"errors"
	"fmt"
	"net/http"

	"bookvault/internal/upload"
)

// Error categories. Every error returned by Service matches exactly one of them.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("book not found")
	ErrForbidden     = errors.New("not the owner of this book")
	ErrUpstreamStore = errors.New("asset store request failed")
	ErrPersistence   = errors.New("metadata store request failed")
)

// ValidationError is a bad-input error with a message safe to show the caller.
type ValidationError struct {
	Field   string
	Message string
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StatusFor maps an error category to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message shown to the caller for err.
// Internal failures never expose their cause.
func PublicMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrValidation):
		return ErrValidation.Error()
	case errors.Is(err, ErrForbidden):
		return "you are not allowed to modify this book"
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	default:
		return "internal server error"
	}
}

func upstreamError(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrUpstreamStore, err)
}

func persistenceError(step string, err error) error {
	return fmt.Errorf("%s: %w: %w", step, ErrPersistence, err)
}

// stagingError classifies a failure of the staging step.
func stagingError(err error) error {
	var fieldErr *upload.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return &ValidationError{Field: fieldErr.Field, Message: fieldErr.Error()}
	case errors.Is(err, upload.ErrTooLarge):
		return &ValidationError{Message: upload.ErrTooLarge.Error()}
	case errors.Is(err, upload.ErrInvalidForm):
		return &ValidationError{Message: upload.ErrInvalidForm.Error()}
	default:
		return fmt.Errorf("stage upload: %w", err)
	}
}
