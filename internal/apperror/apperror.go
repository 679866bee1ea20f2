// Package apperror defines the domain error taxonomy shared by the store,
// service, and HTTP layers.
//
// Every AppError wraps one sentinel (ErrValidation, ErrConflict, ...) so that
// callers can branch with errors.Is, while Message carries the text that is
// safe to show to a client. Handlers translate the sentinel into a status code;
// nothing below the handler layer knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// InternalMessage is the only text an InternalError ever exposes.
const InternalMessage = "internal server error"

type AppError struct {
	Err     error  // sentinel
	Message string // client-safe message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on field.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports failed authentication. The message must not reveal
// which credential was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Internal returns a generic error for unexpected failures. The cause is
// logged by the caller, never attached here.
func Internal() *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: InternalMessage,
	}
}

// FieldOf returns the Field of the first AppError in err's chain.
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
