package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAlreadyExists
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"-"`
	Reason  string `json:"error"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind onto a response status
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation reports malformed or missing input. reason is machine readable.
func Validation(reason, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Reason:  reason,
		Message: message,
	}
}

// NotFound reports an absent aggregate or child record
func NotFound(resource, id string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Reason:  "not_found",
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

// AlreadyExists reports a create that collided with an existing id
func AlreadyExists(resource, id string) *AppError {
	return &AppError{
		Kind:    KindAlreadyExists,
		Reason:  "already_exists",
		Message: fmt.Sprintf("%s %s already exists", resource, id),
	}
}

// Conflict reports a failed optimistic-concurrency precondition
func Conflict(reason, message string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Reason:  reason,
		Message: message,
	}
}

// Internal wraps an adapter or engine failure. The message never carries err.
func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Reason:  "internal",
		Message: "internal server error",
		Err:     err,
	}
}

// As extracts an AppError from err, treating anything else as internal
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err is an AppError of the given kind
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
