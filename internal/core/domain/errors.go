package domain

import (
	"errors"
	"net/http"
	"strings"
)

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode identifies the class of a structured error.
type ErrorCode string

const (
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeUnableToUpdate    ErrorCode = "UNABLE_TO_UPDATE"
	ErrCodeUnsupportedMethod ErrorCode = "UNSUPPORTED_METHOD"
	ErrCodeUnableToStore     ErrorCode = "UNABLE_TO_STORE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus maps an error code to the HTTP status it is rendered with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeUnableToUpdate:
		return http.StatusNotFound
	case ErrCodeUnsupportedMethod:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// Structured Error
// =============================================================================

// Error is a structured error value: a code plus human-readable messages.
// It is what the registry returns instead of a bare error, and what the
// HTTP boundary renders.
type Error struct {
	Code   ErrorCode `json:"code"`
	Errors []string  `json:"errors"`
}

// NewError creates a structured error.
func NewError(code ErrorCode, messages ...string) *Error {
	if messages == nil {
		messages = []string{}
	}
	return &Error{Code: code, Errors: messages}
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return string(e.Code)
	}
	return string(e.Code) + ": " + strings.Join(e.Errors, "; ")
}

// AsError extracts a *Error from err, if there is one in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err is a structured error with the given code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// ErrNoSuchJobTemplate is the message attached to UNABLE_TO_UPDATE.
const ErrNoSuchJobTemplate = "no such job template"
