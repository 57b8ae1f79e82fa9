// Package apperr defines the error taxonomy shared by the service and API
// layers. Every error that crosses a service boundary carries a Kind, and
// the HTTP layer maps kinds to status codes in exactly one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the API layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindAuthorization
	KindNotFound
	KindStorage
	KindTransform
	KindTooLarge
)

// Error is a kinded error with an operator-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a kinded error wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation reports bad user input (missing file, disallowed type).
func Validation(msg string) *Error { return New(KindValidation, msg) }

// Auth reports a missing or invalid session.
func Auth(msg string) *Error { return New(KindAuth, msg) }

// Authorization reports an authenticated caller with the wrong role or owner.
func Authorization(msg string) *Error { return New(KindAuthorization, msg) }

// NotFound reports an absent account or image.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Storage reports a failed object-store operation.
func Storage(msg string, err error) *Error { return Wrap(KindStorage, msg, err) }

// TooLarge reports a payload over the configured ceiling.
func TooLarge(msg string) *Error { return New(KindTooLarge, msg) }

// KindOf returns the Kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
