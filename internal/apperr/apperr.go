// Package apperr defines the error taxonomy shared by services and
// HTTP handlers. Every business-rule failure carries a Kind that maps
// to exactly one HTTP status, so handlers never branch on message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unclassified server-side failure.
	KindInternal Kind = iota

	// KindValidation is malformed or missing input.
	KindValidation

	// KindUnauthenticated is a missing or invalid token.
	KindUnauthenticated

	// KindForbidden is a valid token with insufficient role or ownership.
	KindForbidden

	// KindNotFound is a resource id that does not resolve.
	KindNotFound

	// KindConflict is an optimistic version mismatch.
	KindConflict

	// KindInvalidTransition is a state machine rule violation.
	KindInvalidTransition
)

// String returns the wire code for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets errors.Is match two classified errors by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation constructs a KindValidation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Unauthenticated constructs a KindUnauthenticated error.
func Unauthenticated(format string, args ...any) *Error {
	return New(KindUnauthenticated, format, args...)
}

// Forbidden constructs a KindForbidden error.
func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// NotFound constructs a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict constructs a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// InvalidTransition constructs a KindInvalidTransition error.
func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

// KindOf extracts the kind from err, or KindInternal when err is not
// a classified error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
