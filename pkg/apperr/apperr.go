// Package apperr defines the error taxonomy shared by every engine
// operation. Handlers translate kinds to HTTP status codes in one place;
// services and the database layer only ever return kinds.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindForbidden              Kind = "FORBIDDEN"
	KindNotFound               Kind = "NOT_FOUND"
	KindValidation             Kind = "VALIDATION_ERROR"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindExpired                Kind = "EXPIRED"
	KindAlreadyResolved        Kind = "ALREADY_RESOLVED"
	KindDuplicateInvitation    Kind = "DUPLICATE_INVITATION"
	KindPreconditionFailed     Kind = "PRECONDITION_FAILED"
	KindStorageFailure         Kind = "STORAGE_FAILURE"
	KindTimeout                Kind = "TIMEOUT"
	KindInternal               Kind = "INTERNAL"
)

// Error carries a machine-readable kind plus a human-readable message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors for the kinds every component uses.

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func InvalidStateTransition(format string, args ...interface{}) *Error {
	return New(KindInvalidStateTransition, format, args...)
}

func PreconditionFailed(format string, args ...interface{}) *Error {
	return New(KindPreconditionFailed, format, args...)
}
