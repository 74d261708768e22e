// Package apperr defines the error kinds shared by the store gateway, the
// reservation coordinator and the HTTP handlers.  Lower layers attach a kind
// to every failure; upper layers dispatch on the kind without inspecting
// driver-specific errors.  Handlers translate kinds into HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.  The zero value KindInternal covers everything
// that has no more specific classification.
type Kind string

const (
	KindInternal          Kind = "INTERNAL"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindInvalidState      Kind = "INVALID_STATE"
	KindStoreConflict     Kind = "STORE_CONFLICT"
	KindStoreUnavailable  Kind = "STORE_UNAVAILABLE"
	KindBrokerUnavailable Kind = "BROKER_UNAVAILABLE"
	KindTimeout           Kind = "TIMEOUT"
)

// Error carries a kind, a human-readable message and an optional wrapped
// cause.  The message of NOT_FOUND/CONFLICT/INVALID_REQUEST errors is shown
// to API callers verbatim; all other kinds surface with opaque messages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict builds a CONFLICT error.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// InvalidRequest builds an INVALID_REQUEST error.
func InvalidRequest(format string, args ...any) *Error {
	return New(KindInvalidRequest, format, args...)
}

// InvalidState builds an INVALID_STATE error; it signals structural
// corruption (e.g. a confirmed reservation without a sale) and surfaces as
// an internal error.
func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

// KindOf extracts the kind from err.  Errors that carry no *Error anywhere
// in their chain report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is transient at the store level and worth
// retrying with backoff.  Only store conflicts (deadlock, lock wait timeout)
// and connectivity loss qualify; business failures never do.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindStoreConflict, KindStoreUnavailable:
		return true
	}
	return false
}
