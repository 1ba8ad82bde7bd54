// Package apierr defines the control plane's error taxonomy. Every layer
// above storage maps whatever it sees into one of these kinds; nothing
// above the repository boundary inspects a driver error directly.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the core ever surfaces.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindConflict           Kind = "conflict"
	KindForbidden          Kind = "forbidden"
	KindUnauthenticated    Kind = "unauthenticated"
	KindTimeout            Kind = "timeout"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

// Error is the taxonomy-tagged error every core operation returns.
type Error struct {
	Kind    Kind
	Message string
	Field   string   // set for KindValidation, the offending field path
	Allowed []string // set for KindValidation enum mismatches
	Blocked []string // set for KindConflict, names of blocking references
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Field: field}
}

func ValidationEnum(field, msg string, allowed []string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Field: field, Allowed: allowed}
}

func NotFound(msg string) *Error { return newErr(KindNotFound, msg) }

func AlreadyExists(msg string) *Error { return newErr(KindAlreadyExists, msg) }

func Conflict(msg string, blockers []string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Blocked: blockers}
}

func Forbidden(msg string) *Error { return newErr(KindForbidden, msg) }

func Unauthenticated(msg string) *Error { return newErr(KindUnauthenticated, msg) }

func Timeout(msg string) *Error { return newErr(KindTimeout, msg) }

func ServiceUnavailable(msg string) *Error { return newErr(KindServiceUnavailable, msg) }

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: cause}
}

// Wrap tags cause with kind, preserving it for Unwrap/errors.Is chains.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// As is a small helper for callers that want the full *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
