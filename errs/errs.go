// Package errs defines the typed errors surfaced by the order service.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map failures onto transport
// semantics (404/403/409-style responses, retry decisions).
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindDependencyFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindDependencyFailure:
		return "dependency_failure"
	default:
		return "unknown"
	}
}

// Error is a classified service error. The message is safe to show to callers.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind { return e.kind }

// NotFound reports a missing resource, e.g. NotFound("order", id).
func NotFound(resource, id string) *Error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf("%s %s not found", resource, id)}
}

func Forbidden(msg string) *Error {
	return &Error{kind: KindForbidden, msg: msg}
}

func InvalidState(msg string) *Error {
	return &Error{kind: KindInvalidState, msg: msg}
}

func DependencyFailure(msg string, cause error) *Error {
	return &Error{kind: KindDependencyFailure, msg: msg, cause: cause}
}

// KindOf extracts the Kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}
