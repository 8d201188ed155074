// Package amemerr defines the stable error taxonomy surfaced by every
// AgenticMemory component, generalizing the classify-by-string idiom of
// the original error package into a typed, switchable tag.
package amemerr

import (
	"errors"
	"fmt"
)

// Kind is a stable error tag a caller can switch on.
type Kind string

const (
	NotFound          Kind = "not_found"
	InvalidArgument   Kind = "invalid_argument"
	InvariantViolation Kind = "invariant_violation"
	CorruptFormat     Kind = "corrupt_format"
	IntegrityFailed   Kind = "integrity_failed"
	Locked            Kind = "locked"
	Cancelled         Kind = "cancelled"
	DimensionMismatch Kind = "dimension_mismatch"
	Io                Kind = "io"
)

// Error is the concrete error type returned by every core operation.
// Op names the failing operation (e.g. "add", "link", "resolve") for
// diagnostics; Err is the wrapped cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("amem: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("amem: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error whose cause is a plain error carrying msg.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// Wrap constructs an *Error wrapping an existing cause.
func Wrap(op string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind, looking through wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
