// Package fault defines the error taxonomy shared across the pipeline.
// Every failure surfaced to a caller carries a Kind so transports can map
// errors without string matching, plus a human-readable detail message.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set mirrors the pipeline's recovery policy:
// validation and export errors are terminal and caller-visible, storage and
// schema errors are retried internally first, conflicts ask the caller to retry.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindStorage         Kind = "storage"
	KindExtraction      Kind = "extraction"
	KindSchemaViolation Kind = "schema_violation"
	KindRunLockConflict Kind = "run_lock_conflict"
	KindConflict        Kind = "conflict"
	KindExport          Kind = "export"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Error is a classified error with an optional wrapped cause.
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

// New returns a classified error with the given detail message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted detail message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error wrapping cause. The cause remains
// reachable through errors.Unwrap / errors.Is.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
