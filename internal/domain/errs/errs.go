// Package errs defines the error kinds every forecasting operation reports.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for the transport layer.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindFit        Kind = "fit"
	KindInternal   Kind = "internal"
)

// Sentinels match any *Error of the same kind through errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrFit        = &Error{Kind: KindFit, Message: "fit failed"}
	ErrInternal   = &Error{Kind: KindInternal, Message: "internal error"}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can test against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t == ErrValidation || t == ErrNotFound || t == ErrFit || t == ErrInternal || t == e)
}

func Validation(format string, a ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, a...)}
}

func NotFound(format string, a ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, a...)}
}

func Fit(err error, format string, a ...interface{}) *Error {
	return &Error{Kind: KindFit, Message: fmt.Sprintf(format, a...), Err: err}
}

func Internal(err error, format string, a ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, a...), Err: err}
}

// Wrap attaches a kind to an arbitrary cause.
func Wrap(kind Kind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable part without wrapped causes.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
