package models

import (
	"errors"

	"StockPulse/internal/domain/errs"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Outcome is the tagged result every operation returns. Exactly one of Data
// or Kind is set.
type Outcome[T any] struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Kind    errs.Kind `json:"error_kind,omitempty"`
	Data    *T        `json:"data,omitempty"`

	err error
}

func Success[T any](data T, message string) Outcome[T] {
	return Outcome[T]{Status: OutcomeSuccess, Message: message, Data: &data}
}

func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = errs.Internal(nil, "operation failed without a cause")
	}
	return Outcome[T]{
		Status:  OutcomeError,
		Message: errs.Message(err),
		Kind:    errs.KindOf(err),
		err:     err,
	}
}

func (o Outcome[T]) OK() bool { return o.Status == OutcomeSuccess }

// Err returns the failure cause, or nil on success.
func (o Outcome[T]) Err() error {
	if o.OK() {
		return nil
	}
	if o.err != nil {
		return o.err
	}
	return &errs.Error{Kind: o.Kind, Message: o.Message}
}

// Unwrap returns the data or the failure cause.
func (o Outcome[T]) Unwrap() (T, error) {
	var zero T
	if !o.OK() {
		return zero, o.Err()
	}
	if o.Data == nil {
		return zero, errors.New("outcome: success without data")
	}
	return *o.Data, nil
}
