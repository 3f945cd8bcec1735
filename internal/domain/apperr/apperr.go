// Package apperr defines the error taxonomy the scheduler's engines raise,
// modeled on the category split in the design notes: callers distinguish
// kinds with errors.Is/errors.As rather than string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories the design notes enumerate.
type Kind string

const (
	KindInvalidInput            Kind = "invalid_input"
	KindNotFound                Kind = "not_found"
	KindPreconditionFailed      Kind = "precondition_failed"
	KindContention              Kind = "contention"
	KindDenormalizationWarning  Kind = "denormalization_warning"
	KindDataIntegrityViolation  Kind = "data_integrity_violation"
	KindFatal                   Kind = "fatal"
)

// Error is the taxonomy's single concrete type; Kind carries the category,
// Entity is optional context for NotFound/InvalidInput errors.
type Error struct {
	Kind   Kind
	Entity string
	Err    error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, apperr.NotFound("task")) style kind checks by
// comparing Kind and Entity, ignoring the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Entity == "" || e.Entity == t.Entity)
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Err: errors.New("not found")}
}

func InvalidInput(entity string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Entity: entity, Err: err}
}

func PreconditionFailed(entity string, err error) *Error {
	return &Error{Kind: KindPreconditionFailed, Entity: entity, Err: err}
}

func Contention(entity string) *Error {
	return &Error{Kind: KindContention, Entity: entity, Err: errors.New("already claimed")}
}

func DataIntegrityViolation(entity string, err error) *Error {
	return &Error{Kind: KindDataIntegrityViolation, Entity: entity, Err: err}
}

func Fatal(err error) *Error {
	return &Error{Kind: KindFatal, Err: err}
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
