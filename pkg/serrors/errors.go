package serrors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for transport mapping. Infrastructure
// faults are never given a Kind; they propagate as plain wrapped errors.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindForbidden     Kind = "forbidden"
	KindConflict      Kind = "conflict"
	KindInvalidState  Kind = "invalid_state"
	KindEmptyRotation Kind = "empty_rotation"
)

// Base is a typed, user-facing domain error with a stable machine code.
type Base struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Base) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message string, kind Kind) *Base {
	return &Base{Code: code, Kind: kind, Message: message}
}

func NotFound(code, message string) *Base {
	return NewError(code, message, KindNotFound)
}

func Validation(code, message string) *Base {
	return NewError(code, message, KindValidation)
}

func Validationf(code, format string, args ...any) *Base {
	return Validation(code, fmt.Sprintf(format, args...))
}

func Forbidden(code, message string) *Base {
	return NewError(code, message, KindForbidden)
}

func Conflict(code, message string) *Base {
	return NewError(code, message, KindConflict)
}

func InvalidState(code, message string) *Base {
	return NewError(code, message, KindInvalidState)
}

// KindOf extracts the error kind from err or any error it wraps.
// The empty string means err is not a domain error.
func KindOf(err error) Kind {
	var base *Base
	if errors.As(err, &base) {
		return base.Kind
	}
	return ""
}

// CodeOf extracts the stable machine code, or the empty string.
func CodeOf(err error) string {
	var base *Base
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}
