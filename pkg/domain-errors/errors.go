// Package domainerrors provides typed, code-carrying errors shared by all
// feature modules. Services create these; the HTTP layer maps codes to
// status lines without inspecting message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error classification. Codes are part of
// the API contract: they appear verbatim in HTTP error bodies.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"

	// Trial-domain codes.
	CodeInvalidState         Code = "invalid_state"
	CodeCapacityExceeded     Code = "capacity_exceeded"
	CodeCodeExhausted        Code = "code_generation_exhausted"
	CodeAlreadyUnblinded     Code = "already_unblinded"
	CodeInvalidConfiguration Code = "invalid_configuration"
)

// Error is a domain error with a classification code and a human-readable
// message. The wrapped cause, if any, is reachable via errors.Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates err with a domain code and message. Returns nil when err is
// nil so it can be used on return paths unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain is a domain error with the
// given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var dErr *Error
		if errors.As(err, &dErr) {
			if dErr.Code == code {
				return true
			}
			err = dErr.Err
			continue
		}
		return false
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error in err's chain, or
// CodeInternal when err carries no domain classification.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}
