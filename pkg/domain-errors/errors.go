// Package domainerrors provides coded domain errors. Services return these so
// callers (handlers, orchestrators, tests) can branch on the code without
// string matching, and the transport layer can map codes to HTTP statuses in
// one place. Codes are part of the public contract: violations are typed
// results, never panics or sentinel strings.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	// Generic codes shared across features.
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Registry codes.
	CodeDuplicateContact     Code = "duplicate_contact"
	CodeUnknownUpline        Code = "unknown_upline"
	CodeMissingUplineForRole Code = "missing_upline_for_role"
	CodeInactiveAccount      Code = "inactive_account"

	// Ledger codes.
	CodeUnsupportedCurrency Code = "unsupported_currency"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeInvalidAmount       Code = "invalid_amount"
	CodeEscrowNotFound      Code = "escrow_not_found"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode at call sites that test a single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its transport status. Kept here so every
// handler produces the same envelope for the same failure class.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeNotFound, CodeUnknownUpline, CodeEscrowNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateContact:
		return http.StatusConflict
	case CodeMissingUplineForRole, CodeUnsupportedCurrency:
		return http.StatusUnprocessableEntity
	case CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case CodeInactiveAccount:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
