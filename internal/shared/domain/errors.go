package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable classification of a business-rule
// violation. API adapters map codes to transport status codes; codes never
// change once published.
type ErrorCode string

const (
	// CodeValidation marks malformed or out-of-range input.
	CodeValidation ErrorCode = "validation"
	// CodeNotFound marks a missing entity or an unauthorized caller.
	// The two are deliberately conflated so callers cannot probe for
	// the existence of contracts they are not a party to.
	CodeNotFound ErrorCode = "not_found"
	// CodeInvalidState marks an operation that is not legal in the
	// entity's current status.
	CodeInvalidState ErrorCode = "invalid_state"
	// CodeAmountMismatch marks a reported amount that differs from the
	// expected one. Mismatches are always rejected, never auto-corrected.
	CodeAmountMismatch ErrorCode = "amount_mismatch"
	// CodeGateway marks a failed or timed-out external provider call.
	CodeGateway ErrorCode = "gateway"
	// CodeConfiguration marks a feature that is disabled or missing
	// required configuration (bank details, webhook secret).
	CodeConfiguration ErrorCode = "configuration"
)

// DomainError is a business-rule violation with a stable code.
// Expected failures are returned as values; only infrastructure faults
// (lost database connection, broken pipe) propagate as plain errors.
type DomainError struct {
	Code    ErrorCode
	Message string
	cause   error
}

// NewDomainError creates a DomainError with the given code and message.
func NewDomainError(code ErrorCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapDomainError attaches a cause to a DomainError.
func WrapDomainError(code ErrorCode, cause error, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// Is allows errors.Is matching on code-only sentinel values.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// CodeOf extracts the taxonomy code from an error chain.
// Errors outside the taxonomy report an empty code.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
