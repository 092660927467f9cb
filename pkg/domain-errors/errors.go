// Package domainerrors defines the error taxonomy the workflow layer exposes
// to callers. Stores return sentinel errors; services translate them into one
// of these codes so raw infrastructure errors never cross the workflow
// boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"

	"habitat/pkg/platform/sentinel"
)

// Code classifies a domain error for callers and for HTTP translation.
type Code string

const (
	// CodeValidation marks malformed or missing input (field level).
	CodeValidation Code = "validation"
	// CodeBadRequest marks a request body or parameter that cannot be parsed.
	CodeBadRequest Code = "bad_request"
	// CodeConflict marks a state-transition or uniqueness violation: already
	// decided, already occupied, duplicate pending request, duplicate unit.
	CodeConflict Code = "conflict"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeForbidden marks a caller whose role is insufficient for the action.
	CodeForbidden Code = "forbidden"
	// CodeUnauthorized marks a missing or invalid caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvariantViolation marks a broken domain invariant detected by a
	// model constructor or transition guard. Services convert these to
	// CodeValidation or CodeConflict before they reach a caller.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks a transient infrastructure failure that the
	// caller may retry with backoff.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout marks an operation aborted by deadline or cancellation.
	CodeTimeout Code = "timeout"
	// CodeInternal marks everything else; the wrapped cause stays server-side.
	CodeInternal Code = "internal"
)

// DomainError carries a code plus a user-actionable message. The wrapped cause
// is preserved for logs but never serialized to callers.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New builds a DomainError without a cause.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap builds a DomainError around an underlying cause.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// FromStore is the fallback translation for store errors the calling service
// has no specific handling for. Sentinels that keep one meaning across every
// operation map to their code; anything else stays server-side as internal.
//   - ErrInvalidReference: the write named a missing related row, which from
//     the caller's side is bad input
//   - ErrForbidden: the backend denied the statement
//   - ErrUnavailable: transient, the caller may retry
func FromStore(err error, message string) *DomainError {
	code := CodeInternal
	switch {
	case errors.Is(err, sentinel.ErrInvalidReference):
		code = CodeValidation
	case errors.Is(err, sentinel.ErrForbidden):
		code = CodeForbidden
	case errors.Is(err, sentinel.ErrUnavailable):
		code = CodeUnavailable
	}
	return Wrap(err, code, message)
}

// HasCode reports whether err (or anything it wraps) is a DomainError with the
// given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// MessageFor returns the user-facing message of a DomainError, or a generic
// fallback when err is not part of the taxonomy.
func MessageFor(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status used by every handler, so error
// envelopes stay consistent across features.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// outside the taxonomy.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
