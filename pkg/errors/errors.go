// Package errors defines the structured error taxonomy for the Warden
// identity core. Every failure crossing a component boundary carries a
// Code so the HTTP layer can map it to a status and external callers
// never learn more than they should.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for propagation and status mapping.
type Code string

const (
	// CodeUnauthenticated covers missing, malformed, invalid or expired
	// credentials. External callers are deliberately not told which.
	CodeUnauthenticated Code = "unauthenticated"

	// CodeForbidden means the caller is authenticated but lacks a
	// required role or permission.
	CodeForbidden Code = "forbidden"

	// CodeMFARequired means the caller is authenticated but the active
	// policy domain requires a second factor the session does not attest.
	CodeMFARequired Code = "mfa_required"

	// CodeNoActiveKey signals a key-lifecycle invariant violation: no
	// signing key is active. Must not occur after initialization.
	CodeNoActiveKey Code = "no_active_key"

	// CodeKeyNotFound means a key id names no known key.
	CodeKeyNotFound Code = "key_not_found"

	// CodeAuthorityUnavailable covers network failures and timeouts
	// talking to the upstream authority. Distinct from unauthenticated
	// so callers can retry instead of rejecting the credential.
	CodeAuthorityUnavailable Code = "authority_unavailable"

	// CodePersistenceUnavailable covers key-store read/write failures.
	// Degraded, not fatal: the key manager falls back to memory.
	CodePersistenceUnavailable Code = "persistence_unavailable"

	CodeInvalidArgument Code = "invalid_argument"
	CodeInternal        Code = "internal"
)

// Error is the structured error type used across the service.
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]any
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error classification.
func (e *Error) Code() Code { return e.code }

// Unwrap supports errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// WithMetadata attaches context for logging and hooks; never rendered
// to external callers.
func (e *Error) WithMetadata(key string, value any) *Error {
	if e.metadata == nil {
		e.metadata = make(map[string]any)
	}
	e.metadata[key] = value
	return e
}

// Metadata returns the attached metadata, possibly nil.
func (e *Error) Metadata() map[string]any { return e.metadata }

// New creates a structured error.
func New(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the Code from an error chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status the HTTP layer should emit.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodeMFARequired:
		return http.StatusForbidden
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeAuthorityUnavailable, CodePersistenceUnavailable:
		return http.StatusServiceUnavailable
	default:
		// no_active_key and key_not_found are defects, not routine
		// conditions, once initialization has succeeded.
		return http.StatusInternalServerError
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// IsUnauthenticated reports whether err is a credential failure.
func IsUnauthenticated(err error) bool { return IsCode(err, CodeUnauthenticated) }

// IsAuthorityUnavailable reports whether err is an authority outage,
// which must never be conflated with a rejected credential.
func IsAuthorityUnavailable(err error) bool { return IsCode(err, CodeAuthorityUnavailable) }

// Response is the JSON error body rendered by the HTTP layer.
type Response struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ToResponse converts an error into its external JSON form. Credential
// failures collapse to a generic description so expired and never-valid
// tokens are indistinguishable to callers.
func ToResponse(err error) *Response {
	code := CodeOf(err)
	switch code {
	case CodeUnauthenticated:
		return &Response{Error: string(code), ErrorDescription: "authentication required"}
	case CodeForbidden:
		return &Response{Error: string(code), ErrorDescription: "insufficient privileges"}
	case CodeMFARequired:
		return &Response{Error: string(code), ErrorDescription: "multi-factor authentication required"}
	case CodeAuthorityUnavailable:
		return &Response{Error: string(code), ErrorDescription: "identity authority unavailable"}
	case CodeInvalidArgument:
		return &Response{Error: string(code), ErrorDescription: err.Error()}
	default:
		return &Response{Error: "internal", ErrorDescription: "an unexpected error occurred"}
	}
}
