// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors; the saga stage boundary turns them
// into operator-facing notes and the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindExternal indicates a failed call to an external system.
	KindExternal
	// KindPrecondition indicates a saga stage ran without a value it depends on.
	KindPrecondition
)

// Stable error codes surfaced on saga error notes.
const (
	CodeMissingTemplate    = "MISSING_TEMPLATE_ID"
	CodeMissingMatterName  = "MISSING_MATTER_NAME"
	CodeInvalidManifest    = "INVALID_MANIFEST"
	CodeMissingConfig      = "MISSING_CONFIG"
	CodeMissingMatter      = "MISSING_MATTER_ID"
	CodeMissingManifest    = "MISSING_MANIFEST"
	CodeProvisioningFailed = "PARTICIPANT_PROVISIONING_FAILED"
	CodeExternalCallFailed = "EXTERNAL_CALL_FAILED"
	CodeJobNotFound        = "JOB_NOT_FOUND"
	CodeSagaNotFound       = "SAGA_NOT_FOUND"
	CodeStatusConflict     = "STATUS_CONFLICT"
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind        Kind
	Code        string // Stable machine-readable code (optional)
	Message     string
	UserMessage string      // Pre-written operator-facing text (optional)
	Op          string      // Operation that failed (optional)
	Err         error       // Underlying error (optional)
	Details     interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict, KindPrecondition:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithCode returns the error with a stable code set.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithUserMessage returns the error with an operator-facing message set.
func (e *Error) WithUserMessage(msg string) *Error {
	e.UserMessage = msg
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error (e.g., duplicate resource).
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// External creates an error for a failed external-system call.
func External(message string, err error) *Error {
	return Wrap(KindExternal, message, err).WithCode(CodeExternalCallFailed)
}

// Precondition creates an error for a missing value a stage depends on.
func Precondition(code, message string) *Error {
	return New(KindPrecondition, message).WithCode(code)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is present.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetCode extracts the stable code from an error chain, or "".
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
