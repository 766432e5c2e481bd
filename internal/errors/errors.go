// Package errors provides the categorized errors surfaced by the notes client.
//
// Every failure that leaves the client is an *Error carrying a Code. Callers branch
// on the category, never on message text:
//
//	// In a screen - offer "upgrade" instead of "retry" for quota failures
//	if errors.Is(err, errors.ErrQuota) {
//	    showUpgrade(err.(*errors.Error).UserMessage())
//	}
//
//	// Or switch on the code directly
//	var clientErr *errors.Error
//	if errors.As(err, &clientErr) {
//	    switch clientErr.Code {
//	    case errors.CodeAuthentication:
//	        showLogin()
//	    case errors.CodeTransport:
//	        showRetry(clientErr.UserMessage())
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error category.
type Code string

// Error codes used throughout the client.
const (
	CodeAuthentication Code = "AUTHENTICATION"
	CodeAuthorization  Code = "AUTHORIZATION"
	CodeValidation     Code = "VALIDATION"
	CodeQuota          Code = "QUOTA"
	CodeTransport      Code = "TRANSPORT"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeInternal       Code = "INTERNAL"
)

// genericMessages are shown when the server gave no reason.
var genericMessages = map[Code]string{
	CodeAuthentication: "Your session has expired. Please sign in again.",
	CodeAuthorization:  "You are not allowed to perform this action.",
	CodeValidation:     "Please check the highlighted fields.",
	CodeQuota:          "Your plan's note limit has been reached. Upgrade to Pro for unlimited notes.",
	CodeTransport:      "Could not reach the server. Please try again.",
	CodeNotFound:       "The item no longer exists.",
	CodeConflict:       "That already exists.",
	CodeInternal:       "Something went wrong.",
}

// Retryable reports whether the user may safely retry the same intent by hand.
func (c Code) Retryable() bool {
	return c == CodeTransport
}

// Error is a categorized client error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// Status is the HTTP status of the response, 0 when none was received.
	Status int `json:"status,omitempty"`
	cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// UserMessage returns the server's literal reason when one was given,
// otherwise a generic message for the category.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := genericMessages[e.Code]; ok {
		return msg
	}
	return genericMessages[CodeInternal]
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Status:  e.Status,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Status:  e.Status,
		cause:   err,
	}
}

// WithStatus records the HTTP status that produced the error.
func (e *Error) WithStatus(status int) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Status:  status,
		cause:   e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrAuthentication = &Error{Code: CodeAuthentication, Message: "authentication required"}
	ErrAuthorization  = &Error{Code: CodeAuthorization, Message: "forbidden"}
	ErrValidation     = &Error{Code: CodeValidation, Message: "validation error"}
	ErrQuota          = &Error{Code: CodeQuota, Message: "note limit reached"}
	ErrTransport      = &Error{Code: CodeTransport, Message: "transport error"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict       = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal       = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// Authentication creates an authentication error.
func Authentication(msg string) *Error {
	return &Error{Code: CodeAuthentication, Message: msg}
}

// Authorization creates an authorization error.
func Authorization(msg string) *Error {
	return &Error{Code: CodeAuthorization, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Quota creates a quota error.
func Quota(msg string) *Error {
	return &Error{Code: CodeQuota, Message: msg}
}

// Transport creates a transport error wrapping the network failure.
func Transport(msg string, err error) *Error {
	return &Error{Code: CodeTransport, Message: msg, cause: err}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the category of err, or CodeInternal for uncategorized errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return genericMessages[CodeInternal]
}

// FromStatus maps a non-success HTTP status to a category.
// Quota depends on the intent and is never derived from status alone.
func FromStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized:
		return CodeAuthentication
	case status == http.StatusForbidden:
		return CodeAuthorization
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status >= http.StatusInternalServerError:
		return CodeTransport
	default:
		return CodeInternal
	}
}
