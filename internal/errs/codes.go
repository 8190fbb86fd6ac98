package errs

import "net/http"

// Code is a machine-readable error code sent in the "error" field of a response body.
type Code string

const (
	// Middleware.
	CodeNoToken      Code = "NO_TOKEN"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	CodeInvalidUser  Code = "INVALID_USER"
	CodeServerError  Code = "SERVER_ERROR"

	// Register.
	CodeMissingFields     Code = "MISSING_FIELDS"
	CodePasswordMismatch  Code = "PASSWORD_MISMATCH"
	CodePasswordTooShort  Code = "PASSWORD_TOO_SHORT"
	CodePasswordTooLong   Code = "PASSWORD_TOO_LONG"
	CodeUserExists        Code = "USER_EXISTS"
	CodeDuplicateEmail    Code = "DUPLICATE_EMAIL"
	CodeRegistrationError Code = "REGISTRATION_ERROR"

	// Login.
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeLoginError         Code = "LOGIN_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"

	// Refresh.
	CodeNoRefreshToken      Code = "NO_REFRESH_TOKEN"
	CodeInvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"

	// Transport.
	CodeInvalidBody Code = "INVALID_BODY"
	CodeNotFound    Code = "NOT_FOUND"
)

// HTTPStatus returns the status code a response carrying c is sent with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMissingFields, CodePasswordMismatch, CodePasswordTooShort, CodePasswordTooLong,
		CodeUserExists, CodeDuplicateEmail, CodeInvalidBody:
		return http.StatusBadRequest
	case CodeNoToken, CodeInvalidUser, CodeInvalidCredentials, CodeNoRefreshToken:
		return http.StatusUnauthorized
	case CodeInvalidToken, CodeTokenExpired, CodeInvalidRefreshToken:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a wire code and a user-facing message.
// Cause is kept for logs only and never sent to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
