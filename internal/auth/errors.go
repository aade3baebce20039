package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrNoCredential = errors.New("device credential not found")
	ErrNoSession    = errors.New("device session not found")
)

// Error codes carried by *Error.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInvalidDeviceKey       = "INVALID_DEVICE_KEY"
	CodeInvalidSignatureFormat = "INVALID_SIGNATURE_FORMAT"
)

// Error is an authentication failure with the HTTP status and stable code
// the caller should see. Message is safe to return to clients; Err is the
// internal cause and is only logged.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return "authentication failed: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func badRequest(message string, cause error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message, Err: cause}
}

func unauthorized(message string, cause error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message, Err: cause}
}
