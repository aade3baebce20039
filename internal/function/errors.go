package function

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/venue-core/internal/auth"
)

// Error codes used across functions. Resource handlers add their own
// ({RESOURCE}_{OP}_ERROR) for storage failures.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeMissingID        = "MISSING_ID"
	CodeNotImplemented   = "NOT_IMPLEMENTED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
)

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// APIError is a failure with the status, stable code and message a caller
// should see. Handlers return it as an error; the router renders it.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	// Err is the internal cause. It is logged, never rendered.
	Err error
}

// NewError creates an APIError.
func NewError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of e wrapping err.
func (e *APIError) WithCause(err error) *APIError {
	cp := *e
	cp.Err = err
	return &cp
}

// Envelope returns the wire form of e.
func (e *APIError) Envelope() ErrorEnvelope {
	return ErrorEnvelope{Status: e.Status, Code: e.Code, Message: e.Message, Details: e.Details}
}

// BadRequest returns a 400 BAD_REQUEST error.
func BadRequest(message string) *APIError {
	return NewError(http.StatusBadRequest, CodeBadRequest, message)
}

// Unauthorized returns a 401 UNAUTHORIZED error.
func Unauthorized(message string) *APIError {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden returns a 403 FORBIDDEN error.
func Forbidden(message string) *APIError {
	return NewError(http.StatusForbidden, CodeForbidden, message)
}

// NotFound returns a 404 NOT_FOUND error.
func NotFound(message string) *APIError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// Conflict returns a 409 CONFLICT error.
func Conflict(message string) *APIError {
	return NewError(http.StatusConflict, CodeConflict, message)
}

// ValidationError returns a 400 VALIDATION_ERROR listing every problem.
func ValidationError(problems []string) *APIError {
	return NewError(http.StatusBadRequest, CodeValidation, "Validation failed").
		WithDetails(map[string]any{"errors": problems})
}

// InternalError returns a 500 INTERNAL_ERROR.
func InternalError(message string) *APIError {
	return NewError(http.StatusInternalServerError, CodeInternal, message)
}

// AsAPIError classifies err into the error a caller should see.
//
// *APIError passes through; *auth.Error and *InvalidPayloadError keep
// their status and code; auth.ErrForbidden becomes 403. Anything else is a
// 500 INTERNAL_ERROR with the error text as detail.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return &APIError{Status: authErr.Status, Code: authErr.Code, Message: authErr.Message, Err: err}
	}

	var payloadErr *InvalidPayloadError
	if errors.As(err, &payloadErr) {
		return &APIError{Status: http.StatusBadRequest, Code: CodeInvalidPayload, Message: payloadErr.Error(), Err: err}
	}

	if errors.Is(err, auth.ErrForbidden) {
		return Forbidden("Insufficient permissions").WithCause(err)
	}

	return InternalError("Internal server error").
		WithDetails(map[string]any{"error": err.Error()}).
		WithCause(err)
}
