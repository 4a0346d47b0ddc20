package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the backend rejected the credential (401/403).
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeVerification indicates a wrong or expired one-time code.
	ErrCodeVerification ErrorCode = "verification"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUnavailable indicates a transient upstream failure (network error, 5xx).
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeRateLimited indicates the upstream throttled the request.
	ErrCodeRateLimited ErrorCode = "rate_limited"
	// ErrCodeMisconfigured indicates required identity configuration is missing or invalid.
	ErrCodeMisconfigured ErrorCode = "misconfigured"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Status is the upstream HTTP status when the error came from a backend response (optional)
	Status int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// Verification creates a new Verification error. The message is shown to the user as-is.
func Verification(message string) *AppError {
	return &AppError{Code: ErrCodeVerification, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Unavailable creates a new Unavailable error.
func Unavailable(message string) *AppError {
	return &AppError{Code: ErrCodeUnavailable, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Misconfigured creates a new Misconfigured error.
func Misconfigured(message string) *AppError {
	return &AppError{Code: ErrCodeMisconfigured, Message: message}
}

// Misconfiguredf creates a new Misconfigured error with formatted message.
func Misconfiguredf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeMisconfigured, Message: fmt.Sprintf(format, args...)}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
// Context cancellation is reported as ErrCodeCanceled regardless of code.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		code = ErrCodeCanceled
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// FromStatus builds an AppError for an upstream HTTP status code.
func FromStatus(status int, message string) *AppError {
	var code ErrorCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodeUnauthorized
	case status == http.StatusNotFound:
		code = ErrCodeNotFound
	case status == http.StatusTooManyRequests:
		code = ErrCodeRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = ErrCodeValidation
	case status >= 500:
		code = ErrCodeUnavailable
	default:
		code = ErrCodeInternal
	}
	return &AppError{Code: code, Message: message, Status: status}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnauthorized checks if an error is an authentication rejection.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsVerification checks if an error is a Verification error.
func IsVerification(err error) bool {
	return isCode(err, ErrCodeVerification)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsUnavailable checks if an error is an Unavailable error.
func IsUnavailable(err error) bool {
	return isCode(err, ErrCodeUnavailable)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsMisconfigured checks if an error is a Misconfigured error.
func IsMisconfigured(err error) bool {
	return isCode(err, ErrCodeMisconfigured)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// HTTPStatus maps an error to the status code the local HTTP surface should answer with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeVerification, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUnavailable:
		return http.StatusBadGateway
	case ErrCodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
