package transport

import (
	"fmt"
)

// ErrorType classifies transport errors for routing and retry decisions.
type ErrorType string

const (
	// ErrorTypeConnection indicates network or DNS errors
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeTimeout indicates request timeout or deadline exceeded
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeInvalidReq indicates request validation error (invalid method, URL, option, etc.)
	ErrorTypeInvalidReq ErrorType = "invalid_request"

	// ErrorTypeCancelled indicates context was cancelled
	ErrorTypeCancelled ErrorType = "cancelled"

	// ErrorTypeDecode indicates a response body that could not be decoded
	ErrorTypeDecode ErrorType = "decode"

	// ErrorTypeResponseTooLarge indicates a response body over the configured limit
	ErrorTypeResponseTooLarge ErrorType = "response_too_large"
)

// TransportError represents a failure to obtain or decode a response.
// HTTP error statuses are not TransportErrors; they are returned as Results.
type TransportError struct {
	// Type classifies the error for routing and retry decisions
	Type ErrorType

	// Message is a user-facing error message with credentials redacted
	Message string

	// Retryable indicates whether the error is retryable
	Retryable bool

	// Cause is the underlying error
	// May contain sensitive data - use Message for user-facing errors
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error should be retried.
func (e *TransportError) IsRetryable() bool {
	return e.Retryable
}

// ErrorType returns the error classification as a string.
func (e *TransportError) ErrorType() string {
	return string(e.Type)
}

// IsType returns true if the error is of the given type.
func (e *TransportError) IsType(t ErrorType) bool {
	return e.Type == t
}

func invalidRequest(format string, args ...any) *TransportError {
	msg := fmt.Sprintf(format, args...)
	return &TransportError{
		Type:    ErrorTypeInvalidReq,
		Message: "invalid request: " + msg,
		Cause:   fmt.Errorf("%s", msg),
	}
}
