package carrier

import (
	"errors"
	"fmt"
)

// APIError is returned for any non-success outcome of a carrier call.
type APIError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s api error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s api error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is matches another *APIError by code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewAPIError creates a new APIError.
func NewAPIError(carrier, code, message string) *APIError {
	return &APIError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *APIError) WithRetryable(retryable bool) *APIError {
	e.Retryable = retryable
	return e
}

// CodeAuth is the code of every login failure.
const CodeAuth = "AUTH_ERROR"

// NewAuthError reports a failed login. The upstream message is kept when
// there is one, and the chain always contains ErrAuthenticationFailed.
func NewAuthError(carrier, message string, cause error) *APIError {
	if message == "" {
		message = ErrAuthenticationFailed.Error()
	}
	if cause == nil {
		cause = ErrAuthenticationFailed
	} else {
		cause = fmt.Errorf("%w: %w", ErrAuthenticationFailed, cause)
	}
	return NewAPIError(carrier, CodeAuth, message).WithCause(cause)
}

// Sentinel errors for common carrier scenarios.
var (
	// ErrAuthenticationFailed indicates the carrier login failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrServiceUnavailable indicates the carrier is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrShipmentNotFound indicates the carrier does not know the shipment.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrNoCourierAvailable indicates a serviceability query returned no options.
	ErrNoCourierAvailable = errors.New("no courier available")

	// ErrAWBNotAssigned indicates the carrier accepted the request but returned no AWB.
	ErrAWBNotAssigned = errors.New("awb not assigned")
)

// IsRetryable reports whether err is worth re-invoking.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// IsAuthError reports whether err came from a failed login.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}
