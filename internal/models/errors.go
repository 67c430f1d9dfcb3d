package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents validation errors (4xx)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents authentication errors (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents rate limiting errors (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePlanLimit represents plan/tier gating errors (402)
	ErrorTypePlanLimit ErrorType = "plan_limit"
	// ErrorTypeProvider represents provider-specific errors (502)
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeUnsupported represents operations a provider does not implement (400)
	ErrorTypeUnsupported ErrorType = "unsupported_operation"
	// ErrorTypeTimeout represents timeout errors (504)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeCircuitBreaker represents circuit breaker errors (503)
	ErrorTypeCircuitBreaker ErrorType = "circuit_breaker"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Code          string    `json:"code,omitzero"`
	StatusCode    int       `json:"-"`
	Retryable     bool      `json:"retryable"`
	UpgradePrompt bool      `json:"upgrade_prompt,omitzero"`
	Cause         error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeUnsupported:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePlanLimit:
		return http.StatusPaymentRequired
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeCircuitBreaker:
		return http.StatusServiceUnavailable
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
	}
}

// NewNotFoundError creates a resource not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewRateLimitError creates a rate limit error carrying the policy message.
// upgradePrompt is set for free-tier users so the client can offer an upgrade.
func NewRateLimitError(message string, upgradePrompt bool) *AppError {
	return &AppError{
		Type:          ErrorTypeRateLimit,
		Message:       message,
		Code:          "RATE_LIMIT_EXCEEDED",
		StatusCode:    http.StatusTooManyRequests,
		Retryable:     true,
		UpgradePrompt: upgradePrompt,
	}
}

// NewPlanLimitError creates a plan gating error, e.g. a recording too long
// for an account without a personal API key
func NewPlanLimitError(message string) *AppError {
	return &AppError{
		Type:          ErrorTypePlanLimit,
		Message:       message,
		Code:          "UPGRADE_REQUIRED",
		StatusCode:    http.StatusPaymentRequired,
		Retryable:     false,
		UpgradePrompt: true,
	}
}

// NewProviderError creates a provider error
func NewProviderError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       fmt.Sprintf("PROVIDER_%s_ERROR", provider),
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewUnsupportedOperationError creates an error for an operation a provider
// deliberately does not implement
func NewUnsupportedOperationError(provider, operation string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnsupported,
		Message:    fmt.Sprintf("provider %s does not support %s", provider, operation),
		Code:       "UNSUPPORTED_OPERATION",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("operation %s timed out", operation),
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewCircuitBreakerError creates a circuit breaker error
func NewCircuitBreakerError(provider string) *AppError {
	return &AppError{
		Type:       ErrorTypeCircuitBreaker,
		Message:    fmt.Sprintf("provider %s is currently unavailable (circuit breaker open)", provider),
		Code:       "CIRCUIT_BREAKER_OPEN",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:          appErr.Type,
			Message:       appErr.Message,
			Code:          appErr.Code,
			StatusCode:    appErr.GetStatusCode(),
			Retryable:     appErr.Retryable,
			UpgradePrompt: appErr.UpgradePrompt,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
