package errors

import (
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes group failures by how the caller should react.
const (
	CodeValidation        = "E100"
	CodeInsufficientFunds = "E110"
	CodeNotFound          = "E120"
	CodePrecondition      = "E130"
	CodeDatabase          = "E200"
	CodeUpstream          = "E300"
	CodeState             = "E400"
	CodeRateLimit         = "E500"
)

type AppError struct {
	Code        string
	Reason      string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// HTTPStatus maps the error code onto a response status.
func (e *AppError) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}

	if e.Reason == ErrUnauthenticated.Reason {
		return http.StatusUnauthorized
	}

	switch e.Code {
	case CodeValidation, CodeInsufficientFunds:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePrecondition, CodeState:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusServiceUnavailable
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Wrap returns a copy of base with detail appended to the message.
// errors.Is(result, base) holds.
func Wrap(base *AppError, format string, args ...any) *AppError {
	if base == nil {
		return nil
	}

	detail := fmt.Sprintf(format, args...)
	wrapped := *base
	wrapped.Message = base.Message + ": " + detail
	wrapped.UserMessage = detail
	wrapped.cause = base

	return &wrapped
}

func NewValidationError(reason, msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Reason:      reason,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewInsufficientFundsError(reason, msg string) *AppError {
	return &AppError{
		Code:        CodeInsufficientFunds,
		Reason:      reason,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewNotFoundError(reason, msg string) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Reason:      reason,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewPreconditionError(reason, msg string) *AppError {
	return &AppError{
		Code:        CodePrecondition,
		Reason:      reason,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Reason:      "database_error",
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeUpstream,
		Reason:      "upstream_unavailable",
		Message:     fmt.Sprintf("External API error: %s", apiName),
		UserMessage: "Service temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Reason:      "state_conflict",
		Message:     msg,
		UserMessage: "Another operation is in progress, please retry",
		Severity:    SeverityMedium,
		Retryable:   true,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Reason:      "rate_limited",
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
