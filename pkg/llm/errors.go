package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// statusCodePattern finds an HTTP status standing on its own, so "4000
// tokens" is not a 400.
var statusCodePattern = regexp.MustCompile(`\b(400|401|403|404|429|500|502|503|504)\b`)

// ErrorType classifies gateway failures.
type ErrorType string

const (
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeRateLimited  ErrorType = "rate_limit"
	ErrorTypeModel        ErrorType = "model_not_found"
	ErrorTypeEndpoint     ErrorType = "endpoint"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnconfigured ErrorType = "unconfigured"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Provider   string    // Provider name if known
	Model      string    // Model name if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// unconfigured reports a provider that cannot be called as configured.
func unconfigured(provider, model, message string) *Error {
	return &Error{
		Type:     ErrorTypeUnconfigured,
		Message:  message,
		Provider: provider,
		Model:    model,
	}
}

// classifyStatus maps a provider HTTP status to an error, or returns nil when
// the status alone says nothing.
func classifyStatus(status int, cause error) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", Cause: cause, StatusCode: status}
	case status == 404:
		return &Error{Type: ErrorTypeModel, Message: "model or endpoint not found", Cause: cause, StatusCode: status}
	case status == 429:
		return &Error{Type: ErrorTypeRateLimited, Message: "rate limited", Cause: cause, StatusCode: status}
	case status >= 500:
		return &Error{Type: ErrorTypeEndpoint, Message: "server error", Cause: cause, StatusCode: status}
	}
	return nil
}

// ClassifyError categorizes an error and returns a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, "request timeout", err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	if m := statusCodePattern.FindString(errStr); m != "" {
		statusCode, _ = strconv.Atoi(m)
	}

	switch {
	case statusCode == 401 || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid x-api-key"):
		llmErr = NewError(ErrorTypeAuth, "authentication failed", err)

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		llmErr = NewError(ErrorTypeModel, "model not found", err)

	case statusCode == 404:
		llmErr = NewError(ErrorTypeEndpoint, "endpoint not found", err)

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		llmErr = NewError(ErrorTypeEndpoint, "connection failed", err)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		llmErr = NewError(ErrorTypeTimeout, "request timeout", err)

	case statusCode == 429 || strings.Contains(lower, "rate limit"):
		llmErr = NewError(ErrorTypeRateLimited, "rate limited", err)

	case statusCode >= 500:
		llmErr = NewError(ErrorTypeEndpoint, "server error", err)

	default:
		llmErr = NewError(ErrorTypeUnknown, "llm error", err)
	}

	llmErr.StatusCode = statusCode
	return llmErr
}

// annotate fills provider context on a classified error.
func annotate(err error, provider, model string) *Error {
	llmErr := ClassifyError(err)
	if llmErr.Provider == "" {
		llmErr.Provider = provider
	}
	if llmErr.Model == "" {
		llmErr.Model = model
	}
	return llmErr
}
