package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error is a classified provider failure.
type Error struct {
	Message   string
	Timeout   bool
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm: %s: %v", e.Message, e.Cause)
	}
	return "llm: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// ClassifyError wraps a provider error with timeout and retryability flags.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	lower := strings.ToLower(err.Error())

	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") {
		return &Error{Message: "request timeout", Timeout: true, Retryable: true, Cause: err}
	}
	if strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") {
		return &Error{Message: "rate limited", Retryable: true, Cause: err}
	}
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		return &Error{Message: "connection failed", Retryable: true, Cause: err}
	}
	if strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") {
		return &Error{Message: "authentication failed", Cause: err}
	}

	return &Error{Message: "provider error", Cause: err}
}

// IsTimeout reports whether the error was classified as a timeout.
func IsTimeout(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Timeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable reports whether the failure is transient. Satisfies the retry
// package's RetryableError interface.
func (e *Error) IsRetryable() bool { return e.Retryable }
