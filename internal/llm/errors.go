package llm

import (
	"fmt"
	"time"
)

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}

// AuthError means the endpoint rejected the API key (401 or 403).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("llm authentication failed: %s", e.Message)
}

// RateLimitError is a 429 answer. RetryAfter is zero when the server did not
// say.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("llm rate limit exceeded: %s", e.Message)
}

// StreamError wraps a failure that happened after the stream had started.
type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm stream error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("llm stream error: %s", e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
