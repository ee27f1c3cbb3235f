package executor

import (
	"fmt"
	"time"
)

// ProviderError is a general upstream failure carrying the provider id,
// the HTTP status when one was received, and the underlying cause.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TimeoutError marks an attempt that exceeded the per-request deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// ParseError marks an upstream response whose bytes could not be
// decoded, such as a corrupt EventStream frame.
type ParseError struct {
	Provider    string
	RawResponse string
	Cause       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError marks a failure in the middle of a streaming response,
// after headers were already committed downstream.
type StreamError struct {
	Provider string
	Cause    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("provider %q stream error: %v", e.Provider, e.Cause)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
