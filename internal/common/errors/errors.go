// Package errors provides the standardized error taxonomy for outbound
// provider calls and the circuit breaker.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindCancelled     Kind = "CANCELLED"
	KindTimeout       Kind = "TIMEOUT"
	KindCircuitOpen   Kind = "CIRCUIT_OPEN"
	KindServer        Kind = "PROVIDER_SERVER_ERROR"
	KindClient        Kind = "PROVIDER_CLIENT_ERROR"
	KindAuthorization Kind = "PROVIDER_AUTHORIZATION_ERROR"
)

// ProviderError is a structured failure from an outbound dependency. The
// Retryable flag is the capability the circuit breaker consults.
type ProviderError struct {
	Kind       Kind
	Source     string
	Message    string
	Details    string
	Retryable  bool
	RetryAfter time.Duration // remaining wait, set on circuit-open errors
	Timestamp  time.Time
	cause      error
}

func (e *ProviderError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("ProviderError[%s] %s: %s", e.Kind, e.Source, e.Message)
	}
	return fmt.Sprintf("ProviderError[%s]: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.cause
}

// NewServerError creates a retryable server-class/transient provider error.
func NewServerError(source string, err error) *ProviderError {
	return &ProviderError{
		Kind:      KindServer,
		Source:    source,
		Message:   "provider server error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewClientError creates a non-retryable client/http-class provider error.
func NewClientError(source string, err error) *ProviderError {
	return &ProviderError{
		Kind:      KindClient,
		Source:    source,
		Message:   "provider rejected the request",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAuthorizationError creates a non-retryable authorization error. It
// signals misconfigured credentials, not a transient outage.
func NewAuthorizationError(source string, details string) *ProviderError {
	return &ProviderError{
		Kind:      KindAuthorization,
		Source:    source,
		Message:   "provider authorization failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates a retryable timeout error, distinct from
// caller-driven cancellation.
func NewTimeoutError(source string) *ProviderError {
	return &ProviderError{
		Kind:      KindTimeout,
		Source:    source,
		Message:   "provider call exceeded timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCircuitOpenError creates a non-retryable fail-fast error carrying the
// remaining wait until the circuit allows a trial call.
func NewCircuitOpenError(breaker string, remaining time.Duration) *ProviderError {
	return &ProviderError{
		Kind:       KindCircuitOpen,
		Source:     breaker,
		Message:    fmt.Sprintf("circuit open, retry in %s", remaining),
		Retryable:  false,
		RetryAfter: remaining,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCancellationError wraps a caller-driven cancellation.
func NewCancellationError(source string, err error) *ProviderError {
	return &ProviderError{
		Kind:      KindCancelled,
		Source:    source,
		Message:   "operation cancelled by caller",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsCancellation reports whether err is a caller-driven cancellation.
// Cancellations are never retried and never counted as circuit failures.
func IsCancellation(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind == KindCancelled
	}
	return false
}

// IsCircuitOpen reports whether err is a fail-fast circuit-open error.
func IsCircuitOpen(err error) bool {
	var pe *ProviderError
	return stderrors.As(err, &pe) && pe.Kind == KindCircuitOpen
}

// IsRetriable reports whether a failed call may be retried. Cancellations are
// not; typed errors carry their own capability; untyped errors default to
// retriable.
func IsRetriable(err error) bool {
	if IsCancellation(err) {
		return false
	}
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
