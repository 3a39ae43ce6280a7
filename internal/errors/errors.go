// Package errors defines the pipeline error taxonomy and retry
// classification shared by provider adapters and the orchestrator.
//
// The taxonomy maps directly onto handling policy: NetworkError and
// server-side ProviderError are retried for the current chunk up to a
// bounded attempt count, RateLimitError defers the chunk until the
// provider's cooldown elapses, DataError drops the offending record or
// chunk without retrying, and FilesystemError abandons the remaining
// chunks of the owning symbol.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NetworkError is a transient transport failure: connection refused or
// reset, DNS failure, timeout. Retried up to the configured bound.
type NetworkError struct {
	Provider string
	Op       string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error during %s: %v", e.Provider, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is a request failure reported by the provider itself.
// Server-side errors (5xx) are retryable, client-side errors are not.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: provider error: %s", e.Provider, e.Message)
}

// Temporary reports whether the provider error is worth retrying.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == 0
}

// RateLimitError means the provider rejected the call for exceeding its
// request budget. The chunk is deferred, not failed: the orchestrator
// waits out Cooldown and re-queues it for a later retry pass.
type RateLimitError struct {
	Provider string
	Cooldown time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, cooldown %s", e.Provider, e.Cooldown)
}

// DataError marks a malformed payload or a validation failure. Retrying
// cannot change malformed data, so these are never retried.
type DataError struct {
	Provider string
	Message  string
}

func (e *DataError) Error() string {
	if e.Provider == "" {
		return "data error: " + e.Message
	}
	return fmt.Sprintf("%s: data error: %s", e.Provider, e.Message)
}

// FilesystemError wraps a failed archive write or directory creation.
// Fatal for the owning symbol's remaining chunks.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error at %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Retryable reports whether the chunk that produced err should be
// retried in place. Rate limits are excluded here: they are deferred,
// not retried, and must be tested with CooldownOf.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Temporary()
	}

	return false
}

// CooldownOf extracts the advertised cooldown from a rate-limit error.
// The second return is false when err is not a RateLimitError.
func CooldownOf(err error) (time.Duration, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.Cooldown, true
	}
	return 0, false
}

// RetryPolicy bounds in-place chunk retries: at most MaxAttempts tries
// with exponential backoff between them.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy mirrors the fetch retry bound used throughout the
// pipeline: three attempts, 500ms initial delay, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// Backoff builds the backoff schedule for one chunk's retry loop.
func (p RetryPolicy) Backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
}
