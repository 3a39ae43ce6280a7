// Package ratelimit serializes outbound calls so each provider observes
// its advertised request budget. One limiter per provider; calls to
// different providers never constrain each other.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Registry holds one token-bucket limiter per provider. A limiter with
// burst 1 and a refill interval of 60s/requestsPerMinute enforces the
// minimum spacing between consecutive calls: 5 requests per minute
// yields a 12 second delay.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRegistry returns an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*rate.Limiter)}
}

// Register installs the limiter for a provider. Re-registering replaces
// the previous budget.
func (r *Registry) Register(provider string, requestsPerMinute int) error {
	if requestsPerMinute <= 0 {
		return fmt.Errorf("ratelimit: %s: requests per minute must be positive, got %d", provider, requestsPerMinute)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	return nil
}

// Wait blocks until the provider's budget allows another call, or the
// context is cancelled. Providers that were never registered fail fast
// rather than running unthrottled.
func (r *Registry) Wait(ctx context.Context, provider string) error {
	r.mu.Lock()
	limiter, ok := r.limiters[provider]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("ratelimit: no limiter registered for provider %s", provider)
	}

	return limiter.Wait(ctx)
}

// Delay returns the enforced minimum spacing between consecutive calls
// for a provider, zero if the provider is unknown.
func (r *Registry) Delay(provider string) time.Duration {
	r.mu.Lock()
	limiter, ok := r.limiters[provider]
	r.mu.Unlock()

	if !ok {
		return 0
	}

	return time.Duration(float64(time.Second) / float64(limiter.Limit()))
}
