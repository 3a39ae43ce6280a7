// Package provider contains the upstream market-data clients and the
// contract they satisfy.
//
// Each adapter normalizes its provider's native payload shape (epoch
// seconds, epoch milliseconds, local datetime strings, string-encoded
// prices) into the canonical models.Bar before returning; raw provider
// payload shapes never cross the adapter boundary. When an individual
// record in a multi-record response is missing a field, the adapter
// skips that record only and keeps the rest of the response.
//
// Adapters never sleep through a provider-reported rate limit. They
// surface it as *errors.RateLimitError carrying the advertised cooldown;
// whether and when to retry is the orchestrator's decision.
package provider

import (
	"context"
	"time"

	"github.com/FranklineMisango/AlgoForge/internal/models"
)

// Client is the contract every provider adapter satisfies.
type Client interface {
	// Name identifies the provider in logs, rate limits and reports.
	Name() string

	// Supports reports whether the adapter serves an asset class.
	Supports(class models.AssetClass) bool

	// RequestsPerMinute is the provider's advertised request budget,
	// enforced externally by the rate limiter registry.
	RequestsPerMinute() int

	// MaxWindow bounds the date range of a single FetchBars call for
	// the given resolution. Zero means the whole range fits one call.
	MaxWindow(res models.Resolution) time.Duration

	// FetchBars fetches bars for req.Symbol in [req.Start, req.End),
	// normalized to the canonical Bar shape in session time and sorted
	// ascending. A range with no data returns an empty slice, not an
	// error. Failures use the taxonomy in internal/errors.
	FetchBars(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error)
}
