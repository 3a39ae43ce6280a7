package models

import "time"

// SymbolRequest is the unit of work handed to the orchestrator: one
// symbol, its asset class and resolution, and the half-open date range
// [Start, End) to download. The orchestrator narrows Start/End to
// provider-safe chunk windows before each fetch.
type SymbolRequest struct {
	Symbol     string
	AssetClass AssetClass
	Resolution Resolution
	Start      time.Time
	End        time.Time
}

// Validate checks that the request describes a well-formed unit of work.
func (r *SymbolRequest) Validate() error {
	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}

	if !r.AssetClass.Valid() {
		return &ValidationError{Field: "asset_class", Message: "unknown asset class: " + string(r.AssetClass)}
	}

	if !r.Resolution.Valid() {
		return &ValidationError{Field: "resolution", Message: "unknown resolution: " + string(r.Resolution)}
	}

	if r.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "start time cannot be zero"}
	}

	if r.End.IsZero() {
		return &ValidationError{Field: "end", Message: "end time cannot be zero"}
	}

	if !r.End.After(r.Start) {
		return &ValidationError{Field: "end", Message: "end time must be after start time"}
	}

	return nil
}

// WithWindow returns a copy of the request narrowed to one chunk window.
func (r SymbolRequest) WithWindow(start, end time.Time) SymbolRequest {
	r.Start = start
	r.End = end
	return r
}
