// Package pipeline orchestrates the fetch -> validate -> encode -> write
// flow per symbol and chunk, with bounded retries, rate-limit deferral
// and failure isolation.
//
// Each symbol moves through Pending -> Fetching -> Validating ->
// Encoding -> Writing -> Done, with Failed reachable from any of the
// four working states. A failed chunk is recorded and the next chunk of
// the same symbol proceeds; a failed symbol is recorded and the next
// symbol proceeds; a filesystem write failure abandons the remaining
// chunks of its symbol only. The run's single surfaced summary is the
// RunReport; exit-code policy belongs to the caller.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranklineMisango/AlgoForge/internal/calendar"
	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/lean"
	"github.com/FranklineMisango/AlgoForge/internal/models"
	"github.com/FranklineMisango/AlgoForge/internal/provider"
	"github.com/FranklineMisango/AlgoForge/internal/ratelimit"
	"github.com/FranklineMisango/AlgoForge/internal/validator"
)

// State is the per-symbol processing state.
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateValidating State = "validating"
	StateEncoding   State = "encoding"
	StateWriting    State = "writing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// SymbolFailure records why a symbol produced no usable output.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// RunReport is the single summary of a pipeline run: which symbols
// succeeded, which failed and why. It carries no exit-code decision.
type RunReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Succeeded  []string        `json:"succeeded"`
	Failed     []SymbolFailure `json:"failed"`
}

// Config tunes orchestrator behavior.
type Config struct {
	// Retry bounds transient fetch failures per chunk.
	Retry apperrors.RetryPolicy

	// RateLimitPasses bounds how many deferred-retry passes a symbol's
	// rate-limited chunks get before they are marked failed.
	RateLimitPasses int
}

// DefaultConfig returns the orchestration defaults.
func DefaultConfig() Config {
	return Config{
		Retry:           apperrors.DefaultRetryPolicy(),
		RateLimitPasses: 2,
	}
}

// Orchestrator drives the pipeline across providers and symbols.
// Distinct providers run as independent parallel pipelines; within one
// provider, symbols and chunks are strictly sequential so the rate
// limiter is respected and no archive key is ever written concurrently.
type Orchestrator struct {
	cfg       Config
	providers []provider.Client
	limits    *ratelimit.Registry
	validator *validator.BarValidator
	encoder   *lean.Encoder
	writer    *lean.ArchiveWriter
	logger    *slog.Logger
}

// New wires an orchestrator. Every provider must be registered with the
// rate-limit registry before Run is called.
func New(
	providers []provider.Client,
	limits *ratelimit.Registry,
	v *validator.BarValidator,
	encoder *lean.Encoder,
	writer *lean.ArchiveWriter,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:       cfg,
		providers: providers,
		limits:    limits,
		validator: v,
		encoder:   encoder,
		writer:    writer,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run processes every request and returns the run report. Requests are
// routed to the provider serving their asset class; requests no provider
// can serve are reported failed. Run only returns an error for context
// cancellation, never for symbol failures.
func (o *Orchestrator) Run(ctx context.Context, requests []models.SymbolRequest) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	o.logger.Info("starting pipeline run", "run_id", report.RunID, "requests", len(requests))

	buckets := make(map[provider.Client][]models.SymbolRequest)
	for _, req := range requests {
		client := o.route(req.AssetClass)
		if client == nil {
			report.Failed = append(report.Failed, SymbolFailure{
				Symbol: req.Symbol,
				Reason: fmt.Sprintf("no provider serves asset class %s", req.AssetClass),
			})
			continue
		}
		buckets[client] = append(buckets[client], req)
	}

	results := make([][]symbolResult, 0, len(buckets))
	g, gctx := errgroup.WithContext(ctx)

	for client, reqs := range buckets {
		client, reqs := client, reqs
		slot := make([]symbolResult, len(reqs))
		results = append(results, slot)

		g.Go(func() error {
			for i, req := range reqs {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slot[i] = o.processSymbol(gctx, client, req)
			}
			return nil
		})
	}

	err := g.Wait()

	for _, slot := range results {
		for _, res := range slot {
			if res.symbol == "" {
				continue
			}
			if res.failure == nil {
				report.Succeeded = append(report.Succeeded, res.symbol)
			} else {
				report.Failed = append(report.Failed, *res.failure)
			}
		}
	}

	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Symbol < report.Failed[j].Symbol })

	report.FinishedAt = time.Now().UTC()
	o.logger.Info("pipeline run finished",
		"run_id", report.RunID,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) route(class models.AssetClass) provider.Client {
	for _, client := range o.providers {
		if client.Supports(class) {
			return client
		}
	}
	return nil
}

type symbolResult struct {
	symbol  string
	failure *SymbolFailure
}

type chunkOutcome struct {
	window   calendar.Window
	bars     []models.Bar
	deferred bool
	err      error
}

// processSymbol runs one symbol through the state machine. The returned
// result carries a failure only when the symbol produced no output or
// hit a fatal write error.
func (o *Orchestrator) processSymbol(ctx context.Context, client provider.Client, req models.SymbolRequest) symbolResult {
	logger := o.logger.With("provider", client.Name(), "symbol", req.Symbol, "resolution", req.Resolution)
	state := StatePending
	transition := func(next State) {
		logger.Debug("state transition", "from", state, "to", next)
		state = next
	}

	fail := func(reason string) symbolResult {
		transition(StateFailed)
		logger.Warn("symbol failed", "reason", reason)
		return symbolResult{symbol: req.Symbol, failure: &SymbolFailure{Symbol: req.Symbol, Reason: reason}}
	}

	windows, err := calendar.ChunkRequest(req, client.MaxWindow(req.Resolution))
	if err != nil {
		return fail(err.Error())
	}

	logger.Info("processing symbol", "chunks", len(windows))

	var (
		dailyBars     []models.Bar
		writtenChunks int
		failedChunks  []string
		pending       = windows
	)

	for pass := 0; len(pending) > 0 && pass <= o.cfg.RateLimitPasses; pass++ {
		if pass > 0 {
			logger.Info("retry pass for rate-limited chunks", "pass", pass, "chunks", len(pending))
		}

		var deferred []calendar.Window
		var maxCooldown time.Duration

		for _, window := range pending {
			if ctx.Err() != nil {
				return fail("run cancelled: " + ctx.Err().Error())
			}

			transition(StateFetching)
			outcome := o.fetchChunk(ctx, client, req.WithWindow(window.Start, window.End))

			if outcome.deferred {
				if cd, ok := apperrors.CooldownOf(outcome.err); ok && cd > maxCooldown {
					maxCooldown = cd
				}
				deferred = append(deferred, window)
				continue
			}

			if outcome.err != nil {
				logger.Warn("chunk failed", "window", window, "error", outcome.err)
				failedChunks = append(failedChunks, fmt.Sprintf("%s: %v", window, outcome.err))
				continue
			}

			transition(StateValidating)
			bars := o.validator.Clean(outcome.bars)
			if len(bars) == 0 {
				// Not an error, but the chunk produced no output.
				logger.Debug("no bars survived validation", "window", window)
				failedChunks = append(failedChunks, fmt.Sprintf("%s: no valid bars", window))
				continue
			}

			if req.Resolution.SubDaily() {
				transition(StateEncoding)
				written, err := o.writeIntraday(req, bars, transition)
				if err != nil {
					// A write failure is fatal for the symbol's
					// remaining chunks.
					return fail(err.Error())
				}
				writtenChunks += written
			} else {
				dailyBars = append(dailyBars, bars...)
			}
		}

		pending = deferred
		if len(pending) > 0 && pass < o.cfg.RateLimitPasses {
			logger.Info("waiting out provider cooldown", "cooldown", maxCooldown)
			select {
			case <-time.After(maxCooldown):
			case <-ctx.Done():
				return fail("run cancelled: " + ctx.Err().Error())
			}
		}
	}

	for _, window := range pending {
		failedChunks = append(failedChunks, fmt.Sprintf("%s: rate limit retries exhausted", window))
	}

	if !req.Resolution.SubDaily() && len(dailyBars) > 0 {
		transition(StateEncoding)
		if err := o.writeWholeRange(req, dailyBars, transition); err != nil {
			return fail(err.Error())
		}
		writtenChunks++
	}

	if writtenChunks == 0 {
		reason := "no output produced"
		if len(failedChunks) > 0 {
			reason = fmt.Sprintf("no output produced; %d failed chunks, first: %s", len(failedChunks), failedChunks[0])
		}
		return fail(reason)
	}

	if len(failedChunks) > 0 {
		logger.Warn("symbol completed with failed chunks", "failed_chunks", len(failedChunks))
	}

	transition(StateDone)
	logger.Info("symbol done", "files_written", writtenChunks, "failed_chunks", len(failedChunks))
	return symbolResult{symbol: req.Symbol}
}

// fetchChunk performs one gated provider call with bounded retries for
// transient failures. Rate limits are surfaced as deferred outcomes,
// not retried in place.
func (o *Orchestrator) fetchChunk(ctx context.Context, client provider.Client, req models.SymbolRequest) chunkOutcome {
	outcome := chunkOutcome{window: calendar.Window{Start: req.Start, End: req.End}}
	schedule := backoff.WithContext(o.cfg.Retry.Backoff(), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++

		if err := o.limits.Wait(ctx, client.Name()); err != nil {
			return backoff.Permanent(err)
		}

		bars, err := client.FetchBars(ctx, req)
		if err == nil {
			outcome.bars = bars
			return nil
		}

		if _, ok := apperrors.CooldownOf(err); ok {
			outcome.deferred = true
			return backoff.Permanent(err)
		}

		if !apperrors.Retryable(err) {
			return backoff.Permanent(err)
		}

		o.logger.Debug("retrying chunk fetch",
			"provider", client.Name(),
			"symbol", req.Symbol,
			"attempt", attempt,
			"error", err)
		return err
	}, schedule)

	if err != nil && !outcome.deferred {
		outcome.err = err
	}
	if outcome.deferred {
		outcome.err = err
	}
	return outcome
}

// writeIntraday encodes and writes one chunk's bars, one archive file
// per session date. Returns the number of files written.
func (o *Orchestrator) writeIntraday(req models.SymbolRequest, bars []models.Bar, transition func(State)) (int, error) {
	byDay := make(map[time.Time][]models.Bar)
	var days []time.Time

	for i := range bars {
		day := bars[i].SessionDate()
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], bars[i])
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	written := 0
	for _, day := range days {
		rows := o.encoder.Encode(byDay[day], req.Resolution, req.AssetClass)

		transition(StateWriting)
		key := lean.ArchiveKey{Symbol: req.Symbol, Date: day, Resolution: req.Resolution}
		if _, err := o.writer.Write(key, req.AssetClass, rows); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// writeWholeRange writes the single whole-range file for daily/hourly
// data, day groups concatenated in ascending date order.
func (o *Orchestrator) writeWholeRange(req models.SymbolRequest, bars []models.Bar, transition func(State)) error {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	rows := o.encoder.Encode(bars, req.Resolution, req.AssetClass)

	transition(StateWriting)
	key := lean.ArchiveKey{Symbol: req.Symbol, Resolution: req.Resolution}
	_, err := o.writer.Write(key, req.AssetClass, rows)
	return err
}
