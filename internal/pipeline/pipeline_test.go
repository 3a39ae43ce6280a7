package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/lean"
	"github.com/FranklineMisango/AlgoForge/internal/models"
	"github.com/FranklineMisango/AlgoForge/internal/provider"
	"github.com/FranklineMisango/AlgoForge/internal/ratelimit"
	"github.com/FranklineMisango/AlgoForge/internal/validator"
)

// stubClient implements provider.Client with a pluggable fetch function.
type stubClient struct {
	name   string
	class  models.AssetClass
	window time.Duration
	fetch  func(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error)
}

var _ provider.Client = (*stubClient)(nil)

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Supports(class models.AssetClass) bool { return class == s.class }

func (s *stubClient) RequestsPerMinute() int { return 100000 }

func (s *stubClient) MaxWindow(models.Resolution) time.Duration { return s.window }

func (s *stubClient) FetchBars(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error) {
	return s.fetch(ctx, req)
}

func fastConfig() Config {
	return Config{
		Retry: apperrors.RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
		RateLimitPasses: 2,
	}
}

func newTestOrchestrator(t *testing.T, clients ...provider.Client) (*Orchestrator, string) {
	t.Helper()

	limits := ratelimit.NewRegistry()
	for _, c := range clients {
		require.NoError(t, limits.Register(c.Name(), c.RequestsPerMinute()))
	}

	root := t.TempDir()
	writer := lean.NewArchiveWriter(lean.WriterConfig{DataRoot: root, Compress: true}, nil)

	return New(clients, limits, validator.New(nil), lean.NewEncoder(), writer, fastConfig(), nil), root
}

// sessionBar returns one valid equity bar one minute into the session
// of the window's start date.
func sessionBar(req models.SymbolRequest) models.Bar {
	loc := req.AssetClass.SessionLocation()
	start := req.Start.UTC()
	return models.Bar{
		Timestamp: time.Date(start.Year(), start.Month(), start.Day(), 9, 31, 0, 0, loc),
		Open:      100.0,
		High:      101.0,
		Low:       99.0,
		Close:     100.5,
		Volume:    1000,
	}
}

func minuteRequest(symbol string, days int) models.SymbolRequest {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return models.SymbolRequest{
		Symbol:     symbol,
		AssetClass: models.AssetEquity,
		Resolution: models.ResolutionMinute,
		Start:      start,
		End:        start.AddDate(0, 0, days),
	}
}

func TestRunWritesMinuteArchives(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 24 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, root := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 2)})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	// One archive file per fetched session day.
	for _, date := range []string{"20240115", "20240116"} {
		path := filepath.Join(root, "equity", "usa", "minute", "aapl", date+"_trade.zip")
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "missing archive %s", path)
	}
}

func TestRunWritesDailyWholeRange(t *testing.T) {
	client := &stubClient{
		name:  "stub",
		class: models.AssetEquity,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			loc := req.AssetClass.SessionLocation()
			var bars []models.Bar
			for d := 0; d < 3; d++ {
				bars = append(bars, models.Bar{
					Timestamp: time.Date(2024, 1, 15+d, 0, 0, 0, 0, loc),
					Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 5000,
				})
			}
			return bars, nil
		},
	}
	orch, root := newTestOrchestrator(t, client)

	req := minuteRequest("SPY", 5)
	req.Resolution = models.ResolutionDaily

	report, err := orch.Run(context.Background(), []models.SymbolRequest{req})
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, report.Succeeded)

	path := filepath.Join(root, "equity", "usa", "daily", "spy.zip")
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestRunIsolatesSymbolFailures(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			if req.Symbol == "BAD" {
				return nil, &apperrors.DataError{Provider: "stub", Message: "malformed payload"}
			}
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{
		minuteRequest("BAD", 1),
		minuteRequest("GOOD", 1),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"GOOD"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "BAD", report.Failed[0].Symbol)
	assert.Contains(t, report.Failed[0].Reason, "malformed payload")
}

func TestRunRetriesTransientFailures(t *testing.T) {
	attempts := 0
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			attempts++
			if attempts < 3 {
				return nil, &apperrors.NetworkError{Provider: "stub", Op: "fetch", Err: context.DeadlineExceeded}
			}
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 1)})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, report.Succeeded)
	assert.Equal(t, 3, attempts)
}

func TestRunGivesUpAfterRetryBudget(t *testing.T) {
	attempts := 0
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, _ models.SymbolRequest) ([]models.Bar, error) {
			attempts++
			return nil, &apperrors.NetworkError{Provider: "stub", Op: "fetch", Err: context.DeadlineExceeded}
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 1)})
	require.NoError(t, err)

	assert.Empty(t, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 3, attempts)
}

func TestRunDefersRateLimitedChunks(t *testing.T) {
	calls := 0
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			calls++
			if calls == 1 {
				return nil, &apperrors.RateLimitError{Provider: "stub", Cooldown: 5 * time.Millisecond}
			}
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 1)})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, report.Succeeded)
	// Rate limits are deferred to the next pass, never retried in place.
	assert.Equal(t, 2, calls)
}

func TestRunFailsWhenRateLimitPassesExhausted(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, _ models.SymbolRequest) ([]models.Bar, error) {
			return nil, &apperrors.RateLimitError{Provider: "stub", Cooldown: time.Millisecond}
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 1)})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "rate limit retries exhausted")
}

func TestRunFailsSymbolWithNoValidBars(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			bad := sessionBar(req)
			bad.Close = -1
			return []models.Bar{bad}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(context.Background(), []models.SymbolRequest{minuteRequest("AAPL", 1)})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "no valid bars")
}

func TestRunFailsUnroutableRequests(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	req := minuteRequest("BTCUSDT", 1)
	req.AssetClass = models.AssetCrypto

	report, err := orch.Run(context.Background(), []models.SymbolRequest{req})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "no provider serves")
}

func TestRunRejectsTickResolution(t *testing.T) {
	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 48 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	req := minuteRequest("AAPL", 1)
	req.Resolution = models.ResolutionTick

	report, err := orch.Run(context.Background(), []models.SymbolRequest{req})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "not supported")
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &stubClient{
		name:   "stub",
		class:  models.AssetEquity,
		window: 24 * time.Hour,
		fetch: func(_ context.Context, req models.SymbolRequest) ([]models.Bar, error) {
			cancel()
			return []models.Bar{sessionBar(req)}, nil
		},
	}
	orch, _ := newTestOrchestrator(t, client)

	report, err := orch.Run(ctx, []models.SymbolRequest{
		minuteRequest("AAPL", 10),
		minuteRequest("MSFT", 10),
	})
	require.Error(t, err)
	require.NotNil(t, report)

	// The in-flight symbol is reported failed, the unstarted one is
	// simply absent.
	assert.Empty(t, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "cancelled")
}
