package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

const (
	yahooName      = "yahoo"
	yahooBaseURL   = "https://query1.finance.yahoo.com"
	yahooChartPath = "/v8/finance/chart/%s"

	// Minute-level chart history is only served seven days at a time.
	yahooMinuteWindow  = 7 * 24 * time.Hour
	yahooHTTPTimeout   = 30 * time.Second
	yahooDefaultPause  = time.Minute
	yahooDefaultBudget = 2000
	yahooUserAgent     = "algoforge/1.0"
)

// YahooConfig configures the futures/options chart adapter.
type YahooConfig struct {
	BaseURL           string
	RequestsPerMinute int
}

// YahooClient fetches futures and options-underlying bars from the
// Yahoo Finance chart API.
type YahooClient struct {
	cfg    YahooConfig
	httpc  *http.Client
	logger *slog.Logger
	loc    *time.Location
}

var _ Client = (*YahooClient)(nil)

// NewYahooClient creates the Yahoo chart adapter.
func NewYahooClient(cfg YahooConfig, logger *slog.Logger) *YahooClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = yahooBaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = yahooDefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &YahooClient{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: yahooHTTPTimeout},
		logger: logger.With("component", "yahoo"),
		loc:    models.AssetFutures.SessionLocation(),
	}
}

func (c *YahooClient) Name() string { return yahooName }

func (c *YahooClient) Supports(class models.AssetClass) bool {
	return class == models.AssetFutures || class == models.AssetOptions
}

func (c *YahooClient) RequestsPerMinute() int { return c.cfg.RequestsPerMinute }

func (c *YahooClient) MaxWindow(res models.Resolution) time.Duration {
	if res.SubDaily() {
		return yahooMinuteWindow
	}
	return 0
}

// FetchBars queries the chart endpoint for one window. The payload is a
// timestamp array plus parallel quote arrays; an index with any null
// leg is skipped, keeping the rest of the response (partial success).
func (c *YahooClient) FetchBars(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error) {
	interval, err := yahooInterval(req.Resolution)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(req.Start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(req.End.Unix(), 10))
	params.Set("interval", interval)
	params.Set("includePrePost", "false")
	params.Set("events", "div,splits")

	endpoint := c.cfg.BaseURL + fmt.Sprintf(yahooChartPath, url.PathEscape(req.Symbol)) + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &apperrors.ProviderError{Provider: yahooName, Message: err.Error()}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", yahooUserAgent)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &apperrors.NetworkError{Provider: yahooName, Op: "fetch chart", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.NetworkError{Provider: yahooName, Op: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &apperrors.RateLimitError{
			Provider: yahooName,
			Cooldown: parseRetryAfter(resp.Header.Get("Retry-After"), yahooDefaultPause),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &apperrors.ProviderError{
			Provider:   yahooName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if chartErr := gjson.GetBytes(body, "chart.error"); chartErr.Exists() && chartErr.Type != gjson.Null {
		return nil, &apperrors.ProviderError{
			Provider:   yahooName,
			StatusCode: http.StatusBadRequest,
			Message:    chartErr.Get("description").String(),
		}
	}

	return c.parseChart(body, req.Symbol), nil
}

func (c *YahooClient) parseChart(body []byte, symbol string) []models.Bar {
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil
	}

	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]models.Bar, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) || i >= len(volumes) {
			break
		}

		if anyNull(opens[i], highs[i], lows[i], closes[i], volumes[i]) {
			c.logger.Debug("skipping bar with null field", "symbol", symbol, "index", i)
			continue
		}

		bars = append(bars, models.Bar{
			Timestamp: time.Unix(ts.Int(), 0).In(c.loc),
			Open:      opens[i].Float(),
			High:      highs[i].Float(),
			Low:       lows[i].Float(),
			Close:     closes[i].Float(),
			Volume:    volumes[i].Float(),
		})
	}

	return bars
}

func anyNull(values ...gjson.Result) bool {
	for _, v := range values {
		if !v.Exists() || v.Type == gjson.Null {
			return true
		}
	}
	return false
}

func yahooInterval(res models.Resolution) (string, error) {
	switch res {
	case models.ResolutionMinute:
		return "1m", nil
	case models.ResolutionHour:
		return "1h", nil
	case models.ResolutionDaily:
		return "1d", nil
	default:
		return "", &apperrors.DataError{
			Provider: yahooName,
			Message:  "unsupported resolution: " + string(res),
		}
	}
}
