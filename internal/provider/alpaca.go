package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

const (
	alpacaName     = "alpaca"
	alpacaBaseURL  = "https://data.alpaca.markets"
	alpacaBarsPath = "/v2/stocks/%s/bars"

	// A minute-bar page holds up to 10000 records; a 30 day window
	// stays well under the pagination depth Alpaca starts refusing.
	alpacaPageLimit     = 10000
	alpacaMinuteWindow  = 30 * 24 * time.Hour
	alpacaHTTPTimeout   = 30 * time.Second
	alpacaDefaultPause  = time.Minute
	alpacaDefaultBudget = 200
)

// AlpacaConfig configures the equity intraday adapter.
type AlpacaConfig struct {
	APIKey            string
	APISecret         string
	BaseURL           string
	RequestsPerMinute int
}

// AlpacaClient fetches US equity bars from the Alpaca market-data API.
type AlpacaClient struct {
	cfg    AlpacaConfig
	httpc  *http.Client
	logger *slog.Logger
	loc    *time.Location
}

var _ Client = (*AlpacaClient)(nil)

// NewAlpacaClient creates the Alpaca equity adapter.
func NewAlpacaClient(cfg AlpacaConfig, logger *slog.Logger) *AlpacaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = alpacaBaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = alpacaDefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AlpacaClient{
		cfg: cfg,
		httpc: &http.Client{
			Timeout: alpacaHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With("component", "alpaca"),
		loc:    models.AssetEquity.SessionLocation(),
	}
}

func (c *AlpacaClient) Name() string { return alpacaName }

func (c *AlpacaClient) Supports(class models.AssetClass) bool {
	return class == models.AssetEquity
}

func (c *AlpacaClient) RequestsPerMinute() int { return c.cfg.RequestsPerMinute }

func (c *AlpacaClient) MaxWindow(res models.Resolution) time.Duration {
	if res.SubDaily() {
		return alpacaMinuteWindow
	}
	return 0
}

// FetchBars pages through the bars endpoint until the page token runs
// out, converting each record into a session-time Bar. Records with a
// missing field are skipped individually.
func (c *AlpacaClient) FetchBars(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error) {
	timeframe, err := alpacaTimeframe(req.Resolution)
	if err != nil {
		return nil, err
	}

	var bars []models.Bar
	pageToken := ""

	for {
		body, err := c.fetchPage(ctx, req, timeframe, pageToken)
		if err != nil {
			return nil, err
		}

		records := gjson.GetBytes(body, "bars").Array()
		for _, rec := range records {
			bar, ok := c.parseBar(rec)
			if !ok {
				c.logger.Debug("skipping incomplete bar record", "symbol", req.Symbol, "record", rec.Raw)
				continue
			}
			bars = append(bars, bar)
		}

		pageToken = gjson.GetBytes(body, "next_page_token").String()
		if pageToken == "" {
			break
		}
	}

	c.logger.Debug("fetched bars", "symbol", req.Symbol, "count", len(bars))
	return bars, nil
}

func (c *AlpacaClient) fetchPage(ctx context.Context, req models.SymbolRequest, timeframe, pageToken string) ([]byte, error) {
	params := url.Values{}
	params.Set("timeframe", timeframe)
	params.Set("start", req.Start.UTC().Format(time.RFC3339))
	params.Set("end", req.End.UTC().Format(time.RFC3339))
	params.Set("limit", strconv.Itoa(alpacaPageLimit))
	params.Set("adjustment", "raw")
	if pageToken != "" {
		params.Set("page_token", pageToken)
	}

	endpoint := c.cfg.BaseURL + fmt.Sprintf(alpacaBarsPath, url.PathEscape(req.Symbol)) + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &apperrors.ProviderError{Provider: alpacaName, Message: err.Error()}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("APCA-API-KEY-ID", c.cfg.APIKey)
	httpReq.Header.Set("APCA-API-SECRET-KEY", c.cfg.APISecret)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &apperrors.NetworkError{Provider: alpacaName, Op: "fetch bars", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.NetworkError{Provider: alpacaName, Op: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &apperrors.RateLimitError{
			Provider: alpacaName,
			Cooldown: parseRetryAfter(resp.Header.Get("Retry-After"), alpacaDefaultPause),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &apperrors.ProviderError{
			Provider:   alpacaName,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return body, nil
}

// parseBar converts one bar record. All six fields must be present;
// anything less disqualifies only that record.
func (c *AlpacaClient) parseBar(rec gjson.Result) (models.Bar, bool) {
	for _, field := range []string{"t", "o", "h", "l", "c", "v"} {
		if !rec.Get(field).Exists() {
			return models.Bar{}, false
		}
	}

	ts, err := time.Parse(time.RFC3339, rec.Get("t").String())
	if err != nil {
		return models.Bar{}, false
	}

	return models.Bar{
		Timestamp: ts.In(c.loc),
		Open:      rec.Get("o").Float(),
		High:      rec.Get("h").Float(),
		Low:       rec.Get("l").Float(),
		Close:     rec.Get("c").Float(),
		Volume:    rec.Get("v").Float(),
	}, true
}

func alpacaTimeframe(res models.Resolution) (string, error) {
	switch res {
	case models.ResolutionMinute:
		return "1Min", nil
	case models.ResolutionHour:
		return "1Hour", nil
	case models.ResolutionDaily:
		return "1Day", nil
	default:
		return "", &apperrors.DataError{
			Provider: alpacaName,
			Message:  "unsupported resolution: " + string(res),
		}
	}
}

// parseRetryAfter reads a Retry-After header as either delay seconds or
// an HTTP date, falling back to def when absent or unparsable.
func parseRetryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return def
}
