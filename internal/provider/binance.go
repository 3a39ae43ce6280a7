package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

const (
	binanceName = "binance"

	// Klines responses are capped at 1000 records per call.
	binanceKlineLimit    = 1000
	binanceHTTPTimeout   = 30 * time.Second
	binanceDefaultPause  = time.Minute
	binanceDefaultBudget = 1200

	// API error codes signalling a breached request weight budget.
	binanceCodeTooManyRequests = -1003
	binanceCodeRateLimit       = -1015
)

// BinanceConfig configures the crypto exchange adapter.
type BinanceConfig struct {
	APIKey            string
	APISecret         string
	BaseURL           string
	RequestsPerMinute int
}

// BinanceClient fetches crypto klines through the Binance SDK.
type BinanceClient struct {
	cfg    BinanceConfig
	client *binance.Client
	logger *slog.Logger
}

var _ Client = (*BinanceClient)(nil)

// NewBinanceClient creates the Binance crypto adapter.
func NewBinanceClient(cfg BinanceConfig, logger *slog.Logger) *BinanceClient {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = binanceDefaultBudget
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = &http.Client{Timeout: binanceHTTPTimeout}
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &BinanceClient{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "binance"),
	}
}

func (c *BinanceClient) Name() string { return binanceName }

func (c *BinanceClient) Supports(class models.AssetClass) bool {
	return class == models.AssetCrypto
}

func (c *BinanceClient) RequestsPerMinute() int { return c.cfg.RequestsPerMinute }

func (c *BinanceClient) MaxWindow(res models.Resolution) time.Duration {
	if res.SubDaily() {
		return binanceKlineLimit * res.Duration()
	}
	return 0
}

// FetchBars pages through klines in [req.Start, req.End), advancing the
// start cursor past the last open time until the range is exhausted.
// Crypto bars stay in UTC, the session timezone of the asset class.
func (c *BinanceClient) FetchBars(ctx context.Context, req models.SymbolRequest) ([]models.Bar, error) {
	interval, err := binanceInterval(req.Resolution)
	if err != nil {
		return nil, err
	}

	var bars []models.Bar
	cursor := req.Start.UTC()
	end := req.End.UTC()

	for cursor.Before(end) {
		klines, err := c.client.NewKlinesService().
			Symbol(req.Symbol).
			Interval(interval).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli() - 1).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, c.mapError(err)
		}

		if len(klines) == 0 {
			break
		}

		for _, kl := range klines {
			if kl == nil {
				continue
			}
			bar, ok := parseKline(kl)
			if !ok {
				c.logger.Debug("skipping unparsable kline", "symbol", req.Symbol, "open_time", kl.OpenTime)
				continue
			}
			bars = append(bars, bar)
		}

		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.OpenTime).UTC().Add(req.Resolution.Duration())
		if len(klines) < binanceKlineLimit {
			break
		}
	}

	c.logger.Debug("fetched klines", "symbol", req.Symbol, "count", len(bars))
	return bars, nil
}

// mapError translates SDK errors into the pipeline taxonomy.
func (c *BinanceClient) mapError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case binanceCodeTooManyRequests, binanceCodeRateLimit:
			return &apperrors.RateLimitError{Provider: binanceName, Cooldown: binanceDefaultPause}
		}
		// Remaining API codes are request mistakes (bad symbol, bad
		// interval); retrying cannot fix them.
		return &apperrors.ProviderError{
			Provider:   binanceName,
			StatusCode: http.StatusBadRequest,
			Message:    strconv.FormatInt(apiErr.Code, 10) + ": " + apiErr.Message,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &apperrors.NetworkError{Provider: binanceName, Op: "fetch klines", Err: err}
}

// parseKline converts one kline. Binance encodes prices and volume as
// strings; a record that fails to parse disqualifies only itself.
func parseKline(kl *binance.Kline) (models.Bar, bool) {
	open, err1 := strconv.ParseFloat(kl.Open, 64)
	high, err2 := strconv.ParseFloat(kl.High, 64)
	low, err3 := strconv.ParseFloat(kl.Low, 64)
	closep, err4 := strconv.ParseFloat(kl.Close, 64)
	volume, err5 := strconv.ParseFloat(kl.Volume, 64)

	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return models.Bar{}, false
		}
	}

	return models.Bar{
		Timestamp: time.UnixMilli(kl.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closep,
		Volume:    volume,
	}, true
}

func binanceInterval(res models.Resolution) (string, error) {
	switch res {
	case models.ResolutionMinute:
		return "1m", nil
	case models.ResolutionHour:
		return "1h", nil
	case models.ResolutionDaily:
		return "1d", nil
	default:
		return "", &apperrors.DataError{
			Provider: binanceName,
			Message:  "unsupported resolution: " + string(res),
		}
	}
}
