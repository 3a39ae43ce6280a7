// AlgoForge market-data archiver CLI
// This application fetches historical OHLCV bars from the configured
// market-data providers, validates them, and writes LEAN-format archive
// files under the data root.
//
// Usage:
//
//	algoforge run [--config algoforge.json] [--resolution minute] [--start 2024-01-01 --end 2024-06-01]
//	algoforge run --class equity --symbols AAPL,MSFT
//
// For detailed help, use: algoforge <command> --help
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/FranklineMisango/AlgoForge/internal/config"
	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/lean"
	"github.com/FranklineMisango/AlgoForge/internal/logger"
	"github.com/FranklineMisango/AlgoForge/internal/models"
	"github.com/FranklineMisango/AlgoForge/internal/pipeline"
	"github.com/FranklineMisango/AlgoForge/internal/provider"
	"github.com/FranklineMisango/AlgoForge/internal/ratelimit"
	"github.com/FranklineMisango/AlgoForge/internal/validator"
)

const (
	Version    = "1.0.0"
	AppName    = "algoforge"
	ConfigFile = "algoforge.json"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitRunError    = 4
	ExitInterrupt   = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		os.Exit(runCommand(ctx, args))
	case "--version", "-v":
		fmt.Printf("%s version %s\n", AppName, Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}
}

// runFlags holds the parsed 'run' command options.
type runFlags struct {
	ConfigPath string
	DataRoot   string
	Resolution string
	Start      string
	End        string
	Class      string
	Symbols    string
	ReportPath string
}

func runCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var flags runFlags
	fs.StringVar(&flags.ConfigPath, "config", ConfigFile, "path to the JSON configuration file")
	fs.StringVar(&flags.DataRoot, "data-root", "", "override the archive data root")
	fs.StringVar(&flags.Resolution, "resolution", "", "bar resolution: minute, hour, daily")
	fs.StringVar(&flags.Start, "start", "", "range start (YYYY-MM-DD, inclusive)")
	fs.StringVar(&flags.End, "end", "", "range end (YYYY-MM-DD, exclusive)")
	fs.StringVar(&flags.Class, "class", "", "restrict the run to one asset class: equity, crypto, futures, options")
	fs.StringVar(&flags.Symbols, "symbols", "", "comma-separated symbol override (requires --class)")
	fs.StringVar(&flags.ReportPath, "report", "", "write the run report JSON to this file")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		return ExitConfigError
	}
	applyFlags(cfg, flags)

	log, closer := logger.New(cfg.Logging)
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	requests, err := buildRequests(cfg, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsageError
	}
	if len(requests) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no symbols to process")
		return ExitUsageError
	}

	orch, err := buildOrchestrator(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize pipeline: %v\n", err)
		return ExitConfigError
	}

	log.Info("Starting archive run",
		"symbols", len(requests),
		"resolution", cfg.Resolution,
		"start", cfg.StartDate,
		"end", cfg.EndDate,
		"data_root", cfg.DataRoot)

	report, err := orch.Run(ctx, requests)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("Run interrupted", "error", err)
			return ExitInterrupt
		}
		log.Error("Run failed", "error", err)
		return ExitRunError
	}

	printReport(report)
	if flags.ReportPath != "" {
		if err := writeReport(flags.ReportPath, report); err != nil {
			log.Error("Failed to write report", "path", flags.ReportPath, "error", err)
			return ExitRunError
		}
	}

	if len(report.Succeeded) == 0 && len(report.Failed) > 0 {
		return ExitRunError
	}
	return ExitSuccess
}

// applyFlags layers command-line overrides on top of the loaded
// configuration, mirroring how environment variables override the file.
func applyFlags(cfg *config.AppConfig, flags runFlags) {
	if flags.DataRoot != "" {
		cfg.DataRoot = flags.DataRoot
	}
	if flags.Resolution != "" {
		cfg.Resolution = flags.Resolution
	}
	if flags.Start != "" {
		cfg.StartDate = flags.Start
	}
	if flags.End != "" {
		cfg.EndDate = flags.End
	}
}

// buildRequests expands the configured symbol universes into one request
// per symbol. --class restricts the run to one universe; --symbols
// replaces that universe for the run.
func buildRequests(cfg *config.AppConfig, flags runFlags) ([]models.SymbolRequest, error) {
	res := models.Resolution(cfg.Resolution)
	if !res.Valid() {
		return nil, fmt.Errorf("unknown resolution %q", cfg.Resolution)
	}

	start, err := cfg.Start()
	if err != nil {
		return nil, err
	}
	end, err := cfg.End()
	if err != nil {
		return nil, err
	}

	universes := map[models.AssetClass][]string{
		models.AssetEquity:  cfg.EquitySymbols,
		models.AssetCrypto:  cfg.CryptoSymbols,
		models.AssetFutures: cfg.FuturesSymbols,
		models.AssetOptions: cfg.OptionsSymbols,
	}

	if flags.Class != "" {
		class := models.AssetClass(flags.Class)
		if !class.Valid() {
			return nil, fmt.Errorf("unknown asset class %q", flags.Class)
		}
		symbols := universes[class]
		if flags.Symbols != "" {
			symbols = splitSymbols(flags.Symbols)
		}
		universes = map[models.AssetClass][]string{class: symbols}
	} else if flags.Symbols != "" {
		return nil, fmt.Errorf("--symbols requires --class")
	}

	var requests []models.SymbolRequest
	for _, class := range []models.AssetClass{models.AssetEquity, models.AssetCrypto, models.AssetFutures, models.AssetOptions} {
		for _, symbol := range universes[class] {
			req := models.SymbolRequest{
				Symbol:     symbol,
				AssetClass: class,
				Resolution: res,
				Start:      start,
				End:        end,
			}
			if err := req.Validate(); err != nil {
				return nil, fmt.Errorf("symbol %s: %w", symbol, err)
			}
			requests = append(requests, req)
		}
	}
	return requests, nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// buildOrchestrator wires the providers, rate limiter, validator and
// archive writer into a pipeline orchestrator.
func buildOrchestrator(cfg *config.AppConfig, log *slog.Logger) (*pipeline.Orchestrator, error) {
	providers := []provider.Client{
		provider.NewAlpacaClient(provider.AlpacaConfig{
			APIKey:            cfg.Alpaca.APIKey,
			APISecret:         cfg.Alpaca.APISecret,
			RequestsPerMinute: cfg.Alpaca.RequestsPerMinute,
		}, log),
		provider.NewBinanceClient(provider.BinanceConfig{
			APIKey:            cfg.Binance.APIKey,
			APISecret:         cfg.Binance.APISecret,
			RequestsPerMinute: cfg.Binance.RequestsPerMinute,
		}, log),
		provider.NewYahooClient(provider.YahooConfig{
			RequestsPerMinute: cfg.Yahoo.RequestsPerMinute,
		}, log),
	}

	limits := ratelimit.NewRegistry()
	for _, p := range providers {
		if err := limits.Register(p.Name(), p.RequestsPerMinute()); err != nil {
			return nil, err
		}
	}

	writer := lean.NewArchiveWriter(lean.WriterConfig{
		DataRoot: cfg.DataRoot,
		Compress: cfg.Compress,
	}, log)

	pipeCfg := pipeline.DefaultConfig()
	if cfg.RetryAttempts > 0 {
		pipeCfg.Retry = apperrors.RetryPolicy{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
		}
	}

	return pipeline.New(
		providers,
		limits,
		validator.New(log),
		lean.NewEncoder(),
		writer,
		pipeCfg,
		log,
	), nil
}

func printReport(report *pipeline.RunReport) {
	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Printf("Run %s finished in %s: %d succeeded, %d failed\n",
		report.RunID, elapsed, len(report.Succeeded), len(report.Failed))
	for _, failure := range report.Failed {
		fmt.Printf("  FAILED %s: %s\n", failure.Symbol, failure.Reason)
	}
}

func writeReport(path string, report *pipeline.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printUsage() {
	fmt.Printf(`%s - LEAN-format market data archiver

Usage:
  %s <command> [flags]

Commands:
  run        Fetch, validate and archive bars for the configured universes
  help       Show this help message

Run flags:
  --config <path>       JSON configuration file (default %s)
  --data-root <path>    Override the archive data root
  --resolution <res>    Bar resolution: minute, hour, daily
  --start <date>        Range start, YYYY-MM-DD (inclusive)
  --end <date>          Range end, YYYY-MM-DD (exclusive)
  --class <class>       Restrict to one asset class
  --symbols <list>      Comma-separated symbols (requires --class)
  --report <path>       Write the run report JSON to a file

Configuration may also be supplied through environment variables such as
DATA_ROOT, RESOLUTION, START_DATE, END_DATE, ALPACA_API_KEY and
BINANCE_API_KEY; environment values override the file.
`, AppName, AppName, ConfigFile)
}
