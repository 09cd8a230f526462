package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/api"
	"github.com/caesar-quant/caesar/internal/cache"
	"github.com/caesar-quant/caesar/internal/client/alphavantage"
	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/data"
	"github.com/caesar-quant/caesar/internal/database"
	"github.com/caesar-quant/caesar/internal/factors/backtest"
	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/factors/train"
	"github.com/caesar-quant/caesar/internal/mcp"
	"github.com/caesar-quant/caesar/internal/model"
	"github.com/caesar-quant/caesar/internal/notify"
)

func main() {
	mode := flag.String("mode", "serve", "run mode: fetch, train, backtest, serve or mcp")
	symbol := flag.String("symbol", "", "restrict fetch/train/backtest to a single symbol")
	force := flag.Bool("force", false, "recompute factor data even when files exist")
	flag.Parse()

	cfg := config.Load()

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	if cfg.AlphaVantageAPIKey == "" {
		log.Fatal().Msg("ALPHAVANTAGE_API_KEY is required")
	}

	app, err := buildApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "fetch":
		err = app.runFetch(ctx, *symbol, *force)
	case "train":
		err = app.runTrain(ctx, *symbol)
	case "backtest":
		err = app.runBacktest(ctx, *symbol)
	case "serve":
		err = app.runServe()
	case "mcp":
		err = app.runMCP(ctx)
	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode, expected fetch, train, backtest, serve or mcp")
	}
	if err != nil {
		log.Fatal().Err(err).Str("mode", *mode).Msg("Run failed")
	}
}

// app bundles the wired pipeline shared by every mode.
type app struct {
	cfg      *config.App
	symbols  []string
	factors  *config.Factors
	fetcher  *data.Fetcher
	store    *data.Store
	cache    *cache.CandleCache
	engine   *backtest.Engine
	db       *database.DB
	notifier *notify.Notifier
}

func buildApp(cfg *config.App) (*app, error) {
	symbols, err := config.LoadSymbols(cfg.SymbolsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading symbols: %w", err)
	}
	factors, err := config.LoadFactors(cfg.FactorsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading factors: %w", err)
	}

	client := alphavantage.NewClient(alphavantage.ClientOptions{
		APIKey:         cfg.AlphaVantageAPIKey,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerMin: cfg.RequestsPerMin,
	})

	var candleCache *cache.CandleCache
	if cfg.CacheEnabled {
		candleCache = cache.New(time.Duration(cfg.CacheTTLMinutes) * time.Minute)
	}

	store := data.NewStore(cfg.OutputDir)

	engine := backtest.NewEngine()
	engine.SetInitialBalance(cfg.InitialBalance)

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
	}

	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifier disabled")
	}

	return &app{
		cfg:      cfg,
		symbols:  symbols.Symbols,
		factors:  factors,
		fetcher:  data.NewFetcher(client, store, candleCache),
		store:    store,
		cache:    candleCache,
		engine:   engine,
		db:       db,
		notifier: notifier,
	}, nil
}

func (a *app) close() {
	a.cache.Close()
	if a.db != nil {
		a.db.Close()
	}
}

// selectSymbols narrows the configured universe to a single symbol when the
// -symbol flag is set.
func (a *app) selectSymbols(only string) []string {
	if only == "" {
		return a.symbols
	}
	return []string{strings.ToUpper(only)}
}

// runFetch downloads candles for every symbol and level, then writes the
// configured factor series to disk.
func (a *app) runFetch(ctx context.Context, only string, force bool) error {
	symbols := a.selectSymbols(only)
	levels := a.factors.MinuteLevels()

	if err := a.fetcher.FetchAll(ctx, symbols, levels); err != nil {
		return err
	}

	extractor := extract.NewExtractor(a.store)
	for _, sym := range symbols {
		for _, spec := range a.factors.Technical {
			level, err := model.ParseLevel(spec.MinuteLevel)
			if err != nil {
				return err
			}
			candles, err := a.fetcher.Candles(ctx, sym, level)
			if err != nil {
				log.Error().Err(err).Str("symbol", sym).Str("level", string(level)).Msg("Skipping factor extraction")
				continue
			}
			if err := extractor.ExtractAll(sym, level, candles, []string{spec.Name}, force); err != nil {
				log.Error().Err(err).Str("symbol", sym).Str("factor", spec.Name).Msg("Factor extraction failed")
			}
		}
	}
	return nil
}

// runTrain grid-searches every configured factor spec per symbol and records
// the winner in the results file, the database and Telegram.
func (a *app) runTrain(ctx context.Context, only string) error {
	results, err := config.LoadResults(a.cfg.ResultsConfigPath)
	if err != nil {
		return fmt.Errorf("loading results: %w", err)
	}

	trainer := train.NewTrainer()
	trained := 0
	for _, sym := range a.selectSymbols(only) {
		for _, spec := range a.factors.Technical {
			level, err := model.ParseLevel(spec.MinuteLevel)
			if err != nil {
				return err
			}
			candles, err := a.fetcher.Candles(ctx, sym, level)
			if err != nil {
				log.Error().Err(err).Str("symbol", sym).Str("level", string(level)).Msg("Skipping training")
				continue
			}

			report, err := trainer.Train(sym, level, candles, spec)
			if err != nil {
				log.Error().Err(err).Str("symbol", sym).Str("factor", spec.Name).Msg("Training failed")
				continue
			}

			// Keep only the best strategy per symbol/level across specs.
			if current, ok := results.BestStrategy(sym, level); !ok || report.Score > current.Score {
				results.UpsertStrategy(report)
				if a.db != nil {
					if err := a.db.SaveBestStrategy(report); err != nil {
						log.Error().Err(err).Msg("Failed to persist best strategy")
					}
				}
				a.notifier.TrainingCompleted(report)
			}

			log.Info().
				Str("symbol", sym).
				Str("level", string(level)).
				Str("factor", report.Best.Factor).
				Float64("ic", report.IC).
				Float64("hit_rate", report.HitRate).
				Float64("score", report.Score).
				Msg("Training complete")
			trained++
		}
	}

	if trained == 0 {
		return fmt.Errorf("no strategies trained")
	}
	return config.SaveResults(a.cfg.ResultsConfigPath, results)
}

// runBacktest replays each trained strategy over its candle history and
// prints the performance summary.
func (a *app) runBacktest(ctx context.Context, only string) error {
	results, err := config.LoadResults(a.cfg.ResultsConfigPath)
	if err != nil {
		return fmt.Errorf("loading results: %w", err)
	}
	if len(results.Strategies) == 0 {
		return fmt.Errorf("no trained strategies, run with -mode train first")
	}

	symbols := a.selectSymbols(only)
	ran := 0
	for _, report := range results.Strategies {
		if only != "" && report.Symbol != symbols[0] {
			continue
		}

		candles, err := a.fetcher.Candles(ctx, report.Symbol, report.Level)
		if err != nil {
			log.Error().Err(err).Str("symbol", report.Symbol).Msg("Skipping backtest")
			continue
		}

		result, err := a.engine.Run(report.Symbol, report.Level, candles, report.Best)
		if err != nil {
			log.Error().Err(err).Str("symbol", report.Symbol).Msg("Backtest failed")
			continue
		}

		fmt.Print(backtest.FormatResults(result))

		results.UpsertBacktest(*result)
		if a.db != nil {
			if err := a.db.SaveBacktest(*result); err != nil {
				log.Error().Err(err).Msg("Failed to persist backtest result")
			}
		}
		a.notifier.BacktestCompleted(result)
		ran++
	}

	if ran == 0 {
		return fmt.Errorf("no backtests ran")
	}
	return config.SaveResults(a.cfg.ResultsConfigPath, results)
}

func (a *app) runServe() error {
	server := api.NewServer(a.cfg, a.symbols, a.fetcher, a.engine, a.db, a.notifier)
	log.Info().Str("addr", a.cfg.HTTPAddr).Msg("Starting HTTP server")
	return server.Run(a.cfg.HTTPAddr)
}

func (a *app) runMCP(ctx context.Context) error {
	server := mcp.NewServer(a.cfg, a.symbols, a.fetcher, a.engine, a.db)
	log.Info().Msg("Starting MCP server on stdio")
	return server.Run(ctx, os.Stdin, os.Stdout)
}
