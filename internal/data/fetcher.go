package data

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/cache"
	"github.com/caesar-quant/caesar/internal/model"
)

// CandleSource fetches candles from a market-data provider.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, level model.MinuteLevel) ([]model.Candle, error)
}

// Fetcher pulls candles for configured symbols and levels, consulting the
// in-memory cache first and persisting everything it fetches as CSV.
type Fetcher struct {
	source CandleSource
	store  *Store
	cache  *cache.CandleCache
	logger zerolog.Logger
}

// NewFetcher creates a fetcher. cache may be nil to disable caching.
func NewFetcher(source CandleSource, store *Store, candleCache *cache.CandleCache) *Fetcher {
	return &Fetcher{
		source: source,
		store:  store,
		cache:  candleCache,
		logger: log.With().Str("component", "fetcher").Logger(),
	}
}

// Candles returns candles for one symbol/level, from cache, disk, or the
// provider, in that order. Provider fetches are written through to both.
func (f *Fetcher) Candles(ctx context.Context, symbol string, level model.MinuteLevel) ([]model.Candle, error) {
	if candles, ok := f.cache.Get(symbol, level); ok {
		f.logger.Debug().Str("symbol", symbol).Str("level", string(level)).Msg("Cache hit")
		return candles, nil
	}

	if f.store.HasCandles(symbol, level) {
		candles, err := f.store.LoadCandles(symbol, level)
		if err == nil {
			f.cache.Set(symbol, level, candles)
			return candles, nil
		}
		f.logger.Warn().Err(err).Str("symbol", symbol).Msg("Stored candles unreadable, refetching")
	}

	return f.Refresh(ctx, symbol, level)
}

// Refresh fetches candles from the provider regardless of cache or disk
// state and writes them through.
func (f *Fetcher) Refresh(ctx context.Context, symbol string, level model.MinuteLevel) ([]model.Candle, error) {
	candles, err := f.source.GetCandles(ctx, symbol, level)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", symbol, level, err)
	}

	if err := f.store.SaveCandles(symbol, level, candles); err != nil {
		return nil, fmt.Errorf("saving %s %s: %w", symbol, level, err)
	}
	f.cache.Set(symbol, level, candles)

	f.logger.Info().
		Str("symbol", symbol).
		Str("level", string(level)).
		Int("rows", len(candles)).
		Str("file", f.store.CandlePath(symbol, level)).
		Msg("Saved candles")
	return candles, nil
}

// FetchAll fetches every configured symbol at every level. Failures on
// individual symbol/level pairs are logged and counted, not fatal; the
// provider rate limiter paces the requests.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string, levels []model.MinuteLevel) error {
	var failed int
	for _, symbol := range symbols {
		for _, level := range levels {
			if _, err := f.Refresh(ctx, symbol, level); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Error().Err(err).
					Str("symbol", symbol).
					Str("level", string(level)).
					Msg("Fetch failed")
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d symbol/level fetches failed", failed)
	}
	return nil
}
