package extract

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/data"
	"github.com/caesar-quant/caesar/internal/model"
)

// Extractor computes factor series and persists them as CSV artifacts.
// Already-written series are skipped, making extraction cheap to re-run.
type Extractor struct {
	store  *data.Store
	logger zerolog.Logger
}

// NewExtractor creates an extractor writing through the given store.
func NewExtractor(store *data.Store) *Extractor {
	return &Extractor{
		store:  store,
		logger: log.With().Str("component", "extractor").Logger(),
	}
}

// Extract computes one factor series for a symbol/level and writes it to
// disk. force recomputes even when the artifact already exists.
func (e *Extractor) Extract(symbol string, level model.MinuteLevel, candles []model.Candle, params model.StrategyParams, force bool) error {
	if !force && e.store.HasFactor(symbol, level, params.Factor) {
		e.logger.Info().
			Str("symbol", symbol).
			Str("level", string(level)).
			Str("factor", params.Factor).
			Msg("Factor data already exists, skipping calculation")
		return nil
	}

	series, err := ComputeSeries(params.Factor, candles, params)
	if err != nil {
		return fmt.Errorf("computing %s for %s %s: %w", params.Factor, symbol, level, err)
	}

	timestamps := make([]time.Time, len(candles))
	for i, c := range candles {
		timestamps[i] = c.Timestamp
	}
	if err := e.store.SaveFactorSeries(symbol, level, series.Name, timestamps, series.Columns, series.Values); err != nil {
		return fmt.Errorf("saving %s for %s %s: %w", params.Factor, symbol, level, err)
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("level", string(level)).
		Str("factor", params.Factor).
		Int("rows", len(candles)).
		Msg("Saved factor data")
	return nil
}

// ExtractAll runs Extract for every named factor.
func (e *Extractor) ExtractAll(symbol string, level model.MinuteLevel, candles []model.Candle, factors []string, force bool) error {
	for _, name := range factors {
		if err := e.Extract(symbol, level, candles, model.StrategyParams{Factor: name}, force); err != nil {
			return err
		}
	}
	return nil
}
