package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/caesar-quant/caesar/internal/model"
)

// Symbols is the on-disk shape of config/symbols.yaml.
type Symbols struct {
	Symbols []string `yaml:"symbols"`
}

// FactorSpec configures one factor strategy and the parameter grid its
// trainer searches. Slices left empty fall back to a single default value.
type FactorSpec struct {
	Name        string `yaml:"name"`
	MinuteLevel string `yaml:"minute_level"`

	// MACD grid.
	FastPeriods   []int `yaml:"fast_periods,omitempty"`
	SlowPeriods   []int `yaml:"slow_periods,omitempty"`
	SignalPeriods []int `yaml:"signal_periods,omitempty"`

	// RSI / BOLL / EMA grid.
	Periods []int `yaml:"periods,omitempty"`

	// BOLL grid.
	StdMultipliers []float64 `yaml:"std_multipliers,omitempty"`

	// RSI grid.
	BuyThresholds  []float64 `yaml:"buy_thresholds,omitempty"`
	SellThresholds []float64 `yaml:"sell_thresholds,omitempty"`
}

// Factors is the on-disk shape of config/factors.yaml.
type Factors struct {
	Technical []FactorSpec `yaml:"technical"`
}

// Results is the on-disk shape of config/results.yaml, written back by the
// trainer and backtester with the best strategy per symbol/level.
type Results struct {
	Strategies []model.TrainReport    `yaml:"strategies"`
	Backtests  []model.BacktestResult `yaml:"backtests"`
}

// LoadSymbols reads the symbols configuration.
func LoadSymbols(path string) (*Symbols, error) {
	var s Symbols
	if err := loadYAML(path, &s); err != nil {
		return nil, err
	}
	if len(s.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols in %s", path)
	}
	return &s, nil
}

// LoadFactors reads the factor strategy configuration.
func LoadFactors(path string) (*Factors, error) {
	var f Factors
	if err := loadYAML(path, &f); err != nil {
		return nil, err
	}
	if len(f.Technical) == 0 {
		return nil, fmt.Errorf("no technical factors in %s", path)
	}
	for _, spec := range f.Technical {
		if _, err := model.ParseLevel(spec.MinuteLevel); err != nil {
			return nil, fmt.Errorf("factor %q: %w", spec.Name, err)
		}
	}
	return &f, nil
}

// MinuteLevels returns the distinct minute levels configured across all
// factor specs, preserving first-seen order.
func (f *Factors) MinuteLevels() []model.MinuteLevel {
	seen := make(map[model.MinuteLevel]bool)
	var levels []model.MinuteLevel
	for _, spec := range f.Technical {
		level, err := model.ParseLevel(spec.MinuteLevel)
		if err != nil {
			continue
		}
		if !seen[level] {
			seen[level] = true
			levels = append(levels, level)
		}
	}
	return levels
}

// LoadResults reads previously recorded results; a missing file yields an
// empty set so first runs work without scaffolding.
func LoadResults(path string) (*Results, error) {
	var r Results
	if err := loadYAML(path, &r); err != nil {
		if os.IsNotExist(err) {
			return &Results{}, nil
		}
		return nil, err
	}
	return &r, nil
}

// SaveResults writes the results configuration back to disk.
func SaveResults(path string, r *Results) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// UpsertStrategy replaces the recorded best strategy for the report's
// symbol/level, appending when none exists.
func (r *Results) UpsertStrategy(report model.TrainReport) {
	for i, s := range r.Strategies {
		if s.Symbol == report.Symbol && s.Level == report.Level {
			r.Strategies[i] = report
			return
		}
	}
	r.Strategies = append(r.Strategies, report)
}

// UpsertBacktest replaces the recorded backtest for the result's
// symbol/level, appending when none exists.
func (r *Results) UpsertBacktest(result model.BacktestResult) {
	for i, b := range r.Backtests {
		if b.Symbol == result.Symbol && b.Level == result.Level {
			r.Backtests[i] = result
			return
		}
	}
	r.Backtests = append(r.Backtests, result)
}

// BestStrategy returns the recorded best strategy for a symbol/level.
func (r *Results) BestStrategy(symbol string, level model.MinuteLevel) (model.TrainReport, bool) {
	for _, s := range r.Strategies {
		if s.Symbol == symbol && s.Level == level {
			return s, true
		}
	}
	return model.TrainReport{}, false
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
