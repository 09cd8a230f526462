package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caesar-quant/caesar/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// Store persists candles and factor series as CSV files under a base
// directory, one subdirectory per symbol:
//
//	<base>/<SYMBOL>/<SYMBOL>_<level>.csv
//	<base>/<SYMBOL>/factors/<name>/<level>/<SYMBOL>_<level>_<name>.csv
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// CandlePath returns the CSV path for a symbol/level candle file.
func (s *Store) CandlePath(symbol string, level model.MinuteLevel) string {
	return filepath.Join(s.baseDir, symbol, fmt.Sprintf("%s_%s.csv", symbol, level))
}

// FactorPath returns the CSV path for a computed factor series.
func (s *Store) FactorPath(symbol string, level model.MinuteLevel, factor string) string {
	return filepath.Join(
		s.baseDir, symbol, "factors", factor, string(level),
		fmt.Sprintf("%s_%s_%s.csv", symbol, level, factor),
	)
}

// HasCandles reports whether candles for a symbol/level are already on disk.
func (s *Store) HasCandles(symbol string, level model.MinuteLevel) bool {
	_, err := os.Stat(s.CandlePath(symbol, level))
	return err == nil
}

// HasFactor reports whether a factor series is already on disk.
func (s *Store) HasFactor(symbol string, level model.MinuteLevel, factor string) bool {
	_, err := os.Stat(s.FactorPath(symbol, level, factor))
	return err == nil
}

// SaveCandles writes candles to the symbol/level CSV, replacing any
// previous file.
func (s *Store) SaveCandles(symbol string, level model.MinuteLevel, candles []model.Candle) error {
	path := s.CandlePath(symbol, level)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating symbol dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range candles {
		record := []string{
			c.Timestamp.Format(timestampLayout),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatInt(c.Volume, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing candle row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// LoadCandles reads candles back from the symbol/level CSV.
func (s *Store) LoadCandles(symbol string, level model.MinuteLevel) ([]model.Candle, error) {
	path := s.CandlePath(symbol, level)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no candle rows in %s", path)
	}

	candles := make([]model.Candle, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != 6 {
			return nil, fmt.Errorf("malformed row in %s: %v", path, row)
		}
		ts, err := time.Parse(timestampLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", row[0], err)
		}
		open, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing open %q: %w", row[1], err)
		}
		high, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing high %q: %w", row[2], err)
		}
		low, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing low %q: %w", row[3], err)
		}
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing close %q: %w", row[4], err)
		}
		volume, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing volume %q: %w", row[5], err)
		}
		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return candles, nil
}

// SaveFactorSeries writes a factor series CSV: a timestamp column followed
// by one column per factor component. All columns must have equal length.
func (s *Store) SaveFactorSeries(symbol string, level model.MinuteLevel, factor string, timestamps []time.Time, columns []string, series [][]float64) error {
	if len(columns) != len(series) {
		return fmt.Errorf("column/series mismatch: %d names, %d series", len(columns), len(series))
	}
	for i, col := range series {
		if len(col) != len(timestamps) {
			return fmt.Errorf("series %q has %d rows, want %d", columns[i], len(col), len(timestamps))
		}
	}

	path := s.FactorPath(symbol, level, factor)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating factor dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"timestamp"}, columns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, ts := range timestamps {
		row := make([]string, 0, len(header))
		row = append(row, ts.Format(timestampLayout))
		for _, col := range series {
			row = append(row, strconv.FormatFloat(col[i], 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing factor row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
