package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/caesar-quant/caesar/internal/model"
)

// DB represents a database connection.
type DB struct {
	*sql.DB
}

// New opens a PostgreSQL connection from a connection URL and ensures the
// schema exists.
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist.
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS best_strategies (
			symbol TEXT NOT NULL,
			minute_level TEXT NOT NULL,
			params JSONB NOT NULL,
			ic DOUBLE PRECISION NOT NULL,
			hit_rate DOUBLE PRECISION NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			candidates INT NOT NULL,
			trained_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (symbol, minute_level)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_results (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			minute_level TEXT NOT NULL,
			params JSONB NOT NULL,
			total_trades INT NOT NULL,
			winning_trades INT NOT NULL,
			win_percentage DOUBLE PRECISION NOT NULL,
			profit_factor DOUBLE PRECISION NOT NULL,
			max_drawdown DOUBLE PRECISION NOT NULL,
			sharpe_ratio DOUBLE PRECISION NOT NULL,
			total_return_percent DOUBLE PRECISION NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// SaveBestStrategy upserts the best strategy for a symbol/level.
func (db *DB) SaveBestStrategy(report model.TrainReport) error {
	params, err := json.Marshal(report.Best)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO best_strategies (
			symbol, minute_level, params, ic, hit_rate, score, candidates, trained_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, minute_level)
		DO UPDATE SET
			params = EXCLUDED.params,
			ic = EXCLUDED.ic,
			hit_rate = EXCLUDED.hit_rate,
			score = EXCLUDED.score,
			candidates = EXCLUDED.candidates,
			trained_at = EXCLUDED.trained_at
	`,
		report.Symbol, string(report.Level), params,
		report.IC, report.HitRate, report.Score, report.Candidates, report.TrainedAt)
	return err
}

// GetBestStrategy retrieves the best strategy for a symbol/level. A missing
// row returns (nil, nil).
func (db *DB) GetBestStrategy(symbol string, level model.MinuteLevel) (*model.TrainReport, error) {
	var report model.TrainReport
	var levelStr string
	var params []byte

	err := db.QueryRow(`
		SELECT symbol, minute_level, params, ic, hit_rate, score, candidates, trained_at
		FROM best_strategies
		WHERE symbol = $1 AND minute_level = $2
	`, symbol, string(level)).Scan(
		&report.Symbol, &levelStr, &params,
		&report.IC, &report.HitRate, &report.Score, &report.Candidates, &report.TrainedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	report.Level = model.MinuteLevel(levelStr)
	if err := json.Unmarshal(params, &report.Best); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}
	return &report, nil
}

// SaveBacktest appends a backtest result.
func (db *DB) SaveBacktest(result model.BacktestResult) error {
	params, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO backtest_results (
			symbol, minute_level, params, total_trades, winning_trades,
			win_percentage, profit_factor, max_drawdown, sharpe_ratio,
			total_return_percent, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		result.Symbol, string(result.Level), params,
		result.TotalTrades, result.WinningTrades,
		result.WinPercentage, result.ProfitFactor, result.MaxDrawdown,
		result.SharpeRatio, result.TotalReturnPercent, result.CompletedAt)
	return err
}

// ListBacktests returns the most recent backtest summaries for a symbol,
// newest first.
func (db *DB) ListBacktests(symbol string, limit int) ([]model.BacktestResult, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT symbol, minute_level, params, total_trades, winning_trades,
		       win_percentage, profit_factor, max_drawdown, sharpe_ratio,
		       total_return_percent, completed_at
		FROM backtest_results
		WHERE symbol = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.BacktestResult
	for rows.Next() {
		var r model.BacktestResult
		var levelStr string
		var params []byte
		if err := rows.Scan(
			&r.Symbol, &levelStr, &params, &r.TotalTrades, &r.WinningTrades,
			&r.WinPercentage, &r.ProfitFactor, &r.MaxDrawdown, &r.SharpeRatio,
			&r.TotalReturnPercent, &r.CompletedAt,
		); err != nil {
			return nil, err
		}
		r.Level = model.MinuteLevel(levelStr)
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return nil, fmt.Errorf("unmarshaling params: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
