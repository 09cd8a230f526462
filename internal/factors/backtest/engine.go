package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/model"
)

// MinCandles is the minimum history a backtest accepts.
const MinCandles = 100

// Engine simulates a factor strategy over historical candles.
type Engine struct {
	initialBalance float64
	horizon        int
	logger         zerolog.Logger
}

// NewEngine creates a backtesting engine.
func NewEngine() *Engine {
	return &Engine{
		initialBalance: 10000.0,
		horizon:        1,
		logger:         log.With().Str("component", "backtest").Logger(),
	}
}

// SetInitialBalance sets the starting capital.
func (e *Engine) SetInitialBalance(value float64) {
	if value > 0 {
		e.initialBalance = value
	}
}

// Run executes a backtest of the strategy over the candle history. Candles
// must be oldest-first. Each non-neutral signal opens a full-balance
// position closed after the validation horizon.
func (e *Engine) Run(symbol string, level model.MinuteLevel, candles []model.Candle, params model.StrategyParams) (*model.BacktestResult, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("insufficient historical data for backtesting, got %d candles", len(candles))
	}

	directions, err := extract.Directions(candles, params)
	if err != nil {
		return nil, fmt.Errorf("computing signals: %w", err)
	}

	result := &model.BacktestResult{
		Symbol:         symbol,
		Level:          level,
		Params:         params,
		MonthlyReturns: make(map[string]float64),
	}

	// Skip the first quarter of history as indicator warm-up.
	start := len(candles) / 4
	end := len(candles) - e.horizon

	var totalProfit, totalLoss float64
	consecutiveWins := 0
	consecutiveLosses := 0

	balance := e.initialBalance
	equityCurve := []float64{balance}
	highWaterMark := balance
	maxDrawdown := 0.0

	for i := start; i < end; i++ {
		direction := directions[i]
		if direction == extract.SignalNeutral {
			continue
		}

		entry := candles[i].Close
		exit := candles[i+e.horizon].Close
		if entry <= 0 {
			continue
		}

		tradeReturn := (exit - entry) / entry
		if direction == extract.SignalDown {
			tradeReturn = -tradeReturn
		}
		pnl := balance * tradeReturn
		balance += pnl

		wasCorrect := pnl > 0
		result.Trades = append(result.Trades, model.TradeRecord{
			Timestamp:  candles[i].Timestamp,
			Signal:     direction,
			EntryPrice: entry,
			ExitPrice:  exit,
			PnL:        pnl,
			WasCorrect: wasCorrect,
		})
		result.TotalTrades++

		if wasCorrect {
			result.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			totalProfit += pnl
		} else {
			result.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			totalLoss += -pnl
		}

		if consecutiveWins > result.MaxConsecutive.Wins {
			result.MaxConsecutive.Wins = consecutiveWins
		}
		if consecutiveLosses > result.MaxConsecutive.Losses {
			result.MaxConsecutive.Losses = consecutiveLosses
		}

		equityCurve = append(equityCurve, balance)
		if balance > highWaterMark {
			highWaterMark = balance
		} else if highWaterMark > 0 {
			drawdown := (highWaterMark - balance) / highWaterMark
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}

		month := candles[i].Timestamp.Format("2006-01")
		result.MonthlyReturns[month] += pnl
	}

	result.EquityCurve = equityCurve
	result.CompletedAt = time.Now().UTC()
	e.calculateMetrics(result, totalProfit, totalLoss, maxDrawdown, level)

	e.logger.Info().
		Str("symbol", symbol).
		Str("level", string(level)).
		Str("factor", params.Factor).
		Int("trades", result.TotalTrades).
		Float64("win_pct", result.WinPercentage).
		Float64("return_pct", result.TotalReturnPercent).
		Msg("Backtest complete")
	return result, nil
}
