package model

import "time"

// TradeRecord is a single validated signal inside a backtest.
type TradeRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Signal     string    `json:"signal"` // UP or DOWN
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	WasCorrect bool      `json:"was_correct"`
}

// BacktestResult stores the outcome of a historical simulation of one
// factor strategy on one symbol and resolution.
type BacktestResult struct {
	Symbol string         `json:"symbol" yaml:"symbol"`
	Level  MinuteLevel    `json:"minute_level" yaml:"minute_level"`
	Params StrategyParams `json:"params" yaml:"params"`

	TotalTrades    int     `json:"total_trades" yaml:"total_trades"`
	WinningTrades  int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades   int     `json:"losing_trades" yaml:"losing_trades"`
	WinPercentage  float64 `json:"win_percentage" yaml:"win_percentage"`
	AverageGain    float64 `json:"average_gain" yaml:"average_gain"`
	AverageLoss    float64 `json:"average_loss" yaml:"average_loss"`
	MaxConsecutive struct {
		Wins   int `json:"wins" yaml:"wins"`
		Losses int `json:"losses" yaml:"losses"`
	} `json:"max_consecutive" yaml:"max_consecutive"`
	ProfitFactor        float64            `json:"profit_factor" yaml:"profit_factor"`
	MaxDrawdown         float64            `json:"max_drawdown" yaml:"max_drawdown"`
	SharpeRatio         float64            `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	EquityCurve         []float64          `json:"equity_curve,omitempty" yaml:"-"`
	EquityGrowthPercent float64            `json:"equity_growth_percent" yaml:"equity_growth_percent"`
	MonthlyReturns      map[string]float64 `json:"monthly_returns,omitempty" yaml:"monthly_returns,omitempty"`
	TotalReturnPercent  float64            `json:"total_return_percent" yaml:"total_return_percent"`

	Trades      []TradeRecord `json:"trades,omitempty" yaml:"-"`
	CompletedAt time.Time     `json:"completed_at" yaml:"completed_at"`
}
