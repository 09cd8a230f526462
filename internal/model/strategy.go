package model

import "time"

// Factor names understood by the extractor and trainer.
const (
	FactorMACD = "macd"
	FactorRSI  = "rsi"
	FactorBOLL = "boll"
	FactorEMA  = "ema"
)

// StrategyParams holds the tunable parameters of a single factor strategy.
// Only the fields relevant to the named factor are used.
type StrategyParams struct {
	Factor string `json:"factor" yaml:"factor"`

	// MACD
	FastPeriod   int `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod   int `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	SignalPeriod int `json:"signal_period,omitempty" yaml:"signal_period,omitempty"`

	// RSI, BOLL, EMA
	Period int `json:"period,omitempty" yaml:"period,omitempty"`

	// BOLL band width.
	StdMultiplier float64 `json:"std_multiplier,omitempty" yaml:"std_multiplier,omitempty"`

	// RSI entry/exit bounds.
	BuyThreshold  float64 `json:"buy_threshold,omitempty" yaml:"buy_threshold,omitempty"`
	SellThreshold float64 `json:"sell_threshold,omitempty" yaml:"sell_threshold,omitempty"`
}

// TrainReport records the outcome of a training run for one symbol/level.
type TrainReport struct {
	Symbol     string         `json:"symbol" yaml:"symbol"`
	Level      MinuteLevel    `json:"minute_level" yaml:"minute_level"`
	Best       StrategyParams `json:"best" yaml:"best"`
	IC         float64        `json:"ic" yaml:"ic"`
	HitRate    float64        `json:"hit_rate" yaml:"hit_rate"`
	Score      float64        `json:"score" yaml:"score"`
	Candidates int            `json:"candidates" yaml:"candidates"`
	TrainedAt  time.Time      `json:"trained_at" yaml:"trained_at"`
}
