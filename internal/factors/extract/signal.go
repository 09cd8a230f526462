package extract

import (
	"fmt"

	"github.com/caesar-quant/caesar/internal/model"
)

// Trade signal directions.
const (
	SignalUp      = "UP"
	SignalDown    = "DOWN"
	SignalNeutral = "NEUTRAL"
)

// Scores produces a continuous per-candle signal for a strategy. Positive
// values predict a rising close, negative values a falling one. The trainer
// correlates this series against forward returns.
func Scores(candles []model.Candle, p model.StrategyParams) ([]float64, error) {
	n := len(candles)
	scores := make([]float64, n)

	switch p.Factor {
	case model.FactorMACD:
		s, err := ComputeSeries(model.FactorMACD, candles, p)
		if err != nil {
			return nil, err
		}
		bar := s.Values[2]
		for i := range scores {
			if candles[i].Close > 0 {
				scores[i] = bar[i] / candles[i].Close
			}
		}
	case model.FactorRSI:
		s, err := ComputeSeries(model.FactorRSI, candles, p)
		if err != nil {
			return nil, err
		}
		rsi := s.Values[0]
		// Mean reversion: deep oversold scores positive.
		for i := range scores {
			scores[i] = (50.0 - rsi[i]) / 50.0
		}
	case model.FactorBOLL:
		s, err := ComputeSeries(model.FactorBOLL, candles, p)
		if err != nil {
			return nil, err
		}
		upper, lower := s.Values[1], s.Values[2]
		for i := range scores {
			width := upper[i] - lower[i]
			if width <= 0 {
				continue
			}
			// %B position in the band, centered: below the middle is
			// positive (mean reversion entry).
			position := (candles[i].Close - lower[i]) / width
			scores[i] = 0.5 - position
		}
	case model.FactorEMA:
		s, err := ComputeSeries(model.FactorEMA, candles, p)
		if err != nil {
			return nil, err
		}
		ema := s.Values[0]
		// Trend following: price above its EMA scores positive.
		for i := range scores {
			if ema[i] > 0 {
				scores[i] = (candles[i].Close - ema[i]) / ema[i]
			}
		}
	default:
		return nil, fmt.Errorf("unknown factor %q", p.Factor)
	}

	return scores, nil
}

// Directions produces the discrete trade signal per candle. Strategies only
// act at their entry thresholds; everything else is NEUTRAL.
func Directions(candles []model.Candle, p model.StrategyParams) ([]string, error) {
	n := len(candles)
	directions := make([]string, n)
	for i := range directions {
		directions[i] = SignalNeutral
	}

	switch p.Factor {
	case model.FactorMACD:
		s, err := ComputeSeries(model.FactorMACD, candles, p)
		if err != nil {
			return nil, err
		}
		diff, dea := s.Values[0], s.Values[1]
		// Golden cross / death cross.
		for i := 1; i < n; i++ {
			if diff[i] > dea[i] && diff[i-1] <= dea[i-1] {
				directions[i] = SignalUp
			} else if diff[i] < dea[i] && diff[i-1] >= dea[i-1] {
				directions[i] = SignalDown
			}
		}
	case model.FactorRSI:
		s, err := ComputeSeries(model.FactorRSI, candles, p)
		if err != nil {
			return nil, err
		}
		buy, sell := p.BuyThreshold, p.SellThreshold
		if buy == 0 {
			buy = DefaultRSIBuyLevel
		}
		if sell == 0 {
			sell = DefaultRSISellLevel
		}
		rsi := s.Values[0]
		for i := range directions {
			if rsi[i] < buy {
				directions[i] = SignalUp
			} else if rsi[i] > sell {
				directions[i] = SignalDown
			}
		}
	case model.FactorBOLL:
		s, err := ComputeSeries(model.FactorBOLL, candles, p)
		if err != nil {
			return nil, err
		}
		upper, lower := s.Values[1], s.Values[2]
		for i := range directions {
			if candles[i].Close < lower[i] {
				directions[i] = SignalUp
			} else if candles[i].Close > upper[i] {
				directions[i] = SignalDown
			}
		}
	case model.FactorEMA:
		s, err := ComputeSeries(model.FactorEMA, candles, p)
		if err != nil {
			return nil, err
		}
		ema := s.Values[0]
		for i := 1; i < n; i++ {
			if candles[i].Close > ema[i] && candles[i-1].Close <= ema[i-1] {
				directions[i] = SignalUp
			} else if candles[i].Close < ema[i] && candles[i-1].Close >= ema[i-1] {
				directions[i] = SignalDown
			}
		}
	default:
		return nil, fmt.Errorf("unknown factor %q", p.Factor)
	}

	return directions, nil
}
