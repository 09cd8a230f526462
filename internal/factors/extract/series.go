package extract

import (
	"fmt"
	"math"

	"github.com/caesar-quant/caesar/internal/model"
)

// Series is a named factor series: one column per component, all aligned
// with the source candles.
type Series struct {
	Name    string
	Columns []string
	Values  [][]float64
}

// Default parameters, used when a factor spec does not pin them down.
const (
	DefaultMACDFast     = 12
	DefaultMACDSlow     = 26
	DefaultMACDSignal   = 9
	DefaultRSIPeriod    = 14
	DefaultBOLLPeriod   = 20
	DefaultBOLLStdMult  = 2.0
	DefaultEMAPeriod    = 10
	DefaultATRPeriod    = 14
	DefaultRSIBuyLevel  = 30.0
	DefaultRSISellLevel = 70.0
)

// emaSeries computes an exponential moving average over the whole series,
// seeded with the first value.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACDSeries computes the MACD factor: DIFF (fast EMA - slow EMA), DEA
// (EMA of DIFF), BAR (DIFF - DEA).
func MACDSeries(candles []model.Candle, fast, slow, signal int) Series {
	closes := model.Closes(candles)
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fastEMA[i] - slowEMA[i]
	}
	dea := emaSeries(diff, signal)
	bar := make([]float64, len(closes))
	for i := range closes {
		bar[i] = diff[i] - dea[i]
	}

	return Series{
		Name:    model.FactorMACD,
		Columns: []string{"DIFF", "DEA", "BAR"},
		Values:  [][]float64{diff, dea, bar},
	}
}

// RSISeries computes the RSI factor with Wilder smoothing. Entries inside
// the warm-up window hold the neutral value 50.
func RSISeries(candles []model.Candle, period int) Series {
	n := len(candles)
	rsi := make([]float64, n)
	for i := range rsi {
		rsi[i] = 50.0
	}
	if n < period+1 {
		return Series{Name: model.FactorRSI, Columns: []string{"RSI"}, Values: [][]float64{rsi}}
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	rsi[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = rsiValue(avgGain, avgLoss)
	}

	return Series{Name: model.FactorRSI, Columns: []string{"RSI"}, Values: [][]float64{rsi}}
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// BOLLSeries computes Bollinger bands: MIDDLE (SMA), UPPER, LOWER. Entries
// inside the warm-up window hold the close price for all three bands.
func BOLLSeries(candles []model.Candle, period int, stdMult float64) Series {
	n := len(candles)
	middle := make([]float64, n)
	upper := make([]float64, n)
	lower := make([]float64, n)

	for i := 0; i < n; i++ {
		if i < period-1 {
			middle[i] = candles[i].Close
			upper[i] = candles[i].Close
			lower[i] = candles[i].Close
			continue
		}

		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		mean := sum / float64(period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := candles[j].Close - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + sd*stdMult
		lower[i] = mean - sd*stdMult
	}

	return Series{
		Name:    model.FactorBOLL,
		Columns: []string{"MIDDLE", "UPPER", "LOWER"},
		Values:  [][]float64{middle, upper, lower},
	}
}

// EMASeries computes a single EMA over closes.
func EMASeries(candles []model.Candle, period int) Series {
	return Series{
		Name:    model.FactorEMA,
		Columns: []string{"EMA"},
		Values:  [][]float64{emaSeries(model.Closes(candles), period)},
	}
}

// ATRSeries computes the average true range with Wilder smoothing.
func ATRSeries(candles []model.Candle, period int) Series {
	n := len(candles)
	atr := make([]float64, n)
	if n == 0 {
		return Series{Name: "atr", Columns: []string{"ATR"}, Values: [][]float64{atr}}
	}

	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowClose := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highClose, lowClose))
	}

	var sum float64
	for i := 0; i < n && i < period; i++ {
		sum += tr[i]
		atr[i] = sum / float64(i+1)
	}
	for i := period; i < n; i++ {
		atr[i] = (atr[i-1]*float64(period-1) + tr[i]) / float64(period)
	}

	return Series{Name: "atr", Columns: []string{"ATR"}, Values: [][]float64{atr}}
}

// OBVSeries computes on-balance volume.
func OBVSeries(candles []model.Candle) Series {
	n := len(candles)
	obv := make([]float64, n)
	for i := 1; i < n; i++ {
		obv[i] = obv[i-1]
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv[i] += float64(candles[i].Volume)
		case candles[i].Close < candles[i-1].Close:
			obv[i] -= float64(candles[i].Volume)
		}
	}
	return Series{Name: "obv", Columns: []string{"OBV"}, Values: [][]float64{obv}}
}

// MomentumSeries computes close-over-close momentum at the given lag.
// Entries inside the warm-up window hold zero.
func MomentumSeries(candles []model.Candle, period int) Series {
	n := len(candles)
	mtm := make([]float64, n)
	for i := period; i < n; i++ {
		mtm[i] = candles[i].Close - candles[i-period].Close
	}
	return Series{Name: "mtm", Columns: []string{"MTM"}, Values: [][]float64{mtm}}
}

// ComputeSeries builds the series for a named factor using the given
// strategy parameters, falling back to defaults for unset fields.
func ComputeSeries(name string, candles []model.Candle, p model.StrategyParams) (Series, error) {
	switch name {
	case model.FactorMACD:
		fast, slow, signal := p.FastPeriod, p.SlowPeriod, p.SignalPeriod
		if fast == 0 {
			fast = DefaultMACDFast
		}
		if slow == 0 {
			slow = DefaultMACDSlow
		}
		if signal == 0 {
			signal = DefaultMACDSignal
		}
		return MACDSeries(candles, fast, slow, signal), nil
	case model.FactorRSI:
		period := p.Period
		if period == 0 {
			period = DefaultRSIPeriod
		}
		return RSISeries(candles, period), nil
	case model.FactorBOLL:
		period, mult := p.Period, p.StdMultiplier
		if period == 0 {
			period = DefaultBOLLPeriod
		}
		if mult == 0 {
			mult = DefaultBOLLStdMult
		}
		return BOLLSeries(candles, period, mult), nil
	case model.FactorEMA:
		period := p.Period
		if period == 0 {
			period = DefaultEMAPeriod
		}
		return EMASeries(candles, period), nil
	case "atr":
		period := p.Period
		if period == 0 {
			period = DefaultATRPeriod
		}
		return ATRSeries(candles, period), nil
	case "obv":
		return OBVSeries(candles), nil
	case "mtm":
		period := p.Period
		if period == 0 {
			period = DefaultEMAPeriod
		}
		return MomentumSeries(candles, period), nil
	default:
		return Series{}, fmt.Errorf("unknown factor %q", name)
	}
}
