package features

import (
	"fmt"
	"math"

	"github.com/caesar-quant/caesar/internal/model"
)

// Set holds engineered feature series aligned with the source candles.
// Entries before a feature's warm-up window are zero.
type Set struct {
	LogReturns  []float64 `json:"log_returns"`
	RollingMean []float64 `json:"rolling_mean"`
	RollingStd  []float64 `json:"rolling_std"`
	ZScore      []float64 `json:"z_score"`
	RangeRatio  []float64 `json:"range_ratio"`
	VolumeDelta []float64 `json:"volume_delta"`
	Window      int       `json:"window"`
}

// DefaultWindow is the rolling window used when none is configured.
const DefaultWindow = 20

// Compute engineers features from candle history. The window controls the
// rolling statistics; candles must hold at least window+1 entries.
func Compute(candles []model.Candle, window int) (*Set, error) {
	if window <= 1 {
		window = DefaultWindow
	}
	if len(candles) < window+1 {
		return nil, fmt.Errorf("need at least %d candles, got %d", window+1, len(candles))
	}

	n := len(candles)
	set := &Set{
		LogReturns:  make([]float64, n),
		RollingMean: make([]float64, n),
		RollingStd:  make([]float64, n),
		ZScore:      make([]float64, n),
		RangeRatio:  make([]float64, n),
		VolumeDelta: make([]float64, n),
		Window:      window,
	}

	for i := 1; i < n; i++ {
		prev := candles[i-1].Close
		if prev > 0 {
			set.LogReturns[i] = math.Log(candles[i].Close / prev)
		}
		if candles[i-1].Volume > 0 {
			set.VolumeDelta[i] = float64(candles[i].Volume-candles[i-1].Volume) / float64(candles[i-1].Volume)
		}
	}

	for i := 0; i < n; i++ {
		if candles[i].Close > 0 {
			set.RangeRatio[i] = (candles[i].High - candles[i].Low) / candles[i].Close
		}
	}

	for i := window - 1; i < n; i++ {
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		mean := sum / float64(window)

		var variance float64
		for j := i - window + 1; j <= i; j++ {
			diff := candles[j].Close - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(window))

		set.RollingMean[i] = mean
		set.RollingStd[i] = std
		if std > 0 {
			set.ZScore[i] = (candles[i].Close - mean) / std
		}
	}

	return set, nil
}

// Snapshot is the latest value of every feature, the shape served over the
// API and fed to the trainer as a quick market summary.
type Snapshot struct {
	LogReturn   float64 `json:"log_return"`
	RollingMean float64 `json:"rolling_mean"`
	RollingStd  float64 `json:"rolling_std"`
	ZScore      float64 `json:"z_score"`
	RangeRatio  float64 `json:"range_ratio"`
	VolumeDelta float64 `json:"volume_delta"`
}

// Latest returns the most recent feature values.
func (s *Set) Latest() Snapshot {
	last := len(s.LogReturns) - 1
	return Snapshot{
		LogReturn:   s.LogReturns[last],
		RollingMean: s.RollingMean[last],
		RollingStd:  s.RollingStd[last],
		ZScore:      s.ZScore[last],
		RangeRatio:  s.RangeRatio[last],
		VolumeDelta: s.VolumeDelta[last],
	}
}

// ForwardReturns computes the forward simple return over the given horizon
// for every candle; the final horizon entries are zero. The trainer
// correlates factor signals against this series.
func ForwardReturns(candles []model.Candle, horizon int) []float64 {
	n := len(candles)
	out := make([]float64, n)
	for i := 0; i+horizon < n; i++ {
		if candles[i].Close > 0 {
			out[i] = (candles[i+horizon].Close - candles[i].Close) / candles[i].Close
		}
	}
	return out
}
