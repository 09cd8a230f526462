package features

import (
	"math"
	"testing"
	"time"

	"github.com/caesar-quant/caesar/internal/model"
)

func generateTestCandles(n int, generator func(int) model.Candle) []model.Candle {
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
		candles[i].Timestamp = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	}
	return candles
}

func flatCandles(n int, price float64) []model.Candle {
	return generateTestCandles(n, func(i int) model.Candle {
		return model.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	})
}

func TestComputeInsufficientData(t *testing.T) {
	if _, err := Compute(flatCandles(5, 100), 20); err == nil {
		t.Error("Compute() expected error with too few candles")
	}
}

func TestComputeFlatSeries(t *testing.T) {
	set, err := Compute(flatCandles(30, 100), 10)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	last := set.Latest()
	if last.LogReturn != 0 {
		t.Errorf("flat series log return = %v, want 0", last.LogReturn)
	}
	if last.RollingMean != 100 {
		t.Errorf("rolling mean = %v, want 100", last.RollingMean)
	}
	if last.RollingStd != 0 {
		t.Errorf("rolling std = %v, want 0", last.RollingStd)
	}
	// Zero std must not produce NaN z-scores.
	if math.IsNaN(last.ZScore) || last.ZScore != 0 {
		t.Errorf("z-score = %v, want 0", last.ZScore)
	}
	if got, want := last.RangeRatio, 2.0/100.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("range ratio = %v, want %v", got, want)
	}
}

func TestComputeTrendingSeries(t *testing.T) {
	candles := generateTestCandles(40, func(i int) model.Candle {
		price := 100 + float64(i)
		return model.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: int64(1000 + i*10)}
	})

	set, err := Compute(candles, 10)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	last := set.Latest()
	if last.LogReturn <= 0 {
		t.Errorf("uptrend log return = %v, want > 0", last.LogReturn)
	}
	if last.ZScore <= 0 {
		t.Errorf("uptrend z-score = %v, want > 0", last.ZScore)
	}
	if last.VolumeDelta <= 0 {
		t.Errorf("rising volume delta = %v, want > 0", last.VolumeDelta)
	}
}

func TestForwardReturns(t *testing.T) {
	candles := generateTestCandles(5, func(i int) model.Candle {
		return model.Candle{Close: 100 + float64(i)*10}
	})

	fwd := ForwardReturns(candles, 1)
	if got, want := fwd[0], 0.1; math.Abs(got-want) > 1e-12 {
		t.Errorf("forward return[0] = %v, want %v", got, want)
	}
	// Tail entries beyond the horizon stay zero.
	if fwd[len(fwd)-1] != 0 {
		t.Errorf("forward return tail = %v, want 0", fwd[len(fwd)-1])
	}
}
