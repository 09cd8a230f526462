package extract

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

func risingCandles(n int) []model.Candle {
	return generateTestCandles(n, func(i int) model.Candle {
		price := 100 + float64(i)
		return model.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	})
}

func fallingCandles(n int) []model.Candle {
	return generateTestCandles(n, func(i int) model.Candle {
		price := 200 - float64(i)
		return model.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1000}
	})
}

func TestMACDSeriesTrend(t *testing.T) {
	s := MACDSeries(risingCandles(60), 12, 26, 9)
	if len(s.Columns) != 3 || s.Columns[0] != "DIFF" || s.Columns[1] != "DEA" || s.Columns[2] != "BAR" {
		t.Fatalf("unexpected columns: %v", s.Columns)
	}
	diff := s.Values[0]
	// In a steady uptrend the fast EMA stays above the slow one.
	if diff[len(diff)-1] <= 0 {
		t.Errorf("uptrend DIFF = %v, want > 0", diff[len(diff)-1])
	}

	s = MACDSeries(fallingCandles(60), 12, 26, 9)
	diff = s.Values[0]
	if diff[len(diff)-1] >= 0 {
		t.Errorf("downtrend DIFF = %v, want < 0", diff[len(diff)-1])
	}
}

func TestRSISeriesBounds(t *testing.T) {
	tests := []struct {
		name    string
		candles []model.Candle
		check   func(last float64) bool
		desc    string
	}{
		{"all gains", risingCandles(40), func(v float64) bool { return v > 70 }, "> 70"},
		{"all losses", fallingCandles(40), func(v float64) bool { return v < 30 }, "< 30"},
		{
			"flat", generateTestCandles(40, func(i int) model.Candle {
				return model.Candle{Open: 100, High: 100, Low: 100, Close: 100}
			}),
			func(v float64) bool { return v == 50 }, "== 50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := RSISeries(tt.candles, 14)
			rsi := s.Values[0]
			last := rsi[len(rsi)-1]
			if last < 0 || last > 100 {
				t.Fatalf("RSI out of bounds: %v", last)
			}
			if !tt.check(last) {
				t.Errorf("RSI = %v, want %s", last, tt.desc)
			}
		})
	}
}

func TestBOLLSeriesOrdering(t *testing.T) {
	candles := generateTestCandles(50, func(i int) model.Candle {
		price := 100 + 5*math.Sin(float64(i)/3)
		return model.Candle{Open: price, High: price + 1, Low: price - 1, Close: price}
	})
	s := BOLLSeries(candles, 20, 2.0)
	middle, upper, lower := s.Values[0], s.Values[1], s.Values[2]
	for i := 20; i < len(candles); i++ {
		if upper[i] < middle[i] || middle[i] < lower[i] {
			t.Fatalf("band ordering violated at %d: lower=%v middle=%v upper=%v", i, lower[i], middle[i], upper[i])
		}
	}
}

func TestATRSeriesPositive(t *testing.T) {
	s := ATRSeries(risingCandles(30), 14)
	atr := s.Values[0]
	if atr[len(atr)-1] <= 0 {
		t.Errorf("ATR = %v, want > 0", atr[len(atr)-1])
	}
}

func TestOBVSeriesDirection(t *testing.T) {
	s := OBVSeries(risingCandles(10))
	obv := s.Values[0]
	if obv[len(obv)-1] <= 0 {
		t.Errorf("rising OBV = %v, want > 0", obv[len(obv)-1])
	}

	s = OBVSeries(fallingCandles(10))
	obv = s.Values[0]
	if obv[len(obv)-1] >= 0 {
		t.Errorf("falling OBV = %v, want < 0", obv[len(obv)-1])
	}
}

func TestMomentumSeriesLag(t *testing.T) {
	s := MomentumSeries(risingCandles(30), 10)
	mtm := s.Values[0]
	for i := 0; i < 10; i++ {
		if mtm[i] != 0 {
			t.Fatalf("warm-up MTM[%d] = %v, want 0", i, mtm[i])
		}
	}
	// Prices rise by 1 per candle, so 10-bar momentum is 10.
	if mtm[len(mtm)-1] != 10 {
		t.Errorf("MTM = %v, want 10", mtm[len(mtm)-1])
	}
}

func TestComputeSeriesUnknownFactor(t *testing.T) {
	if _, err := ComputeSeries("kdj", risingCandles(10), model.StrategyParams{}); err == nil {
		t.Error("ComputeSeries() expected error for unknown factor")
	}
}

func TestDirectionsRSIThresholds(t *testing.T) {
	params := model.StrategyParams{
		Factor:        model.FactorRSI,
		Period:        14,
		BuyThreshold:  30,
		SellThreshold: 70,
	}

	directions, err := Directions(risingCandles(40), params)
	if err != nil {
		t.Fatalf("Directions() error = %v", err)
	}
	if got := directions[len(directions)-1]; got != SignalDown {
		t.Errorf("overbought direction = %q, want DOWN", got)
	}

	directions, err = Directions(fallingCandles(40), params)
	if err != nil {
		t.Fatalf("Directions() error = %v", err)
	}
	if got := directions[len(directions)-1]; got != SignalUp {
		t.Errorf("oversold direction = %q, want UP", got)
	}
}

func TestScoresAlignedAndFinite(t *testing.T) {
	candles := risingCandles(60)
	for _, factor := range []string{model.FactorMACD, model.FactorRSI, model.FactorBOLL, model.FactorEMA} {
		scores, err := Scores(candles, model.StrategyParams{Factor: factor})
		if err != nil {
			t.Fatalf("Scores(%s) error = %v", factor, err)
		}
		if len(scores) != len(candles) {
			t.Fatalf("Scores(%s) length = %d, want %d", factor, len(scores), len(candles))
		}
		for i, v := range scores {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("Scores(%s)[%d] = %v", factor, i, v)
			}
		}
	}
}
