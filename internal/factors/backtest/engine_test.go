package backtest

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/caesar-quant/caesar/internal/model"
)

func generateTestCandles(n int, generator func(int) model.Candle) []model.Candle {
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
		candles[i].Timestamp = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC).Add(time.Duration(i) * 24 * time.Hour)
	}
	return candles
}

func oscillatingCandles(n int) []model.Candle {
	return generateTestCandles(n, func(i int) model.Candle {
		price := 100 + 10*math.Sin(float64(i)/5)
		return model.Candle{
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	})
}

func rsiParams() model.StrategyParams {
	return model.StrategyParams{
		Factor:        model.FactorRSI,
		Period:        7,
		BuyThreshold:  35,
		SellThreshold: 65,
	}
}

func TestRunInsufficientData(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(50), rsiParams()); err == nil {
		t.Error("Run() expected error with short history")
	}
}

func TestRunProducesConsistentCounts(t *testing.T) {
	engine := NewEngine()
	result, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(300), rsiParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.TotalTrades == 0 {
		t.Fatal("oscillating series produced no trades")
	}
	if result.WinningTrades+result.LosingTrades != result.TotalTrades {
		t.Errorf("wins (%d) + losses (%d) != total (%d)",
			result.WinningTrades, result.LosingTrades, result.TotalTrades)
	}
	if len(result.Trades) != result.TotalTrades {
		t.Errorf("trade records = %d, total trades = %d", len(result.Trades), result.TotalTrades)
	}
	if result.WinPercentage < 0 || result.WinPercentage > 100 {
		t.Errorf("win percentage out of range: %v", result.WinPercentage)
	}
	// Equity curve holds the initial balance plus one entry per trade.
	if len(result.EquityCurve) != result.TotalTrades+1 {
		t.Errorf("equity curve length = %d, want %d", len(result.EquityCurve), result.TotalTrades+1)
	}
	if result.MaxDrawdown < 0 {
		t.Errorf("max drawdown = %v, want >= 0", result.MaxDrawdown)
	}
	if result.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestRunMeanReversionIsProfitable(t *testing.T) {
	// A clean oscillation is the ideal market for an RSI mean-reversion
	// strategy; the simulation should end above its starting balance.
	engine := NewEngine()
	engine.SetInitialBalance(10000)

	result, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(400), rsiParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.WinPercentage <= 50 {
		t.Errorf("win percentage = %v, want > 50 on a clean oscillation", result.WinPercentage)
	}
	if result.TotalReturnPercent <= 0 {
		t.Errorf("total return = %v%%, want > 0 on a clean oscillation", result.TotalReturnPercent)
	}
}

func TestRunTradePnLMatchesEquity(t *testing.T) {
	engine := NewEngine()
	engine.SetInitialBalance(5000)

	result, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(300), rsiParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var totalPnL float64
	for _, trade := range result.Trades {
		totalPnL += trade.PnL
	}
	final := result.EquityCurve[len(result.EquityCurve)-1]
	if math.Abs(5000+totalPnL-final) > 1e-6 {
		t.Errorf("sum of trade pnl (%v) does not reconcile with final equity (%v)", totalPnL, final)
	}
}

func TestMonthlyReturnsArePercentages(t *testing.T) {
	engine := NewEngine()
	result, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(300), rsiParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.MonthlyReturns) == 0 {
		t.Fatal("no monthly returns recorded")
	}
	for month, pct := range result.MonthlyReturns {
		if math.Abs(pct) > 100 {
			t.Errorf("monthly return %s = %v%%, implausibly large", month, pct)
		}
	}
}

func TestFormatResults(t *testing.T) {
	if got := FormatResults(nil); got != "No backtest results available" {
		t.Errorf("FormatResults(nil) = %q", got)
	}

	engine := NewEngine()
	result, err := engine.Run("AAPL", model.Level1Day, oscillatingCandles(300), rsiParams())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := FormatResults(result)
	for _, want := range []string{"BACKTEST RESULTS", "AAPL", "Total trades:", "Profit factor:", "Monthly returns:"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatResults() missing %q", want)
		}
	}
}
