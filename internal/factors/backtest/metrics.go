package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/caesar-quant/caesar/internal/model"
)

// calculateMetrics computes performance metrics from the accumulated trades.
func (e *Engine) calculateMetrics(result *model.BacktestResult, totalProfit, totalLoss, maxDrawdown float64, level model.MinuteLevel) {
	if result.TotalTrades > 0 {
		result.WinPercentage = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	}

	if result.WinningTrades > 0 {
		result.AverageGain = totalProfit / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AverageLoss = totalLoss / float64(result.LosingTrades)
	}

	if totalLoss > 0 {
		result.ProfitFactor = totalProfit / totalLoss
	} else {
		result.ProfitFactor = totalProfit
	}

	result.MaxDrawdown = maxDrawdown * 100

	if len(result.EquityCurve) > 1 {
		initial := result.EquityCurve[0]
		final := result.EquityCurve[len(result.EquityCurve)-1]
		result.EquityGrowthPercent = (final - initial) / initial * 100
		result.TotalReturnPercent = result.EquityGrowthPercent

		var returns []float64
		for i := 1; i < len(result.EquityCurve); i++ {
			prev := result.EquityCurve[i-1]
			if prev > 0 {
				returns = append(returns, (result.EquityCurve[i]-prev)/prev)
			}
		}
		meanReturn := mean(returns)
		sd := stdDev(returns, meanReturn)
		if sd > 0 {
			result.SharpeRatio = meanReturn / sd * math.Sqrt(level.PeriodsPerYear())
		}
	}

	// Monthly pnl to percent of starting capital.
	for month, pnl := range result.MonthlyReturns {
		result.MonthlyReturns[month] = pnl / e.initialBalance * 100
	}
}

// FormatResults creates a human-readable summary of backtest results.
func FormatResults(result *model.BacktestResult) string {
	if result == nil {
		return "No backtest results available"
	}

	output := "\n===== BACKTEST RESULTS =====\n"
	output += fmt.Sprintf("Symbol: %s (%s, %s)\n", result.Symbol, result.Level, result.Params.Factor)
	output += fmt.Sprintf("Total trades: %d\n", result.TotalTrades)
	output += fmt.Sprintf("Winning trades: %d (%.2f%%)\n", result.WinningTrades, result.WinPercentage)
	output += fmt.Sprintf("Total return: %.2f%%\n", result.TotalReturnPercent)
	output += fmt.Sprintf("Average gain: %.2f\n", result.AverageGain)
	output += fmt.Sprintf("Average loss: %.2f\n", result.AverageLoss)
	output += fmt.Sprintf("Profit factor: %.2f\n", result.ProfitFactor)
	output += fmt.Sprintf("Maximum drawdown: %.2f%%\n", result.MaxDrawdown)
	output += fmt.Sprintf("Sharpe ratio: %.2f\n", result.SharpeRatio)
	output += fmt.Sprintf("Max consecutive wins: %d\n", result.MaxConsecutive.Wins)
	output += fmt.Sprintf("Max consecutive losses: %d\n", result.MaxConsecutive.Losses)

	if len(result.MonthlyReturns) > 0 {
		output += "\nMonthly returns:\n"

		// Sort months for chronological display.
		months := make([]string, 0, len(result.MonthlyReturns))
		for month := range result.MonthlyReturns {
			months = append(months, month)
		}
		sort.Strings(months)

		for _, month := range months {
			returnValue := result.MonthlyReturns[month]
			sign := ""
			if returnValue > 0 {
				sign = "+"
			}
			output += fmt.Sprintf("- %s: %s%.2f%%\n", month, sign, returnValue)
		}
	}

	output += fmt.Sprintf("\nTotal equity growth: %.2f%%\n", result.EquityGrowthPercent)
	return output
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(len(values)-1))
}
