package model

import "fmt"

// MinuteLevel is a time resolution the pipeline works at.
type MinuteLevel string

const (
	Level1Minute  MinuteLevel = "1_minute"
	Level5Minute  MinuteLevel = "5_minute"
	Level15Minute MinuteLevel = "15_minute"
	Level30Minute MinuteLevel = "30_minute"
	Level1Day     MinuteLevel = "1_day"
)

// AllLevels lists every supported resolution, intraday first.
var AllLevels = []MinuteLevel{
	Level1Minute, Level5Minute, Level15Minute, Level30Minute, Level1Day,
}

// ParseLevel validates a minute level string.
func ParseLevel(s string) (MinuteLevel, error) {
	for _, l := range AllLevels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown minute level %q", s)
}

// Interval maps a minute level to the Alpha Vantage interval parameter.
// The daily level has no intraday interval and uses TIME_SERIES_DAILY instead.
func (l MinuteLevel) Interval() string {
	switch l {
	case Level1Minute:
		return "1min"
	case Level5Minute:
		return "5min"
	case Level15Minute:
		return "15min"
	case Level30Minute:
		return "30min"
	default:
		return "daily"
	}
}

// Intraday reports whether the level is served by the intraday endpoint.
func (l MinuteLevel) Intraday() bool {
	return l != Level1Day
}

// CandlesPerDay estimates candle density for sizing backtest windows.
// Intraday counts assume the regular 6.5h US session.
func (l MinuteLevel) CandlesPerDay() int {
	switch l {
	case Level1Minute:
		return 390
	case Level5Minute:
		return 78
	case Level15Minute:
		return 26
	case Level30Minute:
		return 13
	default:
		return 1
	}
}

// PeriodsPerYear returns the annualization factor for Sharpe calculations.
func (l MinuteLevel) PeriodsPerYear() float64 {
	if l == Level1Day {
		return 252.0
	}
	return 252.0 * float64(l.CandlesPerDay())
}
