package train

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/features"
	"github.com/caesar-quant/caesar/internal/model"
)

// MinCandles is the minimum history a training run needs: enough for
// indicator warm-up on the fit window plus a meaningful holdout.
const MinCandles = 120

// holdoutFraction of the history is reserved for scoring the winner.
const holdoutFraction = 0.3

// Trainer grid-searches factor parameters and scores candidates by
// information coefficient and directional hit rate.
type Trainer struct {
	horizon int
	logger  zerolog.Logger
}

// NewTrainer creates a trainer validating signals against the next-candle
// forward return.
func NewTrainer() *Trainer {
	return &Trainer{
		horizon: 1,
		logger:  log.With().Str("component", "trainer").Logger(),
	}
}

// Train evaluates the spec's parameter grid on the fit window, then scores
// the winner on the holdout. Candles must be oldest-first.
func (t *Trainer) Train(symbol string, level model.MinuteLevel, candles []model.Candle, spec config.FactorSpec) (model.TrainReport, error) {
	if len(candles) < MinCandles {
		return model.TrainReport{}, fmt.Errorf("insufficient history for training, got %d candles, need %d", len(candles), MinCandles)
	}

	candidates := ExpandGrid(spec)
	if len(candidates) == 0 {
		return model.TrainReport{}, fmt.Errorf("factor %q produced no candidates", spec.Name)
	}

	split := int(float64(len(candles)) * (1 - holdoutFraction))
	fit := candles[:split]
	fitFwd := features.ForwardReturns(fit, t.horizon)

	best := candidates[0]
	bestScore := math.Inf(-1)
	for _, candidate := range candidates {
		eval, err := t.evaluate(fit, fitFwd, candidate)
		if err != nil {
			return model.TrainReport{}, err
		}
		if eval.score > bestScore {
			bestScore = eval.score
			best = candidate
		}
	}

	// Score the winner out of sample. The holdout still needs the full
	// history for indicator warm-up, so signals are computed on everything
	// and only holdout entries are correlated.
	fullFwd := features.ForwardReturns(candles, t.horizon)
	holdout, err := t.evaluateRange(candles, fullFwd, best, split, len(candles)-t.horizon)
	if err != nil {
		return model.TrainReport{}, err
	}

	report := model.TrainReport{
		Symbol:     symbol,
		Level:      level,
		Best:       best,
		IC:         holdout.ic,
		HitRate:    holdout.hitRate,
		Score:      holdout.score,
		Candidates: len(candidates),
		TrainedAt:  time.Now().UTC(),
	}

	t.logger.Info().
		Str("symbol", symbol).
		Str("level", string(level)).
		Str("factor", best.Factor).
		Int("candidates", len(candidates)).
		Float64("ic", report.IC).
		Float64("hit_rate", report.HitRate).
		Msg("Training complete")
	return report, nil
}

type evaluation struct {
	ic      float64
	hitRate float64
	score   float64
}

func (t *Trainer) evaluate(candles []model.Candle, fwd []float64, p model.StrategyParams) (evaluation, error) {
	// Skip the first quarter as indicator warm-up.
	start := len(candles) / 4
	return t.evaluateRange(candles, fwd, p, start, len(candles)-t.horizon)
}

func (t *Trainer) evaluateRange(candles []model.Candle, fwd []float64, p model.StrategyParams, start, end int) (evaluation, error) {
	scores, err := extract.Scores(candles, p)
	if err != nil {
		return evaluation{}, err
	}
	if start < 0 {
		start = 0
	}
	if end > len(scores) {
		end = len(scores)
	}
	if end-start < 2 {
		return evaluation{}, fmt.Errorf("evaluation window too small: [%d, %d)", start, end)
	}

	ic := pearson(scores[start:end], fwd[start:end])

	var hits, signals int
	for i := start; i < end; i++ {
		if scores[i] == 0 || fwd[i] == 0 {
			continue
		}
		signals++
		if (scores[i] > 0) == (fwd[i] > 0) {
			hits++
		}
	}
	hitRate := 0.5
	if signals > 0 {
		hitRate = float64(hits) / float64(signals)
	}

	return evaluation{
		ic:      ic,
		hitRate: hitRate,
		score:   compositeScore(ic, hitRate),
	}, nil
}

// compositeScore ranks candidates: IC magnitude dominates, edge over a coin
// flip breaks ties.
func compositeScore(ic, hitRate float64) float64 {
	return 0.7*math.Abs(ic) + 0.3*math.Max(0, hitRate-0.5)*2
}

// pearson computes the Pearson correlation of two equal-length series.
// Degenerate (constant) series correlate at zero.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
