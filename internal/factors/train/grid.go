package train

import (
	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/model"
)

// ExpandGrid turns a factor spec into the list of candidate parameter sets
// its trainer searches. Empty dimensions fall back to a single default so a
// bare spec still trains.
func ExpandGrid(spec config.FactorSpec) []model.StrategyParams {
	switch spec.Name {
	case model.FactorMACD:
		fasts := orDefaultInts(spec.FastPeriods, extract.DefaultMACDFast)
		slows := orDefaultInts(spec.SlowPeriods, extract.DefaultMACDSlow)
		signals := orDefaultInts(spec.SignalPeriods, extract.DefaultMACDSignal)

		var out []model.StrategyParams
		for _, fast := range fasts {
			for _, slow := range slows {
				if fast >= slow {
					continue
				}
				for _, signal := range signals {
					out = append(out, model.StrategyParams{
						Factor:       model.FactorMACD,
						FastPeriod:   fast,
						SlowPeriod:   slow,
						SignalPeriod: signal,
					})
				}
			}
		}
		return out

	case model.FactorRSI:
		periods := orDefaultInts(spec.Periods, extract.DefaultRSIPeriod)
		buys := orDefaultFloats(spec.BuyThresholds, extract.DefaultRSIBuyLevel)
		sells := orDefaultFloats(spec.SellThresholds, extract.DefaultRSISellLevel)

		var out []model.StrategyParams
		for _, period := range periods {
			for _, buy := range buys {
				for _, sell := range sells {
					if buy >= sell {
						continue
					}
					out = append(out, model.StrategyParams{
						Factor:        model.FactorRSI,
						Period:        period,
						BuyThreshold:  buy,
						SellThreshold: sell,
					})
				}
			}
		}
		return out

	case model.FactorBOLL:
		periods := orDefaultInts(spec.Periods, extract.DefaultBOLLPeriod)
		mults := orDefaultFloats(spec.StdMultipliers, extract.DefaultBOLLStdMult)

		var out []model.StrategyParams
		for _, period := range periods {
			for _, mult := range mults {
				out = append(out, model.StrategyParams{
					Factor:        model.FactorBOLL,
					Period:        period,
					StdMultiplier: mult,
				})
			}
		}
		return out

	case model.FactorEMA:
		var out []model.StrategyParams
		for _, period := range orDefaultInts(spec.Periods, extract.DefaultEMAPeriod) {
			out = append(out, model.StrategyParams{
				Factor: model.FactorEMA,
				Period: period,
			})
		}
		return out
	}

	return nil
}

func orDefaultInts(values []int, def int) []int {
	if len(values) == 0 {
		return []int{def}
	}
	return values
}

func orDefaultFloats(values []float64, def float64) []float64 {
	if len(values) == 0 {
		return []float64{def}
	}
	return values
}
