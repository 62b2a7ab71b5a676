package domain

import (
	"github.com/shopspring/decimal"
)

// ScoringStrategy ranks a candidate pair from its market snapshot and
// realized performance. Scores are bounded to [0, 1]; missing data
// contributes zero, never an error.
type ScoringStrategy interface {
	Name() string
	Score(m PairMetrics, perf *PairPerformance) decimal.Decimal
}

// Saturation references for score normalization.
var (
	liquidityRef  = decimal.NewFromInt(1_000_000) // USD at which liquidity score reaches 0.5
	volatilityRef = decimal.NewFromFloat(0.10)    // 10% daily volatility scores 1.0
	spreadRefBps  = decimal.NewFromInt(50)        // spread and profitability saturate here
)

// clamp01 bounds a score to [0, 1].
func clamp01(v decimal.Decimal) decimal.Decimal {
	if v.Sign() < 0 {
		return decimal.Zero
	}
	one := decimal.New(1, 0)
	if v.GreaterThan(one) {
		return one
	}
	return v
}

// LiquidityStrategy favors deep pools: score = L / (L + ref), which
// saturates smoothly instead of letting one giant pool dominate.
type LiquidityStrategy struct{}

func (LiquidityStrategy) Name() string { return "liquidity" }

func (LiquidityStrategy) Score(m PairMetrics, _ *PairPerformance) decimal.Decimal {
	if m.LiquidityUSD.Sign() <= 0 {
		return decimal.Zero
	}
	return clamp01(m.LiquidityUSD.Div(m.LiquidityUSD.Add(liquidityRef)))
}

// VolatilityStrategy favors pairs that move: more movement means more
// quoting opportunities for a market maker.
type VolatilityStrategy struct{}

func (VolatilityStrategy) Name() string { return "volatility" }

func (VolatilityStrategy) Score(m PairMetrics, _ *PairPerformance) decimal.Decimal {
	if m.Volatility24h.Sign() <= 0 {
		return decimal.Zero
	}
	return clamp01(m.Volatility24h.Div(volatilityRef))
}

// ProfitStrategy favors pairs that have actually paid off: realized
// success rate weighted by the smoothed spread captured per trade.
type ProfitStrategy struct{}

func (ProfitStrategy) Name() string { return "profit" }

func (ProfitStrategy) Score(_ PairMetrics, perf *PairPerformance) decimal.Decimal {
	if perf == nil || perf.Trades == 0 {
		return decimal.Zero
	}

	rate := perf.SuccessRate()
	if perf.AvgSpreadBps.Sign() <= 0 {
		return clamp01(rate)
	}

	// Spread saturates at 50 bps.
	spreadWeight := clamp01(perf.AvgSpreadBps.Div(spreadRefBps))
	return clamp01(rate.Mul(spreadWeight))
}

// Composite weights. Liquidity dominates because a thin pool makes every
// other signal moot.
var (
	compositeLiquidityWeight = decimal.NewFromFloat(0.35)
	compositeProfitWeight    = decimal.NewFromFloat(0.25)
	compositeRiskWeight      = decimal.NewFromFloat(0.20)
	compositeSuccessWeight   = decimal.NewFromFloat(0.20)
)

// CompositeStrategy blends normalized liquidity, expected profitability,
// risk and realized success rate with fixed weights.
type CompositeStrategy struct {
	liquidity LiquidityStrategy
}

func (CompositeStrategy) Name() string { return "composite" }

func (s CompositeStrategy) Score(m PairMetrics, perf *PairPerformance) decimal.Decimal {
	liq := s.liquidity.Score(m, perf).Mul(compositeLiquidityWeight)
	profit := clamp01(m.Profitability.Div(spreadRefBps)).Mul(compositeProfitWeight)

	// Inverting a missing risk score would reward pairs we know nothing
	// about, so an empty snapshot earns nothing from the risk term.
	risk := decimal.Zero
	if !m.IsZero() {
		risk = decimal.New(1, 0).Sub(clamp01(m.RiskScore)).Mul(compositeRiskWeight)
	}

	success := decimal.Zero
	if perf != nil {
		success = clamp01(perf.SuccessRate()).Mul(compositeSuccessWeight)
	}

	return clamp01(liq.Add(profit).Add(risk).Add(success))
}

// StrategyByName resolves a strategy from its configured name,
// defaulting to composite.
func StrategyByName(name string) ScoringStrategy {
	switch name {
	case "liquidity":
		return LiquidityStrategy{}
	case "volatility":
		return VolatilityStrategy{}
	case "profit":
		return ProfitStrategy{}
	default:
		return CompositeStrategy{}
	}
}
