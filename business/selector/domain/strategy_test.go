package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func metricsWith(liquidity, volume int64, volatility float64) PairMetrics {
	return PairMetrics{
		Pair:          "HYPE-USDC",
		LiquidityUSD:  decimal.NewFromInt(liquidity),
		Volume24hUSD:  decimal.NewFromInt(volume),
		Volatility24h: decimal.NewFromFloat(volatility),
	}
}

func TestStrategies_BoundedScores(t *testing.T) {
	perf := NewPairPerformance("HYPE-USDC")
	for i := 0; i < 10; i++ {
		perf.RecordOutcome(true, decimal.NewFromInt(100), decimal.NewFromInt(450), decimal.NewFromInt(2))
	}

	extreme := metricsWith(1_000_000_000_000, 5_000_000_000, 3.0)
	extreme.Profitability = decimal.NewFromInt(10_000)

	strategies := []ScoringStrategy{
		LiquidityStrategy{}, VolatilityStrategy{}, ProfitStrategy{}, CompositeStrategy{},
	}

	one := decimal.New(1, 0)
	for _, s := range strategies {
		score := s.Score(extreme, perf)
		if score.Sign() < 0 || score.GreaterThan(one) {
			t.Errorf("%s: score %s out of [0,1]", s.Name(), score)
		}
	}
}

func TestStrategies_MissingDataScoresZero(t *testing.T) {
	empty := PairMetrics{Pair: "HYPE-USDC"}

	if got := (LiquidityStrategy{}).Score(empty, nil); !got.IsZero() {
		t.Errorf("liquidity: expected zero for missing data, got %s", got)
	}
	if got := (VolatilityStrategy{}).Score(empty, nil); !got.IsZero() {
		t.Errorf("volatility: expected zero for missing data, got %s", got)
	}
	if got := (ProfitStrategy{}).Score(empty, nil); !got.IsZero() {
		t.Errorf("profit: expected zero for nil performance, got %s", got)
	}
	if got := (CompositeStrategy{}).Score(empty, NewPairPerformance("HYPE-USDC")); !got.IsZero() {
		t.Errorf("composite: expected zero for empty inputs, got %s", got)
	}
}

func TestLiquidityStrategy_PrefersDeeperPools(t *testing.T) {
	s := LiquidityStrategy{}
	shallow := s.Score(metricsWith(100_000, 0, 0), nil)
	deep := s.Score(metricsWith(10_000_000, 0, 0), nil)

	if !deep.GreaterThan(shallow) {
		t.Errorf("deep pool (%s) must outscore shallow pool (%s)", deep, shallow)
	}
}

func TestCompositeStrategy_RiskLowersScore(t *testing.T) {
	s := CompositeStrategy{}

	safe := metricsWith(5_000_000, 0, 0)
	safe.Profitability = decimal.NewFromInt(25)
	safe.RiskScore = decimal.NewFromFloat(0.1)

	risky := safe
	risky.RiskScore = decimal.NewFromFloat(0.9)

	if !s.Score(safe, nil).GreaterThan(s.Score(risky, nil)) {
		t.Errorf("riskier pair must score lower: safe=%s risky=%s",
			s.Score(safe, nil), s.Score(risky, nil))
	}
}

func TestCompositeStrategy_ProfitabilityRaisesScore(t *testing.T) {
	s := CompositeStrategy{}

	lean := metricsWith(5_000_000, 0, 0)
	lean.Profitability = decimal.NewFromInt(5)

	rich := lean
	rich.Profitability = decimal.NewFromInt(40)

	if !s.Score(rich, nil).GreaterThan(s.Score(lean, nil)) {
		t.Errorf("more profitable pair must score higher: rich=%s lean=%s",
			s.Score(rich, nil), s.Score(lean, nil))
	}
}

func TestCompositeStrategy_SuccessRateContributes(t *testing.T) {
	s := CompositeStrategy{}
	m := metricsWith(5_000_000, 0, 0)

	winning := NewPairPerformance("HYPE-USDC")
	winning.RecordOutcome(true, decimal.NewFromInt(10), decimal.NewFromInt(450), decimal.NewFromInt(1))

	losing := NewPairPerformance("HYPE-USDC")
	losing.RecordOutcome(false, decimal.Zero, decimal.Zero, decimal.Zero)

	if !s.Score(m, winning).GreaterThan(s.Score(m, losing)) {
		t.Errorf("higher success rate must score higher: winning=%s losing=%s",
			s.Score(m, winning), s.Score(m, losing))
	}
}

func TestPairPerformance_EMASmoothing(t *testing.T) {
	perf := NewPairPerformance("HYPE-USDC")

	perf.RecordOutcome(true, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(1))
	if !perf.AvgSpreadBps.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("first sample seeds the average, got %s", perf.AvgSpreadBps)
	}

	// 0.2*20 + 0.8*10 = 12
	perf.RecordOutcome(true, decimal.NewFromInt(20), decimal.NewFromInt(100), decimal.NewFromInt(-2))
	if !perf.AvgSpreadBps.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected EMA 12, got %s", perf.AvgSpreadBps)
	}

	perf.RecordOutcome(false, decimal.NewFromInt(99), decimal.NewFromInt(100), decimal.NewFromInt(5))
	if !perf.AvgSpreadBps.Equal(decimal.NewFromInt(12)) {
		t.Errorf("failed trade must not move the spread EMA, got %s", perf.AvgSpreadBps)
	}
	if perf.FailureStreak != 1 {
		t.Errorf("expected failure streak 1, got %d", perf.FailureStreak)
	}

	if !perf.SuccessRate().Equal(decimal.NewFromInt(2).Div(decimal.NewFromInt(3))) {
		t.Errorf("expected success rate 2/3, got %s", perf.SuccessRate())
	}

	if !perf.TotalVolume.Equal(decimal.NewFromInt(200)) {
		t.Errorf("failed trade must not add volume, got %s", perf.TotalVolume)
	}
	if !perf.TotalPnL.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("expected cumulative pnl -1, got %s", perf.TotalPnL)
	}
}
