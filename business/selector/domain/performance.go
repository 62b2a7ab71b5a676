package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// spreadSmoothing is the EMA weight given to the newest spread sample.
var spreadSmoothing = decimal.NewFromFloat(0.2)

// PairPerformance accumulates realized trade outcomes for one pair.
type PairPerformance struct {
	Pair          string
	Trades        int
	Successes     int
	FailureStreak int
	TotalVolume   decimal.Decimal // quote-denominated notional, successful trades only
	TotalPnL      decimal.Decimal // realized edge vs the feed mid, quote-denominated
	AvgSpreadBps  decimal.Decimal // exponential moving average
	LastTradeAt   time.Time
}

// NewPairPerformance creates an empty performance record.
func NewPairPerformance(pair string) *PairPerformance {
	return &PairPerformance{Pair: pair}
}

// RecordOutcome folds one trade outcome into the record. spreadBps,
// volume and pnl describe the realized trade; they only contribute on
// success since a failed trade moved no funds.
func (p *PairPerformance) RecordOutcome(success bool, spreadBps, volume, pnl decimal.Decimal) {
	p.Trades++
	p.LastTradeAt = time.Now()

	if !success {
		p.FailureStreak++
		return
	}

	p.Successes++
	p.FailureStreak = 0
	p.TotalVolume = p.TotalVolume.Add(volume)
	p.TotalPnL = p.TotalPnL.Add(pnl)

	if p.AvgSpreadBps.IsZero() {
		p.AvgSpreadBps = spreadBps
		return
	}
	// EMA: new = alpha*sample + (1-alpha)*old
	p.AvgSpreadBps = spreadSmoothing.Mul(spreadBps).
		Add(decimal.New(1, 0).Sub(spreadSmoothing).Mul(p.AvgSpreadBps))
}

// SuccessRate returns the fraction of successful trades, zero when no
// trades have been recorded.
func (p *PairPerformance) SuccessRate() decimal.Decimal {
	if p.Trades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.Successes)).Div(decimal.NewFromInt(int64(p.Trades)))
}
