// Package domain contains the core domain types for the selector context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PairMetrics is a market snapshot for one candidate pair. A zero
// value means the data could not be fetched; scoring treats missing
// fields as zero rather than guessing.
type PairMetrics struct {
	Pair          string // e.g. "HYPE-USDC"
	LiquidityUSD  decimal.Decimal
	Volume24hUSD  decimal.Decimal
	Volatility24h decimal.Decimal // fraction, e.g. 0.05 for 5%
	SpreadBps     decimal.Decimal
	Profitability decimal.Decimal // expected margin after fees, bps
	RiskScore     decimal.Decimal // 0 = safest, 1 = riskiest
	FetchedAt     time.Time
}

// IsZero reports whether the snapshot carries no market data.
func (m PairMetrics) IsZero() bool {
	return m.LiquidityUSD.IsZero() && m.Volume24hUSD.IsZero() &&
		m.Volatility24h.IsZero() && m.Profitability.IsZero()
}

// PairScore is a scored candidate pair.
type PairScore struct {
	Pair  string
	Score decimal.Decimal
}
