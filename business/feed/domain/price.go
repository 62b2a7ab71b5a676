// Package domain contains the core domain types for the feed context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the last observed mid price for a single symbol.
type PriceQuote struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
	Source    string // "hyperliquid"
}

// NewPriceQuote creates a PriceQuote stamped with the current time.
func NewPriceQuote(symbol string, price decimal.Decimal, source string) PriceQuote {
	return PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// IsFresh reports whether the quote is younger than maxAge.
func (q PriceQuote) IsFresh(maxAge time.Duration) bool {
	if q.Timestamp.IsZero() {
		return false
	}
	return time.Since(q.Timestamp) <= maxAge
}

// MovedBeyond reports whether the price moved by at least threshold
// (a fraction, e.g. 0.001 for 0.1%) relative to a previous price.
// A zero previous price always counts as a move.
func (q PriceQuote) MovedBeyond(prev decimal.Decimal, threshold decimal.Decimal) bool {
	if prev.IsZero() {
		return true
	}
	change := q.Price.Sub(prev).Abs().Div(prev)
	return change.GreaterThanOrEqual(threshold)
}
