// Package domain contains the core domain types for the trading context.
package domain

import (
	"github.com/0xvey/dexmaker/internal/asset"
)

// Pair represents a trading pair using typed assets.
type Pair struct {
	Base  *asset.Asset // e.g., HYPE
	Quote *asset.Asset // e.g., USDC
}

// NewPair creates a new trading pair.
func NewPair(base, quote *asset.Asset) Pair {
	if base == nil || quote == nil {
		panic("trading: nil asset in pair")
	}
	return Pair{Base: base, Quote: quote}
}

// String returns the pair symbol (e.g., "HYPE-USDC").
func (p Pair) String() string {
	return p.Base.Symbol() + "-" + p.Quote.Symbol()
}

// Invert returns the inverted pair (e.g., HYPE-USDC -> USDC-HYPE).
func (p Pair) Invert() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}
