// Package app contains application services and port definitions for the feed context.
package app

import (
	"context"

	"github.com/0xvey/dexmaker/business/feed/domain"
)

// PriceSource streams mid prices for all tradeable symbols from an
// upstream venue and maintains a last-price table.
type PriceSource interface {
	// Connect establishes the streaming connection and subscribes to
	// the mid-price channel. It keeps reconnecting in the background
	// until Close is called.
	Connect(ctx context.Context) error

	// GetPrice returns the last observed quote for a symbol.
	GetPrice(symbol string) (domain.PriceQuote, bool)

	// OnPriceUpdate registers a handler fired when a symbol's price
	// moves beyond the announce threshold.
	OnPriceUpdate(handler func(domain.PriceQuote))

	// OnTerminalError registers a handler fired once when the source
	// exhausts its reconnect budget and stops trying. The source is
	// dead afterwards; only a new Connect can revive the stream.
	OnTerminalError(handler func(error))

	// IsConnected reports whether the streaming connection is live.
	IsConnected() bool

	// Close tears the connection down permanently.
	Close() error
}
