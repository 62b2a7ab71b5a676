// Package app contains the market-making control loop for the agent context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	feedDomain "github.com/0xvey/dexmaker/business/feed/domain"
	selectorDomain "github.com/0xvey/dexmaker/business/selector/domain"
	tradingDomain "github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/asset"
)

// PriceReader provides the latest known mid price for a symbol.
type PriceReader interface {
	FreshPrice(ctx context.Context, symbol string) (feedDomain.PriceQuote, error)
}

// TradeExecutor runs one best-quote trade attempt.
type TradeExecutor interface {
	ExecuteBestTrade(ctx context.Context, pair tradingDomain.Pair, amountIn, minAmountOut asset.Amount) tradingDomain.TradeResult
}

// PairSelector maintains and re-ranks the active trading set.
type PairSelector interface {
	GetActivePairs() []string
	EvaluateAndSelect(ctx context.Context) ([]selectorDomain.PairScore, error)
	MaybeRotate(ctx context.Context) (bool, error)
	RecordTradeOutcome(pair string, success bool, spreadBps, volume, pnl decimal.Decimal)
}

// Reporter defines the interface for reporting agent activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportTrade sends a completed trade attempt to be displayed/logged.
	ReportTrade(result tradingDomain.TradeResult)

	// ReportRotation announces the active pair set after an evaluation.
	ReportRotation(active []string)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
