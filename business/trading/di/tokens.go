// Package di contains dependency injection tokens for the trading context.
package di

import (
	"github.com/0xvey/dexmaker/business/trading/app"
	"github.com/0xvey/dexmaker/internal/di"
)

// Public service tokens - exposed to other modules
var (
	TradingEngine = di.NewToken[*app.Engine]("trading.Engine")
)

// Private dependency tokens - internal to trading module
var (
	QuoteSource  = di.NewToken[app.QuoteSource]("trading:quoteSource")
	Approver     = di.NewToken[app.Approver]("trading:approver")
	SwapExecutor = di.NewToken[app.SwapExecutor]("trading:swapExecutor")
)

// Helper functions for type-safe access
func GetTradingEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, TradingEngine)
}

func GetQuoteSource(c di.ServiceRegistry) app.QuoteSource {
	return di.GetToken(c, QuoteSource)
}

func GetApprover(c di.ServiceRegistry) app.Approver {
	return di.GetToken(c, Approver)
}

func GetSwapExecutor(c di.ServiceRegistry) app.SwapExecutor {
	return di.GetToken(c, SwapExecutor)
}
