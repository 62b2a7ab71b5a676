// Package app contains application services and port definitions for the trading context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/asset"
)

// QuoteSource prices a swap across all available routers and returns
// the single best route.
type QuoteSource interface {
	BestQuote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error)
}

// Approver guarantees the router is allowed to spend the input token
// before a swap is submitted.
type Approver interface {
	EnsureAllowance(ctx context.Context, token *asset.Asset, spender common.Address, amount *big.Int) error
}

// SwapExecutor submits the swap transaction for a chosen route and
// waits for it to be mined.
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, quote *domain.RouterQuote, minAmountOut *big.Int) (common.Hash, uint64, error)
}
