package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/0xvey/dexmaker/internal/asset"
)

// TradeResult is the terminal outcome of one trade attempt. Execution
// never returns an error to the caller: every failure mode is folded
// into an unsuccessful result.
type TradeResult struct {
	ID           string
	Pair         Pair
	Success      bool
	TxHash       common.Hash
	Quote        *RouterQuote
	AmountIn     asset.Amount
	MinAmountOut asset.Amount
	GasUsed      uint64
	Err          error  // nil on success
	Reason       string // short machine-readable failure reason
	Timestamp    time.Time
}

// ConfirmedTrade builds a successful result for a mined swap.
func ConfirmedTrade(pair Pair, quote *RouterQuote, amountIn, minOut asset.Amount, txHash common.Hash, gasUsed uint64) TradeResult {
	return TradeResult{
		ID:           uuid.NewString(),
		Pair:         pair,
		Success:      true,
		TxHash:       txHash,
		Quote:        quote,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		GasUsed:      gasUsed,
		Timestamp:    time.Now(),
	}
}

// FailedTrade builds an unsuccessful result carrying the cause.
func FailedTrade(pair Pair, quote *RouterQuote, amountIn, minOut asset.Amount, reason string, err error) TradeResult {
	return TradeResult{
		ID:           uuid.NewString(),
		Pair:         pair,
		Success:      false,
		Quote:        quote,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Err:          err,
		Reason:       reason,
		Timestamp:    time.Now(),
	}
}
