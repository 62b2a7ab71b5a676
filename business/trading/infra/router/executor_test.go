package router

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
)

func newTestExecutor(t *testing.T, chain *fakeChain) *Executor {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	executor, err := NewExecutor(chain, testAuth(t), ExecutorConfig{
		V2Router:    common.HexToAddress("0x2020"),
		V3Router:    common.HexToAddress("0x3030"),
		Deadline:    time.Minute,
		V2GasLimit:  300000,
		V3GasLimit:  500000,
		ConfirmWait: 2 * time.Second,
	}, log)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor
}

func testV3Quote(gasEstimate uint64) *domain.RouterQuote {
	return &domain.RouterQuote{
		Version:     domain.RouterV3,
		Router:      common.HexToAddress("0x3030"),
		AmountIn:    asset.NewAmount(routerTestHYPE, big.NewInt(1_000_000_000_000_000_000)),
		AmountOut:   asset.NewAmount(routerTestUSDC, big.NewInt(44_850_000)),
		FeeTier:     3000,
		GasEstimate: gasEstimate,
		Source:      "hyperswap-v3",
		Timestamp:   time.Now(),
	}
}

func TestExecuteSwap_UsesQuoteGasEstimate(t *testing.T) {
	chain := newFakeChain()
	executor := newTestExecutor(t, chain)

	hash, gasUsed, err := executor.ExecuteSwap(context.Background(), testV3Quote(200000), big.NewInt(44_600_000))
	if err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Error("expected a transaction hash")
	}
	if gasUsed != 180000 {
		t.Errorf("expected mined gas 180000, got %d", gasUsed)
	}

	tx := chain.lastSent()
	if tx == nil {
		t.Fatal("no transaction submitted")
	}
	// 200000 from the quote, padded by 20%.
	if tx.Gas() != 240000 {
		t.Errorf("expected gas limit 240000 from the quote estimate, got %d", tx.Gas())
	}
	if chain.estimateCalls != 0 {
		t.Errorf("quote estimate must skip node estimation, got %d calls", chain.estimateCalls)
	}
}

func TestExecuteSwap_FallsBackToCeilingWhenEstimationFails(t *testing.T) {
	chain := newFakeChain()
	chain.estimateErr = errors.New("execution reverted")
	executor := newTestExecutor(t, chain)

	// No estimate on the quote and the node refuses: the swap still
	// goes out, carrying the configured ceiling.
	_, _, err := executor.ExecuteSwap(context.Background(), testV3Quote(0), big.NewInt(44_600_000))
	if err != nil {
		t.Fatalf("ExecuteSwap must not fail on gas estimation: %v", err)
	}

	tx := chain.lastSent()
	if tx == nil {
		t.Fatal("no transaction submitted")
	}
	if tx.Gas() != 500000 {
		t.Errorf("expected the gas ceiling 500000, got %d", tx.Gas())
	}
}

func TestExecuteSwap_PadsNodeEstimateWhenQuoteHasNone(t *testing.T) {
	chain := newFakeChain()
	chain.estimate = 150000
	executor := newTestExecutor(t, chain)

	if _, _, err := executor.ExecuteSwap(context.Background(), testV3Quote(0), big.NewInt(44_600_000)); err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}

	tx := chain.lastSent()
	if tx == nil {
		t.Fatal("no transaction submitted")
	}
	if tx.Gas() != 180000 {
		t.Errorf("expected padded node estimate 180000, got %d", tx.Gas())
	}
}

func TestExecuteSwap_V2UsesFixedGasLimit(t *testing.T) {
	chain := newFakeChain()
	executor := newTestExecutor(t, chain)

	quote := &domain.RouterQuote{
		Version:   domain.RouterV2,
		Router:    common.HexToAddress("0x2020"),
		AmountIn:  asset.NewAmount(routerTestHYPE, big.NewInt(1_000_000_000_000_000_000)),
		AmountOut: asset.NewAmount(routerTestUSDC, big.NewInt(44_850_000)),
		Path:      []common.Address{routerTestHYPE.Address(), routerTestUSDC.Address()},
		Source:    "hyperswap-v2",
		Timestamp: time.Now(),
	}

	if _, _, err := executor.ExecuteSwap(context.Background(), quote, big.NewInt(44_600_000)); err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}

	tx := chain.lastSent()
	if tx == nil {
		t.Fatal("no transaction submitted")
	}
	if tx.Gas() != 300000 {
		t.Errorf("expected V2 gas limit 300000, got %d", tx.Gas())
	}
}
