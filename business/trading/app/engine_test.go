package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
)

var (
	testHYPE = asset.NewAsset(asset.NewTokenAssetID(asset.ChainIDHyperEVM, common.HexToAddress("0x5555")), "HYPE", 18)
	testUSDC = asset.NewAsset(asset.NewTokenAssetID(asset.ChainIDHyperEVM, common.HexToAddress("0x2222")), "USDC", 6)
)

type stubQuotes struct {
	quote *domain.RouterQuote
	err   error
	calls atomic.Int32
}

func (s *stubQuotes) BestQuote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	q := *s.quote
	q.AmountIn = amountIn
	return &q, nil
}

type stubApprover struct {
	err   error
	calls atomic.Int32
}

func (s *stubApprover) EnsureAllowance(ctx context.Context, token *asset.Asset, spender common.Address, amount *big.Int) error {
	s.calls.Add(1)
	return s.err
}

type stubExecutor struct {
	hash    common.Hash
	gasUsed uint64
	err     error
	calls   atomic.Int32
	mu      sync.Mutex
	minOuts []*big.Int
}

func (s *stubExecutor) ExecuteSwap(ctx context.Context, quote *domain.RouterQuote, minAmountOut *big.Int) (common.Hash, uint64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.minOuts = append(s.minOuts, new(big.Int).Set(minAmountOut))
	s.mu.Unlock()
	if s.err != nil {
		return common.Hash{}, 0, s.err
	}
	return s.hash, s.gasUsed, nil
}

func usdc(raw int64) asset.Amount {
	return asset.NewAmount(testUSDC, big.NewInt(raw))
}

func hype(raw int64) asset.Amount {
	return asset.NewAmount(testHYPE, big.NewInt(raw))
}

func v3Quote(amountOut int64) *domain.RouterQuote {
	return &domain.RouterQuote{
		Version:     domain.RouterV3,
		Router:      common.HexToAddress("0x3333"),
		AmountOut:   usdc(amountOut),
		FeeTier:     3000,
		GasEstimate: 200000,
		Source:      "hyperswap-v3",
		Timestamp:   time.Now(),
	}
}

func newTestEngine(t *testing.T, quotes *stubQuotes, approver *stubApprover, executor SwapExecutor) *Engine {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	engine, err := NewEngine(quotes, approver, executor, nil, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestEngine_ExecutesBestQuoteAboveMinimum(t *testing.T) {
	quotes := &stubQuotes{quote: v3Quote(995)}
	approver := &stubApprover{}
	executor := &stubExecutor{hash: common.HexToHash("0xabc"), gasUsed: 180000}
	engine := newTestEngine(t, quotes, approver, executor)

	pair := domain.NewPair(testHYPE, testUSDC)
	result := engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))

	if !result.Success {
		t.Fatalf("expected success, got failure: %v (%s)", result.Err, result.Reason)
	}
	if result.TxHash != common.HexToHash("0xabc") {
		t.Errorf("unexpected tx hash %s", result.TxHash.Hex())
	}
	if result.GasUsed != 180000 {
		t.Errorf("expected gas used 180000, got %d", result.GasUsed)
	}
	if approver.calls.Load() != 1 {
		t.Errorf("expected 1 approval check, got %d", approver.calls.Load())
	}
	if executor.calls.Load() != 1 {
		t.Errorf("expected 1 swap, got %d", executor.calls.Load())
	}
	if executor.minOuts[0].Cmp(big.NewInt(992)) != 0 {
		t.Errorf("expected minOut 992 passed to executor, got %s", executor.minOuts[0])
	}
	if result.ID == "" {
		t.Error("expected a populated trade ID")
	}
}

func TestEngine_RejectsQuoteBelowMinimum(t *testing.T) {
	quotes := &stubQuotes{quote: v3Quote(990)}
	approver := &stubApprover{}
	executor := &stubExecutor{}
	engine := newTestEngine(t, quotes, approver, executor)

	pair := domain.NewPair(testHYPE, testUSDC)
	result := engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))

	if result.Success {
		t.Fatal("expected failure for quote below minimum")
	}
	if !apperror.IsCode(result.Err, apperror.CodeSlippageExceeded) {
		t.Errorf("expected CodeSlippageExceeded, got %v", result.Err)
	}
	if result.Reason != string(apperror.CodeSlippageExceeded) {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	// Neither approval nor swap may run once the quote is rejected.
	if approver.calls.Load() != 0 {
		t.Errorf("approver must not be called, got %d calls", approver.calls.Load())
	}
	if executor.calls.Load() != 0 {
		t.Errorf("executor must not be called, got %d calls", executor.calls.Load())
	}
	if result.Quote == nil {
		t.Error("rejected result should carry the offending quote")
	}
}

func TestEngine_QuoteFailureProducesResult(t *testing.T) {
	quotes := &stubQuotes{err: apperror.New(apperror.CodeNoQuoteAvailable)}
	engine := newTestEngine(t, quotes, &stubApprover{}, &stubExecutor{})

	pair := domain.NewPair(testHYPE, testUSDC)
	result := engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))

	if result.Success {
		t.Fatal("expected failure when no quote is available")
	}
	if result.Reason != string(apperror.CodeNoQuoteAvailable) {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestEngine_ApprovalFailureAbortsSwap(t *testing.T) {
	quotes := &stubQuotes{quote: v3Quote(995)}
	approver := &stubApprover{err: apperror.New(apperror.CodeApprovalFailed)}
	executor := &stubExecutor{}
	engine := newTestEngine(t, quotes, approver, executor)

	pair := domain.NewPair(testHYPE, testUSDC)
	result := engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))

	if result.Success {
		t.Fatal("expected failure on approval error")
	}
	if executor.calls.Load() != 0 {
		t.Errorf("executor must not run without allowance, got %d calls", executor.calls.Load())
	}
}

func TestEngine_ExecutorErrorNeverEscapes(t *testing.T) {
	quotes := &stubQuotes{quote: v3Quote(995)}
	executor := &stubExecutor{err: errors.New("nonce too low")}
	engine := newTestEngine(t, quotes, &stubApprover{}, executor)

	pair := domain.NewPair(testHYPE, testUSDC)
	result := engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))

	if result.Success {
		t.Fatal("expected failure on executor error")
	}
	if result.Err == nil {
		t.Fatal("expected the cause to be carried in the result")
	}
}

func TestEngine_SerializesTradesPerPair(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	quotes := &stubQuotes{quote: v3Quote(995)}
	approver := &stubApprover{}
	executor := &trackingExecutor{inFlight: &inFlight, maxInFlight: &maxInFlight}
	engine := newTestEngine(t, quotes, approver, executor)

	pair := domain.NewPair(testHYPE, testUSDC)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.ExecuteBestTrade(context.Background(), pair, hype(1000), usdc(992))
		}()
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Errorf("expected at most 1 in-flight trade per pair, observed %d", maxInFlight.Load())
	}
}

// trackingExecutor records concurrent invocations.
type trackingExecutor struct {
	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
}

func (e *trackingExecutor) ExecuteSwap(ctx context.Context, quote *domain.RouterQuote, minAmountOut *big.Int) (common.Hash, uint64, error) {
	n := e.inFlight.Add(1)
	for {
		cur := e.maxInFlight.Load()
		if n <= cur || e.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	e.inFlight.Add(-1)
	return common.HexToHash("0x1"), 100000, nil
}
