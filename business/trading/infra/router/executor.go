package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/trading/app"
	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
)

// estimateBackend adds gas estimation to the transaction surface.
type estimateBackend interface {
	txBackend
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Ensure Executor implements SwapExecutor.
var _ app.SwapExecutor = (*Executor)(nil)

// executorMetrics holds OTEL metric instruments.
type executorMetrics struct {
	swapsTotal metric.Int64Counter
	gasUsed    metric.Float64Histogram
}

// Executor submits swaps to the V2 or V3 router and waits for them to
// mine. Gas policy: V2 swaps carry a fixed gas ceiling, V3 swaps use
// the quote's gas estimate padded by 20% and capped at the configured
// ceiling, falling back to the ceiling itself when no estimate exists.
type Executor struct {
	backend   estimateBackend
	auth      *bind.TransactOpts
	recipient common.Address

	v2Router  common.Address
	v3Router  common.Address
	v2ABI     abi.ABI
	v3ABI     abi.ABI

	deadline    time.Duration
	v2GasLimit  uint64
	v3GasLimit  uint64
	confirmWait time.Duration

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *executorMetrics
}

// ExecutorConfig holds swap execution parameters.
type ExecutorConfig struct {
	V2Router    common.Address
	V3Router    common.Address
	Deadline    time.Duration // transaction validity window
	V2GasLimit  uint64
	V3GasLimit  uint64
	ConfirmWait time.Duration
}

// NewExecutor creates a swap executor signing with auth.
func NewExecutor(backend estimateBackend, auth *bind.TransactOpts, cfg ExecutorConfig, log logger.LoggerInterface) (*Executor, error) {
	v2ABI, err := abi.JSON(strings.NewReader(V2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v2 router ABI: %w", err)
	}

	v3ABI, err := abi.JSON(strings.NewReader(V3RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v3 router ABI: %w", err)
	}

	e := &Executor{
		backend:     backend,
		auth:        auth,
		recipient:   auth.From,
		v2Router:    cfg.V2Router,
		v3Router:    cfg.V3Router,
		v2ABI:       v2ABI,
		v3ABI:       v3ABI,
		deadline:    cfg.Deadline,
		v2GasLimit:  cfg.V2GasLimit,
		v3GasLimit:  cfg.V3GasLimit,
		confirmWait: cfg.ConfirmWait,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return e, nil
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &executorMetrics{}

	e.metrics.swapsTotal, err = meter.Int64Counter(
		"router_swaps_total",
		metric.WithDescription("Swap transactions submitted"),
	)
	if err != nil {
		return err
	}

	e.metrics.gasUsed, err = meter.Float64Histogram(
		"router_swap_gas_used",
		metric.WithDescription("Gas used by mined swaps"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ExecuteSwap submits the swap for the chosen route and blocks until
// it mines or the confirmation window expires.
func (e *Executor) ExecuteSwap(ctx context.Context, quote *domain.RouterQuote, minAmountOut *big.Int) (common.Hash, uint64, error) {
	ctx, span := e.tracer.Start(ctx, "router.execute_swap",
		trace.WithAttributes(
			attribute.String("version", string(quote.Version)),
			attribute.String("amount_in", quote.AmountIn.Raw().String()),
			attribute.String("min_amount_out", minAmountOut.String()),
		),
	)
	defer span.End()

	deadline := big.NewInt(time.Now().Add(e.deadline).Unix())

	var (
		router common.Address
		method string
		args   []interface{}
		appABI abi.ABI
	)

	switch quote.Version {
	case domain.RouterV2:
		router = e.v2Router
		appABI = e.v2ABI
		method = "swapExactTokensForTokens"
		args = []interface{}{quote.AmountIn.Raw(), minAmountOut, quote.Path, e.recipient, deadline}

	case domain.RouterV3:
		router = e.v3Router
		appABI = e.v3ABI
		method = "exactInputSingle"
		args = []interface{}{ExactInputSingleParams{
			TokenIn:           quote.AmountIn.Asset().Address(),
			TokenOut:          quote.AmountOut.Asset().Address(),
			Fee:               big.NewInt(int64(quote.FeeTier)),
			Recipient:         e.recipient,
			Deadline:          deadline,
			AmountIn:          quote.AmountIn.Raw(),
			AmountOutMinimum:  minAmountOut,
			SqrtPriceLimitX96: big.NewInt(0),
		}}

	default:
		return common.Hash{}, 0, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("unknown router version "+string(quote.Version)))
	}

	gasLimit := e.gasLimitFor(ctx, quote, router, appABI, method, args)

	opts := *e.auth
	opts.Context = ctx
	opts.GasLimit = gasLimit

	contract := bind.NewBoundContract(router, appABI, e.backend, e.backend, e.backend)

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		e.metrics.swapsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("version", string(quote.Version)),
			attribute.Bool("success", false),
		))
		span.SetStatus(codes.Error, "submission failed")
		return common.Hash{}, 0, apperror.New(apperror.CodeSwapSubmissionFailed,
			apperror.WithCause(err),
			apperror.WithContext("swap submission failed"))
	}

	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, e.confirmWait)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, e.backend, tx)
	if err != nil {
		e.metrics.swapsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("version", string(quote.Version)),
			attribute.Bool("success", false),
		))
		span.SetStatus(codes.Error, "not mined")
		return tx.Hash(), 0, apperror.New(apperror.CodeSwapNotConfirmed,
			apperror.WithCause(err),
			apperror.WithContext("swap not mined within confirmation window"))
	}

	if receipt.Status != 1 {
		e.metrics.swapsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("version", string(quote.Version)),
			attribute.Bool("success", false),
		))
		span.SetStatus(codes.Error, "reverted")
		return tx.Hash(), receipt.GasUsed, apperror.New(apperror.CodeSwapNotConfirmed,
			apperror.WithContext("swap transaction reverted"))
	}

	e.metrics.swapsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("version", string(quote.Version)),
		attribute.Bool("success", true),
	))
	e.metrics.gasUsed.Record(ctx, float64(receipt.GasUsed),
		metric.WithAttributes(attribute.String("version", string(quote.Version))))

	span.SetStatus(codes.Ok, "swap mined")

	return tx.Hash(), receipt.GasUsed, nil
}

// gasLimitFor applies the per-version gas policy. Estimation problems
// on the V3 path degrade to the configured ceiling: a swap is never
// aborted over a gas estimate.
func (e *Executor) gasLimitFor(ctx context.Context, quote *domain.RouterQuote, router common.Address, routerABI abi.ABI, method string, args []interface{}) uint64 {
	if quote.Version == domain.RouterV2 {
		// V2 path swaps have predictable cost.
		return e.v2GasLimit
	}

	// The quoter's estimate comes from the same QuoterV2 call that
	// priced the route.
	if quote.GasEstimate > 0 {
		return padGasEstimate(quote.GasEstimate, e.v3GasLimit)
	}

	callData, err := routerABI.Pack(method, args...)
	if err != nil {
		e.logger.Warn(ctx, "swap encoding for gas estimation failed, using gas ceiling",
			"method", method, "error", err)
		return e.v3GasLimit
	}

	estimate, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: e.recipient,
		To:   &router,
		Data: callData,
	})
	if err != nil {
		e.logger.Warn(ctx, "node gas estimation failed, using gas ceiling",
			"method", method, "error", err)
		return e.v3GasLimit
	}

	return padGasEstimate(estimate, e.v3GasLimit)
}

// padGasEstimate adds 20% headroom to a node estimate, capped at ceiling.
func padGasEstimate(estimate, ceiling uint64) uint64 {
	padded := estimate + estimate/5
	if ceiling > 0 && padded > ceiling {
		return ceiling
	}
	return padded
}
