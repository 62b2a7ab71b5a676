package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/ratelimit"
)

const (
	tracerName = "trading"
	meterName  = "trading"
)

// engineMetrics holds OTEL metric instruments.
type engineMetrics struct {
	tradesTotal        metric.Int64Counter
	tradeLatency       metric.Float64Histogram
	slippageRejections metric.Int64Counter
	quoteFailures      metric.Int64Counter
}

// Engine executes the best available swap route for a pair. It never
// returns an error: every failure is folded into the TradeResult so
// the caller's loop cannot be broken by a bad trade.
type Engine struct {
	quotes   QuoteSource
	approver Approver
	executor SwapExecutor
	limiter  *ratelimit.Limiter

	// One in-flight trade per pair.
	locks sync.Map // pair string -> *sync.Mutex

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates a trading engine. limiter may be nil to disable
// quote rate limiting.
func NewEngine(quotes QuoteSource, approver Approver, executor SwapExecutor, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*Engine, error) {
	e := &Engine{
		quotes:   quotes,
		approver: approver,
		executor: executor,
		limiter:  limiter,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.tradesTotal, err = meter.Int64Counter(
		"trading_trades_total",
		metric.WithDescription("Total trade attempts"),
	)
	if err != nil {
		return err
	}

	e.metrics.tradeLatency, err = meter.Float64Histogram(
		"trading_trade_latency_ms",
		metric.WithDescription("End-to-end trade latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	e.metrics.slippageRejections, err = meter.Int64Counter(
		"trading_slippage_rejections_total",
		metric.WithDescription("Quotes rejected for violating the minimum output"),
	)
	if err != nil {
		return err
	}

	e.metrics.quoteFailures, err = meter.Int64Counter(
		"trading_quote_failures_total",
		metric.WithDescription("Quote requests that produced no route"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ExecuteBestTrade quotes all routers, picks the best route and swaps
// amountIn for at least minAmountOut. Trades on the same pair are
// serialized; the returned TradeResult is the only outcome channel.
func (e *Engine) ExecuteBestTrade(ctx context.Context, pair domain.Pair, amountIn, minAmountOut asset.Amount) domain.TradeResult {
	ctx, span := e.tracer.Start(ctx, "trading.execute_best_trade",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("amount_in", amountIn.String()),
			attribute.String("min_amount_out", minAmountOut.String()),
		),
	)
	defer span.End()

	start := time.Now()

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	result := e.executeLocked(ctx, pair, amountIn, minAmountOut)

	e.metrics.tradeLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	e.metrics.tradesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", pair.String()),
		attribute.Bool("success", result.Success),
	))

	if result.Success {
		e.logger.Info(ctx, "trade confirmed",
			"pair", pair.String(),
			"tx", result.TxHash.Hex(),
			"router", string(result.Quote.Version),
			"amount_out", result.Quote.AmountOut.String())
	} else {
		e.logger.Warn(ctx, "trade failed",
			"pair", pair.String(),
			"reason", result.Reason,
			"error", result.Err)
	}

	return result
}

func (e *Engine) executeLocked(ctx context.Context, pair domain.Pair, amountIn, minAmountOut asset.Amount) domain.TradeResult {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.FailedTrade(pair, nil, amountIn, minAmountOut,
				string(apperror.CodeChainRPCError),
				apperror.New(apperror.CodeChainRPCError, apperror.WithCause(err),
					apperror.WithContext("rate limiter wait aborted")))
		}
	}

	quote, err := e.quotes.BestQuote(ctx, pair, amountIn)
	if err != nil {
		e.metrics.quoteFailures.Add(ctx, 1)
		return domain.FailedTrade(pair, nil, amountIn, minAmountOut, failureReason(err), err)
	}

	cmp, err := quote.AmountOut.Cmp(minAmountOut)
	if err != nil {
		err = apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err),
			apperror.WithContext("quote output not comparable to minimum"))
		return domain.FailedTrade(pair, quote, amountIn, minAmountOut, failureReason(err), err)
	}
	if cmp < 0 {
		e.metrics.slippageRejections.Add(ctx, 1)
		err = apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("best quote %s below minimum %s",
				quote.AmountOut.String(), minAmountOut.String())))
		return domain.FailedTrade(pair, quote, amountIn, minAmountOut, failureReason(err), err)
	}

	if err := e.approver.EnsureAllowance(ctx, amountIn.Asset(), quote.Router, amountIn.Raw()); err != nil {
		return domain.FailedTrade(pair, quote, amountIn, minAmountOut, failureReason(err), err)
	}

	txHash, gasUsed, err := e.executor.ExecuteSwap(ctx, quote, minAmountOut.Raw())
	if err != nil {
		return domain.FailedTrade(pair, quote, amountIn, minAmountOut, failureReason(err), err)
	}

	return domain.ConfirmedTrade(pair, quote, amountIn, minAmountOut, txHash, gasUsed)
}

// pairLock returns the mutex serializing trades on one pair.
func (e *Engine) pairLock(pair domain.Pair) *sync.Mutex {
	actual, _ := e.locks.LoadOrStore(pair.String(), &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// failureReason maps an error to its short machine-readable code.
func failureReason(err error) string {
	return string(apperror.GetCode(err))
}
