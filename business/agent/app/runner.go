package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	tradingDomain "github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
)

const (
	tracerName = "agent"
	meterName  = "agent"

	bpsDenominator = 10000
)

// runnerMetrics holds OTEL metric instruments.
type runnerMetrics struct {
	cycles       metric.Int64Counter
	attempts     metric.Int64Counter
	skippedStale metric.Int64Counter
}

// RunnerConfig holds the control loop parameters.
type RunnerConfig struct {
	TradeSize      decimal.Decimal // quoted in the pair's base token
	SlippageBps    int64           // tolerance below the feed mid, basis points
	TradeInterval  time.Duration
	EvalInterval   time.Duration
	RotateInterval time.Duration
}

// Runner drives the market-making loop: on every trade tick it quotes
// and executes one trade per active pair, on every evaluation tick it
// re-ranks the pair universe, and on every rotation tick it offers the
// strongest benched pair a shot at the weakest incumbent. Trade
// outcomes flow back into the selector's per-pair performance records.
type Runner struct {
	feed     PriceReader
	engine   TradeExecutor
	selector PairSelector
	reporter Reporter
	registry *asset.Registry
	config   RunnerConfig

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *runnerMetrics
}

// NewRunner creates the agent control loop.
func NewRunner(
	feed PriceReader,
	engine TradeExecutor,
	selector PairSelector,
	reporter Reporter,
	registry *asset.Registry,
	config RunnerConfig,
	log logger.LoggerInterface,
) (*Runner, error) {
	r := &Runner{
		feed:     feed,
		engine:   engine,
		selector: selector,
		reporter: reporter,
		registry: registry,
		config:   config,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Runner) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &runnerMetrics{}

	r.metrics.cycles, err = meter.Int64Counter(
		"agent_trade_cycles_total",
		metric.WithDescription("Trade cycles run over the active set"),
	)
	if err != nil {
		return err
	}

	r.metrics.attempts, err = meter.Int64Counter(
		"agent_trade_attempts_total",
		metric.WithDescription("Trade attempts handed to the execution engine"),
	)
	if err != nil {
		return err
	}

	r.metrics.skippedStale, err = meter.Int64Counter(
		"agent_pairs_skipped_total",
		metric.WithDescription("Pairs skipped in a cycle before reaching the engine"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Start begins the market-making loop.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info(ctx, "starting market-making agent",
		"trade_interval", r.config.TradeInterval,
		"eval_interval", r.config.EvalInterval,
		"trade_size", r.config.TradeSize,
	)

	if err := r.reporter.Start(ctx); err != nil {
		return err
	}

	go r.run(ctx)

	return nil
}

func (r *Runner) run(ctx context.Context) {
	tradeTicker := time.NewTicker(r.config.TradeInterval)
	defer tradeTicker.Stop()

	evalTicker := time.NewTicker(r.config.EvalInterval)
	defer evalTicker.Stop()

	rotateInterval := r.config.RotateInterval
	if rotateInterval <= 0 {
		rotateInterval = r.config.EvalInterval
	}
	rotateTicker := time.NewTicker(rotateInterval)
	defer rotateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "agent stopping", "reason", ctx.Err())
			return
		case <-evalTicker.C:
			r.evaluate(ctx)
		case <-rotateTicker.C:
			r.rotate(ctx)
		case <-tradeTicker.C:
			r.RunCycle(ctx)
		}
	}
}

func (r *Runner) evaluate(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "agent.evaluate")
	defer span.End()

	if _, err := r.selector.EvaluateAndSelect(ctx); err != nil {
		if apperror.IsCode(err, apperror.CodeEvaluationInFlight) {
			r.logger.Debug(ctx, "evaluation already in flight, skipping tick")
			return
		}
		r.logger.Warn(ctx, "pair evaluation failed", "error", err)
		return
	}

	active := r.selector.GetActivePairs()
	span.SetAttributes(attribute.StringSlice("active_pairs", active))
	r.reporter.ReportRotation(active)
}

func (r *Runner) rotate(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "agent.rotate")
	defer span.End()

	rotated, err := r.selector.MaybeRotate(ctx)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeEvaluationInFlight) {
			r.logger.Debug(ctx, "selector busy, skipping rotation tick")
			return
		}
		r.logger.Warn(ctx, "pair rotation failed", "error", err)
		return
	}
	if !rotated {
		return
	}

	active := r.selector.GetActivePairs()
	span.SetAttributes(attribute.StringSlice("active_pairs", active))
	r.reporter.ReportRotation(active)
}

// RunCycle runs one trade attempt for every pair in the active set.
func (r *Runner) RunCycle(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "agent.cycle")
	defer span.End()

	active := r.selector.GetActivePairs()
	r.metrics.cycles.Add(ctx, 1)

	for _, pair := range active {
		r.tradePair(ctx, pair)
	}
}

func (r *Runner) tradePair(ctx context.Context, pair string) {
	ctx, span := r.tracer.Start(ctx, "agent.trade",
		trace.WithAttributes(attribute.String("pair", pair)),
	)
	defer span.End()

	base, quote, err := r.registry.ResolvePair(pair)
	if err != nil {
		r.logger.Warn(ctx, "unknown pair in active set", "pair", pair, "error", err)
		r.metrics.skippedStale.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown_pair")))
		return
	}

	mid, err := r.feed.FreshPrice(ctx, base.Symbol())
	if err != nil {
		r.logger.Warn(ctx, "no fresh price, skipping pair", "pair", pair, "error", err)
		r.metrics.skippedStale.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "stale_price")))
		return
	}

	amountIn, err := asset.FromDecimal(base, r.config.TradeSize)
	if err != nil {
		r.logger.Error(ctx, "invalid trade size", "pair", pair, "error", err)
		return
	}

	// Minimum acceptable output: the feed mid less the slippage tolerance.
	expectedOut := mid.Price.Mul(r.config.TradeSize)
	tolerance := decimal.NewFromInt(bpsDenominator - r.config.SlippageBps).Div(decimal.NewFromInt(bpsDenominator))
	minAmountOut, err := asset.FromDecimal(quote, expectedOut.Mul(tolerance))
	if err != nil {
		r.logger.Error(ctx, "invalid minimum output", "pair", pair, "error", err)
		return
	}

	r.metrics.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))

	result := r.engine.ExecuteBestTrade(ctx, tradingDomain.NewPair(base, quote), amountIn, minAmountOut)

	volume, pnl := r.realized(result, expectedOut)
	r.selector.RecordTradeOutcome(pair, result.Success, r.edgeBps(result, expectedOut), volume, pnl)
	r.reporter.ReportTrade(result)
}

// realized derives the quote-denominated notional and the edge over the
// feed mid for a completed trade. Zero for failed attempts.
func (r *Runner) realized(result tradingDomain.TradeResult, expectedOut decimal.Decimal) (volume, pnl decimal.Decimal) {
	if !result.Success || result.Quote == nil {
		return decimal.Zero, decimal.Zero
	}
	quoted := result.Quote.AmountOut.ToDecimal()
	return quoted, quoted.Sub(expectedOut)
}

// edgeBps measures how far the executed quote sat above or below the
// feed mid, in basis points. Zero when the attempt never got a quote.
func (r *Runner) edgeBps(result tradingDomain.TradeResult, expectedOut decimal.Decimal) decimal.Decimal {
	if result.Quote == nil || expectedOut.IsZero() {
		return decimal.Zero
	}
	quoted := result.Quote.AmountOut.ToDecimal()
	return quoted.Sub(expectedOut).Div(expectedOut).Mul(decimal.NewFromInt(bpsDenominator))
}

// Stop gracefully shuts down the agent.
func (r *Runner) Stop() error {
	return r.reporter.Stop()
}
