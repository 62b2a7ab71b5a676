package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/circuitbreaker"
	"github.com/0xvey/dexmaker/internal/logger"
)

const (
	tracerName = "router"
	meterName  = "router"

	sourceV2 = "hyperswap-v2"
	sourceV3 = "hyperswap-v3"
)

// contractCaller is the read-only chain surface the quoters need.
// *ethclient.Client satisfies it.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// quoterMetrics holds OTEL metric instruments shared by both quoters.
type quoterMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

func newQuoterMetrics() (*quoterMetrics, error) {
	meter := otel.Meter(meterName)
	m := &quoterMetrics{}
	var err error

	m.quotesTotal, err = meter.Int64Counter(
		"router_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return nil, err
	}

	m.quoteLatency, err = meter.Float64Histogram(
		"router_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.quoteErrors, err = meter.Int64Counter(
		"router_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// V3Quoter prices swaps through the V3 QuoterV2 contract, probing all
// fee tiers and keeping the best output.
type V3Quoter struct {
	client    contractCaller
	quoter    common.Address
	router    common.Address
	quoterABI abi.ABI
	feeTiers  []int
	gasLimit  uint64 // ceiling applied when the quoter reports none

	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	tracer  trace.Tracer
	metrics *quoterMetrics
}

// NewV3Quoter creates a V3 quoter. defaultFeeTier is probed first.
func NewV3Quoter(client contractCaller, quoter, router common.Address, defaultFeeTier int, gasLimit uint64, log logger.LoggerInterface) (*V3Quoter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	feeTiers := []int{defaultFeeTier}
	for _, tier := range []int{FeeTier005, FeeTier030, FeeTier100} {
		if tier != defaultFeeTier {
			feeTiers = append(feeTiers, tier)
		}
	}

	q := &V3Quoter{
		client:    client,
		quoter:    quoter,
		router:    router,
		quoterABI: parsedABI,
		feeTiers:  feeTiers,
		gasLimit:  gasLimit,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	q.cb = circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("v3-quoter"))

	q.metrics, err = newQuoterMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return q, nil
}

// Quote returns the best V3 route for the pair, or an error when no
// pool can price it.
func (q *V3Quoter) Quote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error) {
	ctx, span := q.tracer.Start(ctx, "router.v3_quote",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("amount_in", amountIn.Raw().String()),
		),
	)
	defer span.End()

	start := time.Now()
	q.metrics.quotesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("version", "v3")))

	var best *QuoteResult
	var bestFeeTier int

	for _, feeTier := range q.feeTiers {
		result, err := q.quoteFeeTier(ctx, pair.Base.Address(), pair.Quote.Address(), amountIn.Raw(), feeTier)
		if err != nil {
			span.AddEvent("fee_tier_failed",
				trace.WithAttributes(
					attribute.Int("fee_tier", feeTier),
					attribute.String("error", err.Error()),
				),
			)
			continue
		}

		if best == nil || result.AmountOut.Cmp(best.AmountOut) > 0 {
			best = result
			bestFeeTier = feeTier
		}
	}

	q.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("version", "v3")))

	if best == nil {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("version", "v3")))
		span.SetStatus(codes.Error, "no valid quote")
		return nil, apperror.New(apperror.CodeNoQuoteAvailable,
			apperror.WithContext("no v3 pool priced "+pair.String()))
	}

	gas := q.gasLimit
	if best.GasEstimate != nil && best.GasEstimate.Sign() > 0 {
		gas = best.GasEstimate.Uint64()
	}

	span.SetAttributes(
		attribute.String("amount_out", best.AmountOut.String()),
		attribute.Int("fee_tier", bestFeeTier),
	)
	span.SetStatus(codes.Ok, "quote received")

	return &domain.RouterQuote{
		Version:     domain.RouterV3,
		Router:      q.router,
		AmountIn:    amountIn,
		AmountOut:   asset.NewAmount(pair.Quote, best.AmountOut),
		FeeTier:     bestFeeTier,
		GasEstimate: gas,
		Source:      sourceV3,
		Timestamp:   time.Now(),
	}, nil
}

// quoteFeeTier calls QuoterV2.quoteExactInputSingle for a single fee tier.
func (q *V3Quoter) quoteFeeTier(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int) (*QuoteResult, error) {
	callData, err := q.quoterABI.Pack("quoteExactInputSingle", QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0), // No price limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	result, err := q.cb.Execute(func() ([]byte, error) {
		return q.client.CallContract(ctx, ethereum.CallMsg{
			To:   &q.quoter,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("quoter call failed for fee tier %d", feeTier)))
	}

	outputs, err := q.quoterABI.Unpack("quoteExactInputSingle", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	if len(outputs) < 4 {
		return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
	}

	return &QuoteResult{
		AmountOut:               outputs[0].(*big.Int),
		SqrtPriceX96After:       outputs[1].(*big.Int),
		InitializedTicksCrossed: outputs[2].(uint32),
		GasEstimate:             outputs[3].(*big.Int),
	}, nil
}
