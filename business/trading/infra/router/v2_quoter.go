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

// V2Quoter prices swaps through the V2 router's getAmountsOut, probing
// the direct path plus one-hop paths through configured intermediates.
type V2Quoter struct {
	client    contractCaller
	router    common.Address
	routerABI abi.ABI
	hops      []common.Address
	gasLimit  uint64 // fixed gas ceiling for V2 swaps

	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	tracer  trace.Tracer
	metrics *quoterMetrics
}

// NewV2Quoter creates a V2 quoter.
func NewV2Quoter(client contractCaller, router common.Address, hops []common.Address, gasLimit uint64, log logger.LoggerInterface) (*V2Quoter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(V2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse v2 router ABI: %w", err)
	}

	q := &V2Quoter{
		client:    client,
		router:    router,
		routerABI: parsedABI,
		hops:      hops,
		gasLimit:  gasLimit,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	q.cb = circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("v2-quoter"))

	q.metrics, err = newQuoterMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return q, nil
}

// buildPaths returns the candidate swap paths: the direct pair first,
// then one-hop routes through each intermediate token.
func buildPaths(tokenIn, tokenOut common.Address, hops []common.Address) [][]common.Address {
	paths := [][]common.Address{{tokenIn, tokenOut}}
	for _, hop := range hops {
		if hop == tokenIn || hop == tokenOut {
			continue
		}
		paths = append(paths, []common.Address{tokenIn, hop, tokenOut})
	}
	return paths
}

// Quote returns the best V2 route for the pair, or an error when no
// path can price it.
func (q *V2Quoter) Quote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error) {
	ctx, span := q.tracer.Start(ctx, "router.v2_quote",
		trace.WithAttributes(
			attribute.String("pair", pair.String()),
			attribute.String("amount_in", amountIn.Raw().String()),
		),
	)
	defer span.End()

	start := time.Now()
	q.metrics.quotesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("version", "v2")))

	var bestOut *big.Int
	var bestPath []common.Address

	for _, path := range buildPaths(pair.Base.Address(), pair.Quote.Address(), q.hops) {
		out, err := q.amountsOut(ctx, amountIn.Raw(), path)
		if err != nil {
			span.AddEvent("path_failed",
				trace.WithAttributes(
					attribute.Int("hops", len(path)-1),
					attribute.String("error", err.Error()),
				),
			)
			continue
		}

		if bestOut == nil || out.Cmp(bestOut) > 0 {
			bestOut = out
			bestPath = path
		}
	}

	q.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("version", "v2")))

	if bestOut == nil {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("version", "v2")))
		span.SetStatus(codes.Error, "no valid quote")
		return nil, apperror.New(apperror.CodeNoQuoteAvailable,
			apperror.WithContext("no v2 path priced "+pair.String()))
	}

	span.SetAttributes(
		attribute.String("amount_out", bestOut.String()),
		attribute.Int("path_len", len(bestPath)),
	)
	span.SetStatus(codes.Ok, "quote received")

	return &domain.RouterQuote{
		Version:     domain.RouterV2,
		Router:      q.router,
		AmountIn:    amountIn,
		AmountOut:   asset.NewAmount(pair.Quote, bestOut),
		Path:        bestPath,
		GasEstimate: q.gasLimit,
		Source:      sourceV2,
		Timestamp:   time.Now(),
	}, nil
}

// amountsOut calls getAmountsOut for one path and returns the final output.
func (q *V2Quoter) amountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	callData, err := q.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	result, err := q.cb.Execute(func() ([]byte, error) {
		return q.client.CallContract(ctx, ethereum.CallMsg{
			To:   &q.router,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("getAmountsOut call failed"))
	}

	outputs, err := q.routerABI.Unpack("getAmountsOut", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	if len(outputs) < 1 {
		return nil, fmt.Errorf("empty getAmountsOut result")
	}

	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("getAmountsOut returned malformed amounts"))
	}

	out := amounts[len(amounts)-1]
	if out.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("getAmountsOut returned zero output"))
	}

	return out, nil
}
