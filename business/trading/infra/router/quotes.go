package router

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/trading/app"
	"github.com/0xvey/dexmaker/business/trading/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
)

// versionQuoter prices one router generation.
type versionQuoter interface {
	Quote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error)
}

// Ensure CombinedQuoteSource implements QuoteSource.
var _ app.QuoteSource = (*CombinedQuoteSource)(nil)

// CombinedQuoteSource queries every router generation and returns the
// route with the highest output. A router that fails to quote is
// skipped; the call only errors when no router produced a route.
type CombinedQuoteSource struct {
	quoters []versionQuoter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewCombinedQuoteSource creates a quote source over the given quoters.
func NewCombinedQuoteSource(log logger.LoggerInterface, quoters ...versionQuoter) *CombinedQuoteSource {
	return &CombinedQuoteSource{
		quoters: quoters,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
}

// BestQuote returns the single best route across all routers.
func (s *CombinedQuoteSource) BestQuote(ctx context.Context, pair domain.Pair, amountIn asset.Amount) (*domain.RouterQuote, error) {
	ctx, span := s.tracer.Start(ctx, "router.best_quote",
		trace.WithAttributes(attribute.String("pair", pair.String())),
	)
	defer span.End()

	var best *domain.RouterQuote

	for _, quoter := range s.quoters {
		quote, err := quoter.Quote(ctx, pair, amountIn)
		if err != nil {
			s.logger.Debug(ctx, "router quote unavailable", "pair", pair.String(), "error", err)
			continue
		}

		if quote.BetterThan(best) {
			best = quote
		}
	}

	if best == nil {
		return nil, apperror.New(apperror.CodeNoQuoteAvailable,
			apperror.WithContext("no router priced "+pair.String()))
	}

	span.SetAttributes(
		attribute.String("version", string(best.Version)),
		attribute.String("amount_out", best.AmountOut.Raw().String()),
	)

	return best, nil
}
