package app

import (
	"context"
	"time"

	"github.com/0xvey/dexmaker/business/feed/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
)

// FeedService exposes the last-price table to other modules and guards
// consumers against stale data.
type FeedService struct {
	source       PriceSource
	staleTimeout time.Duration
	logger       logger.LoggerInterface
}

// NewFeedService creates a FeedService over a PriceSource.
func NewFeedService(source PriceSource, staleTimeout time.Duration, log logger.LoggerInterface) *FeedService {
	return &FeedService{
		source:       source,
		staleTimeout: staleTimeout,
		logger:       log,
	}
}

// GetPrice returns the last observed quote for a symbol, regardless of age.
func (s *FeedService) GetPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	quote, ok := s.source.GetPrice(symbol)
	if !ok {
		return domain.PriceQuote{}, apperror.New(apperror.CodeUnknownPair,
			apperror.WithContext("no price observed for symbol "+symbol))
	}
	return quote, nil
}

// FreshPrice returns the last quote only if it is younger than the
// configured stale timeout.
func (s *FeedService) FreshPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	quote, err := s.GetPrice(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	if !quote.IsFresh(s.staleTimeout) {
		return domain.PriceQuote{}, apperror.New(apperror.CodeStalePrice,
			apperror.WithContext("price for "+symbol+" older than stale timeout"))
	}

	return quote, nil
}

// HasRecentPrice reports whether a quote younger than maxAge exists for
// a symbol. maxAge <= 0 falls back to the configured stale timeout.
func (s *FeedService) HasRecentPrice(symbol string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = s.staleTimeout
	}
	quote, ok := s.source.GetPrice(symbol)
	return ok && quote.IsFresh(maxAge)
}

// OnPriceUpdate registers a handler fired on announced price moves.
func (s *FeedService) OnPriceUpdate(handler func(domain.PriceQuote)) {
	s.source.OnPriceUpdate(handler)
}

// OnTerminalError registers a handler fired when the price stream gives
// up reconnecting.
func (s *FeedService) OnTerminalError(handler func(error)) {
	s.source.OnTerminalError(handler)
}

// Healthy reports whether the underlying stream is connected.
func (s *FeedService) Healthy() bool {
	return s.source.IsConnected()
}
