package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xvey/dexmaker/business/feed/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
)

// stubSource is an in-memory PriceSource for service tests.
type stubSource struct {
	prices    map[string]domain.PriceQuote
	connected bool
}

func (s *stubSource) Connect(ctx context.Context) error { return nil }
func (s *stubSource) GetPrice(symbol string) (domain.PriceQuote, bool) {
	q, ok := s.prices[symbol]
	return q, ok
}
func (s *stubSource) OnPriceUpdate(handler func(domain.PriceQuote)) {}
func (s *stubSource) OnTerminalError(handler func(error))           {}
func (s *stubSource) IsConnected() bool                             { return s.connected }
func (s *stubSource) Close() error                                  { return nil }

func newTestService(source *stubSource) *FeedService {
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	return NewFeedService(source, 30*time.Second, log)
}

func TestFeedService_GetPrice_Unknown(t *testing.T) {
	svc := newTestService(&stubSource{prices: map[string]domain.PriceQuote{}})

	_, err := svc.GetPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if !apperror.IsCode(err, apperror.CodeUnknownPair) {
		t.Errorf("expected CodeUnknownPair, got %v", apperror.GetCode(err))
	}
}

func TestFeedService_FreshPrice(t *testing.T) {
	now := time.Now()
	source := &stubSource{prices: map[string]domain.PriceQuote{
		"HYPE": {Symbol: "HYPE", Price: decimal.RequireFromString("44.85"), Timestamp: now, Source: "hyperliquid"},
		"OLD":  {Symbol: "OLD", Price: decimal.RequireFromString("1.00"), Timestamp: now.Add(-5 * time.Minute), Source: "hyperliquid"},
	}}
	svc := newTestService(source)

	quote, err := svc.FreshPrice(context.Background(), "HYPE")
	if err != nil {
		t.Fatalf("FreshPrice(HYPE): %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("44.85")) {
		t.Errorf("expected 44.85, got %s", quote.Price)
	}

	_, err = svc.FreshPrice(context.Background(), "OLD")
	if !apperror.IsCode(err, apperror.CodeStalePrice) {
		t.Errorf("expected CodeStalePrice, got %v", err)
	}

	if svc.HasRecentPrice("OLD", 0) {
		t.Error("OLD must not count as recent under the default timeout")
	}
	if !svc.HasRecentPrice("HYPE", 0) {
		t.Error("HYPE must count as recent under the default timeout")
	}
	if !svc.HasRecentPrice("OLD", 10*time.Minute) {
		t.Error("OLD must count as recent under a 10m window")
	}
	if svc.HasRecentPrice("HYPE", time.Nanosecond) {
		t.Error("HYPE must not count as recent under a 1ns window")
	}
}
