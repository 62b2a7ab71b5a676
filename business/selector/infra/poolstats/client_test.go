package poolstats

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func TestFetchMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HYPE-USDC", r.URL.Query().Get("pair"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(poolStatsResponse{
			Pair:          "HYPE-USDC",
			LiquidityUSD:  "2500000.50",
			Volume24hUSD:  "900000",
			Volatility24h: 0.06,
			SpreadBps:     12.5,
			ProfitBps:     8.3,
			RiskScore:     0.35,
		})
	}))
	defer server.Close()

	client, err := New(server.URL, testLogger())
	require.NoError(t, err)

	m, err := client.FetchMetrics(context.Background(), "HYPE-USDC")
	require.NoError(t, err)

	assert.True(t, m.LiquidityUSD.Equal(decimal.RequireFromString("2500000.50")), "liquidity mismatch: %s", m.LiquidityUSD)
	assert.True(t, m.Volume24hUSD.Equal(decimal.RequireFromString("900000")), "volume mismatch: %s", m.Volume24hUSD)
	assert.True(t, m.Profitability.Equal(decimal.RequireFromString("8.3")), "profitability mismatch: %s", m.Profitability)
	assert.True(t, m.RiskScore.Equal(decimal.RequireFromString("0.35")), "risk score mismatch: %s", m.RiskScore)
	assert.False(t, m.FetchedAt.IsZero(), "expected FetchedAt to be stamped")
}

func TestFetchMetrics_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pair not tracked", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := New(server.URL, testLogger())
	require.NoError(t, err)

	_, err = client.FetchMetrics(context.Background(), "NOPE-USDC")
	assert.True(t, apperror.IsCode(err, apperror.CodeMetricsFetchFailed), "expected CodeMetricsFetchFailed, got %v", err)
}

func TestFetchMetrics_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(poolStatsResponse{LiquidityUSD: "not-a-number", Volume24hUSD: "1"})
	}))
	defer server.Close()

	client, err := New(server.URL, testLogger())
	require.NoError(t, err)

	_, err = client.FetchMetrics(context.Background(), "HYPE-USDC")
	assert.True(t, apperror.IsCode(err, apperror.CodeMetricsFetchFailed), "expected CodeMetricsFetchFailed, got %v", err)
}
