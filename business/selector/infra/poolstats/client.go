// Package poolstats implements the MetricsSource interface over an
// HTTP pool statistics API.
package poolstats

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xvey/dexmaker/business/selector/app"
	"github.com/0xvey/dexmaker/business/selector/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/httpclient"
	"github.com/0xvey/dexmaker/internal/logger"
)

// Ensure Client implements MetricsSource.
var _ app.MetricsSource = (*Client)(nil)

// poolStatsResponse is the upstream API payload.
type poolStatsResponse struct {
	Pair          string  `json:"pair"`
	LiquidityUSD  string  `json:"liquidity_usd"`
	Volume24hUSD  string  `json:"volume_24h_usd"`
	Volatility24h float64 `json:"volatility_24h"`
	SpreadBps     float64 `json:"spread_bps"`
	ProfitBps     float64 `json:"profitability_bps"`
	RiskScore     float64 `json:"risk_score"`
}

// Client fetches pair metrics from a pool statistics endpoint.
type Client struct {
	http   httpclient.Client
	logger logger.LoggerInterface
}

// New creates a poolstats client rooted at baseURL.
func New(baseURL string, log logger.LoggerInterface) (*Client, error) {
	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithProviderName("poolstats"),
		httpclient.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	return &Client{http: httpClient, logger: log}, nil
}

// NewWithClient creates a poolstats client over an existing HTTP client.
func NewWithClient(httpClient httpclient.Client, log logger.LoggerInterface) *Client {
	return &Client{http: httpClient, logger: log}
}

// FetchMetrics retrieves the market snapshot for one pair.
func (c *Client) FetchMetrics(ctx context.Context, pair string) (domain.PairMetrics, error) {
	var payload poolStatsResponse

	resp, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("pair", pair)),
	).
		SetQueryParam("pair", pair).
		SetResult(&payload).
		Get(ctx, "/v1/pools")
	if err != nil {
		return domain.PairMetrics{}, apperror.New(apperror.CodeMetricsFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("pool stats request failed for "+pair))
	}

	if resp.StatusCode != http.StatusOK {
		return domain.PairMetrics{}, apperror.New(apperror.CodeMetricsFetchFailed,
			apperror.WithContext(fmt.Sprintf("pool stats returned %d for %s", resp.StatusCode, pair)))
	}

	liquidity, err := decimal.NewFromString(payload.LiquidityUSD)
	if err != nil {
		return domain.PairMetrics{}, apperror.New(apperror.CodeMetricsFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("malformed liquidity for "+pair))
	}

	volume, err := decimal.NewFromString(payload.Volume24hUSD)
	if err != nil {
		return domain.PairMetrics{}, apperror.New(apperror.CodeMetricsFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("malformed volume for "+pair))
	}

	return domain.PairMetrics{
		Pair:          pair,
		LiquidityUSD:  liquidity,
		Volume24hUSD:  volume,
		Volatility24h: decimal.NewFromFloat(payload.Volatility24h),
		SpreadBps:     decimal.NewFromFloat(payload.SpreadBps),
		Profitability: decimal.NewFromFloat(payload.ProfitBps),
		RiskScore:     decimal.NewFromFloat(payload.RiskScore),
		FetchedAt:     time.Now(),
	}, nil
}
