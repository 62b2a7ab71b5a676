package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/feed/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/wsconn"
)

const (
	tracerName = "hyperliquid"
	meterName  = "hyperliquid"

	// Hyperliquid WebSocket endpoints
	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL = "wss://api.hyperliquid-testnet.xyz/ws"

	sourceName = "hyperliquid"
)

// ClientConfig holds configuration for the Hyperliquid client.
type ClientConfig struct {
	URL               string
	PingInterval      time.Duration // application-level ping cadence
	PongTimeout       time.Duration // max silence before forcing a reconnect
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MaxReconnects     int // 0 = infinite
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	AnnounceThreshold decimal.Decimal // fraction, e.g. 0.001 for 0.1%
}

// DefaultClientConfig returns sensible defaults for the mainnet feed.
func DefaultClientConfig(url string) ClientConfig {
	if url == "" {
		url = MainnetWSURL
	}
	return ClientConfig{
		URL:               url,
		PingInterval:      30 * time.Second,
		PongTimeout:       10 * time.Second,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		MaxReconnects:     0,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		AnnounceThreshold: decimal.NewFromFloat(0.001),
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	messagesReceived  metric.Int64Counter
	midsUpdates       metric.Int64Counter
	announcedMoves    metric.Int64Counter
	parseErrors       metric.Int64Counter
	heartbeatTimeouts metric.Int64Counter
}

// Client is a Hyperliquid WebSocket mid-price client. It maintains a
// last-price table for every symbol seen on the allMids channel and
// fires a handler whenever a price moves beyond the announce threshold.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	// Last-price table
	prices        map[string]domain.PriceQuote
	lastAnnounced map[string]decimal.Decimal
	pricesMu      sync.RWMutex

	// Handlers
	onPrice    func(domain.PriceQuote)
	onState    wsconn.StateHandler
	onTerminal func(error)
	handlersMu sync.RWMutex

	// Heartbeat
	lastPong      atomic.Int64 // unix nanos
	stopHeartbeat chan struct{}
	heartbeatOnce sync.Once

	// Observability
	tracer  trace.Tracer
	metrics *clientMetrics

	// State
	running atomic.Bool
}

// NewClient creates a new Hyperliquid WebSocket client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.AnnounceThreshold.Sign() <= 0 {
		cfg.AnnounceThreshold = decimal.NewFromFloat(0.001)
	}

	c := &Client{
		config:        cfg,
		logger:        log,
		prices:        make(map[string]domain.PriceQuote),
		lastAnnounced: make(map[string]decimal.Decimal),
		stopHeartbeat: make(chan struct{}),
		tracer:        otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"hyperliquid_messages_total",
		metric.WithDescription("Total messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.midsUpdates, err = meter.Int64Counter(
		"hyperliquid_mids_updates_total",
		metric.WithDescription("Total allMids updates received"),
	)
	if err != nil {
		return err
	}

	c.metrics.announcedMoves, err = meter.Int64Counter(
		"hyperliquid_announced_moves_total",
		metric.WithDescription("Price moves beyond the announce threshold"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"hyperliquid_parse_errors_total",
		metric.WithDescription("Message parse errors"),
	)
	if err != nil {
		return err
	}

	c.metrics.heartbeatTimeouts, err = meter.Int64Counter(
		"hyperliquid_heartbeat_timeouts_total",
		metric.WithDescription("Forced reconnects after missing pongs"),
	)
	if err != nil {
		return err
	}

	return nil
}

// OnPriceUpdate registers a handler fired on announced price moves.
func (c *Client) OnPriceUpdate(handler func(domain.PriceQuote)) {
	c.handlersMu.Lock()
	c.onPrice = handler
	c.handlersMu.Unlock()
}

// OnStateChange registers a handler forwarded every connection state
// transition, including the terminal one.
func (c *Client) OnStateChange(handler wsconn.StateHandler) {
	c.handlersMu.Lock()
	c.onState = handler
	c.handlersMu.Unlock()
}

// OnTerminalError registers a handler fired once when the reconnect
// budget is exhausted and the client gives up. The client is dead at
// that point; the caller decides whether to rebuild it.
func (c *Client) OnTerminalError(handler func(error)) {
	c.handlersMu.Lock()
	c.onTerminal = handler
	c.handlersMu.Unlock()
}

// Connect establishes the WebSocket connection, subscribes to allMids
// and starts the application-level heartbeat.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "hyperliquid.connect",
		trace.WithAttributes(attribute.String("url", c.config.URL)),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(c.config.URL, "hyperliquid")
	wsCfg.InitialBackoff = c.config.InitialBackoff
	wsCfg.MaxBackoff = c.config.MaxBackoff
	wsCfg.MaxReconnects = c.config.MaxReconnects
	wsCfg.ReadTimeout = c.config.ReadTimeout
	wsCfg.WriteTimeout = c.config.WriteTimeout
	// Liveness is tracked with application-level ping/pong messages, so
	// transport pings stay off.
	wsCfg.PingInterval = 0

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeFeedConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}

	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(func(state wsconn.State, cause error) {
		// Resubscribe on every (re)connect: the upstream drops all
		// subscriptions when the socket closes.
		if state == wsconn.StateConnected {
			c.lastPong.Store(time.Now().UnixNano())
			if err := conn.SendJSON(context.Background(), SubscribeAllMids()); err != nil {
				c.logger.Warn(context.Background(), "allMids resubscribe failed", "error", err)
			}
		}
		if state == wsconn.StateReconnecting && cause != nil {
			c.logger.Warn(context.Background(), "feed connection lost, reconnecting", "error", cause)
		}
		if state == wsconn.StateDisconnected && errors.Is(cause, wsconn.ErrMaxReconnects) {
			c.terminate(cause)
		}

		c.handlersMu.RLock()
		handler := c.onState
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(state, cause)
		}
	})

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeFeedConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to Hyperliquid"))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.running.Store(true)
	go c.heartbeat(ctx)

	c.logger.Info(ctx, "hyperliquid client connected", "url", c.config.URL)

	return nil
}

// handleMessage processes incoming WebSocket messages.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var event WSEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse message", "error", err, "data", string(data[:min(len(data), 500)]))
		return
	}

	switch event.Channel {
	case ChannelPong:
		c.lastPong.Store(time.Now().UnixNano())

	case ChannelSubscriptionResp:
		c.logger.Debug(ctx, "subscription confirmed")

	case ChannelError:
		c.logger.Warn(ctx, "upstream error message", "data", string(event.Data))

	case ChannelAllMids:
		c.handleAllMids(ctx, event.Data)

	default:
		c.logger.Debug(ctx, "ignoring message on unknown channel", "channel", event.Channel)
	}
}

// handleAllMids updates the last-price table from an allMids payload.
func (c *Client) handleAllMids(ctx context.Context, data []byte) {
	var mids AllMidsData
	if err := json.Unmarshal(data, &mids); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Warn(ctx, "failed to parse allMids", "error", err)
		return
	}

	c.metrics.midsUpdates.Add(ctx, 1)

	var announced []domain.PriceQuote

	c.pricesMu.Lock()
	for symbol, raw := range mids.Mids {
		if IsInternalSymbol(symbol) {
			continue
		}

		price, ok := ParseMid(raw)
		if !ok {
			c.metrics.parseErrors.Add(ctx, 1)
			continue
		}

		quote := domain.NewPriceQuote(symbol, price, sourceName)
		c.prices[symbol] = quote

		if quote.MovedBeyond(c.lastAnnounced[symbol], c.config.AnnounceThreshold) {
			c.lastAnnounced[symbol] = price
			announced = append(announced, quote)
		}
	}
	c.pricesMu.Unlock()

	if len(announced) == 0 {
		return
	}

	c.metrics.announcedMoves.Add(ctx, int64(len(announced)))

	c.handlersMu.RLock()
	handler := c.onPrice
	c.handlersMu.RUnlock()

	if handler != nil {
		for _, quote := range announced {
			handler(quote)
		}
	}
}

// terminate shuts the client down after the reconnect budget is spent
// and notifies the terminal handler. Heartbeats stop: there is no
// connection left to keep alive.
func (c *Client) terminate(cause error) {
	c.running.Store(false)
	c.haltHeartbeat()

	err := apperror.New(apperror.CodeFeedConnectionFailed,
		apperror.WithCause(cause),
		apperror.WithContext("feed reconnect budget exhausted"))

	c.logger.Error(context.Background(), "feed gave up reconnecting", "error", cause)

	c.handlersMu.RLock()
	handler := c.onTerminal
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

func (c *Client) haltHeartbeat() {
	c.heartbeatOnce.Do(func() { close(c.stopHeartbeat) })
}

// heartbeat sends application-level pings and forces a reconnect when
// the upstream stops answering, without waiting for the transport to
// notice the dead connection.
func (c *Client) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHeartbeat:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.running.Load() {
				return
			}

			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil || !conn.IsConnected() {
				continue
			}

			silence := time.Since(time.Unix(0, c.lastPong.Load()))
			if silence > c.config.PingInterval+c.config.PongTimeout {
				c.metrics.heartbeatTimeouts.Add(ctx, 1)
				c.logger.Warn(ctx, "pong overdue, forcing reconnect", "silence", silence)
				conn.ForceReconnect(apperror.New(apperror.CodeHeartbeatTimeout,
					apperror.WithContext("no pong within timeout")))
				continue
			}

			if err := conn.SendJSON(ctx, Ping()); err != nil {
				c.logger.Warn(ctx, "ping failed", "error", err)
			}
		}
	}
}

// GetPrice returns the last observed quote for a symbol.
func (c *Client) GetPrice(symbol string) (domain.PriceQuote, bool) {
	c.pricesMu.RLock()
	defer c.pricesMu.RUnlock()
	quote, ok := c.prices[symbol]
	return quote, ok
}

// Symbols returns all symbols currently present in the price table.
func (c *Client) Symbols() []string {
	c.pricesMu.RLock()
	defer c.pricesMu.RUnlock()

	symbols := make([]string, 0, len(c.prices))
	for s := range c.prices {
		symbols = append(symbols, s)
	}
	return symbols
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Reconnects returns the consecutive reconnect attempt count.
func (c *Client) Reconnects() int {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn == nil {
		return 0
	}
	return c.conn.Reconnects()
}

// Close closes the client connection. Idempotent.
func (c *Client) Close() error {
	c.running.Store(false)
	c.haltHeartbeat()

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
