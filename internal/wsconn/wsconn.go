// Package wsconn provides a WebSocket client with automatic reconnection,
// exponential backoff and protocol-level ping/pong liveness.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// ErrMaxReconnects is reported through the state handler when the retry
// budget is exhausted. The caller decides whether to restart the client.
var ErrMaxReconnects = errors.New("wsconn: max reconnect attempts exceeded")

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("wsconn: client is closed")

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition. err is non-nil for
// transitions caused by a failure (including the terminal ErrMaxReconnects).
type StateHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // used in metric attributes and errors
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int           // 0 = infinite
	PingInterval   time.Duration // 0 disables protocol pings
	PongTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20, // 1 MiB
	}
}

// backoffDelay returns the reconnect delay for the given consecutive failure
// count: InitialBackoff doubled per failure, capped at MaxBackoff. attempt 1
// yields the floor value.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

type clientMetrics struct {
	messagesReceived metric.Int64Counter
	reconnects       metric.Int64Counter
	sendErrors       metric.Int64Counter
}

// Client is a reconnecting WebSocket client.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage  MessageHandler
	onState    StateHandler
	handlersMu sync.RWMutex

	writeMu sync.Mutex

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	reconnects   atomic.Int32
	reconnecting atomic.Bool  // single-flight guard for the reconnect loop
	generation   atomic.Int64 // bumps on every (re)connect, stale loops exit
	closed       atomic.Bool

	metrics *clientMetrics
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("wsconn: url is required")
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config:     config,
		state:      StateDisconnected,
		lifeCtx:    ctx,
		lifeCancel: cancel,
	}

	if err := c.initMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter("wsconn")
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"ws_messages_received_total",
		metric.WithDescription("Total WebSocket messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.reconnects, err = meter.Int64Counter(
		"ws_reconnects_total",
		metric.WithDescription("Total WebSocket reconnect attempts"),
	)
	if err != nil {
		return err
	}

	c.metrics.sendErrors, err = meter.Int64Counter(
		"ws_send_errors_total",
		metric.WithDescription("Total WebSocket send errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// OnMessage registers the inbound message handler. Must be called before Connect.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = handler
	c.handlersMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(handler StateHandler) {
	c.handlersMu.Lock()
	c.onState = handler
	c.handlersMu.Unlock()
}

// Connect performs a single connection attempt.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.setState(StateConnecting, nil)

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}

	c.reconnects.Store(0)
	c.setState(StateConnected, nil)

	gen := c.generation.Add(1)
	go c.readLoop(gen)
	if c.config.PingInterval > 0 {
		go c.pingLoop(gen)
	}

	return nil
}

// ConnectWithRetry connects, retrying with exponential backoff until success,
// context cancellation, or the MaxReconnects budget is spent.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	attempt := 0
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		attempt++
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxReconnects, attempt, err)
		}

		delay := backoffDelay(c.config.InitialBackoff, c.config.MaxBackoff, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.lifeCtx.Done():
			return ErrClosed
		case <-time.After(delay):
		}
	}
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("wsconn %s: dial %s: %w", c.config.Name, c.config.URL, err)
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusGoingAway, "replaced")
	}
	c.conn = conn
	c.connMu.Unlock()

	return nil
}

// readLoop pumps inbound messages until the connection fails or the client closes.
func (c *Client) readLoop(gen int64) {
	for {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil || c.generation.Load() != gen {
			return
		}

		_, data, err := conn.Read(c.lifeCtx)
		if err != nil {
			if c.closed.Load() || c.generation.Load() != gen {
				return
			}
			c.handleDisconnect(err)
			return
		}

		c.metrics.messagesReceived.Add(c.lifeCtx, 1)

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()

		if handler != nil {
			handler(c.lifeCtx, data)
		}
	}
}

// pingLoop sends protocol pings and forces a reconnect when the pong does
// not arrive within PongTimeout, without waiting for the transport to
// report the failure.
func (c *Client) pingLoop(gen int64) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.lifeCtx.Done():
			return
		case <-ticker.C:
			if c.generation.Load() != gen || c.State() != StateConnected {
				return
			}

			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				return
			}

			pingCtx, cancel := context.WithTimeout(c.lifeCtx, c.config.PongTimeout)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil && c.generation.Load() == gen && !c.closed.Load() {
				c.ForceReconnect(fmt.Errorf("wsconn %s: ping failed: %w", c.config.Name, err))
				return
			}
		}
	}
}

// ForceReconnect tears down the current connection and starts the reconnect
// cycle. Used by callers implementing application-level heartbeats.
func (c *Client) ForceReconnect(cause error) {
	if c.closed.Load() {
		return
	}

	c.generation.Add(1) // invalidate running loops

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusGoingAway, "forced reconnect")
		c.conn = nil
	}
	c.connMu.Unlock()

	c.handleDisconnect(cause)
}

// handleDisconnect schedules reconnection with exponential backoff. Only one
// reconnect loop runs at a time; concurrent failure reports are coalesced.
func (c *Client) handleDisconnect(cause error) {
	if c.closed.Load() {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	c.setState(StateReconnecting, cause)

	go func() {
		defer c.reconnecting.Store(false)

		for {
			attempt := int(c.reconnects.Add(1))
			c.metrics.reconnects.Add(c.lifeCtx, 1)

			if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
				c.setState(StateDisconnected, ErrMaxReconnects)
				return
			}

			delay := backoffDelay(c.config.InitialBackoff, c.config.MaxBackoff, attempt)
			select {
			case <-c.lifeCtx.Done():
				return
			case <-time.After(delay):
			}

			dialCtx, cancel := context.WithTimeout(c.lifeCtx, 30*time.Second)
			err := c.dial(dialCtx)
			cancel()

			if err == nil {
				c.reconnects.Store(0)
				c.setState(StateConnected, nil)

				gen := c.generation.Add(1)
				go c.readLoop(gen)
				if c.config.PingInterval > 0 {
					go c.pingLoop(gen)
				}
				return
			}

			if c.closed.Load() {
				return
			}
		}
	}()
}

// Send sends a raw message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || c.State() != StateConnected {
		c.metrics.sendErrors.Add(ctx, 1)
		return fmt.Errorf("wsconn %s: not connected", c.config.Name)
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		c.metrics.sendErrors.Add(ctx, 1)
		return fmt.Errorf("wsconn %s: write: %w", c.config.Name, err)
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn %s: marshal: %w", c.config.Name, err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Reconnects returns the consecutive reconnect attempt count. Resets to zero
// on every successful connection.
func (c *Client) Reconnects() int {
	return int(c.reconnects.Load())
}

// Close gracefully closes the client. Idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.lifeCancel()

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "client closed")
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setState(StateClosed, nil)
	return nil
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	prev := c.state
	c.state = state
	c.stateMu.Unlock()

	if prev == state && err == nil {
		return
	}

	c.handlersMu.RLock()
	handler := c.onState
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(state, err)
	}
}
