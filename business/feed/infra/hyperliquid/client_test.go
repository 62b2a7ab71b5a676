package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"github.com/0xvey/dexmaker/business/feed/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/wsconn"
)

// mockFeedServer creates a test WebSocket server speaking the
// Hyperliquid wire protocol.
func mockFeedServer(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(r.Context(), conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig(url)
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 100 * time.Millisecond
	cfg.PingInterval = 50 * time.Millisecond
	cfg.PongTimeout = 50 * time.Millisecond
	return cfg
}

// sendEvent writes a channel-tagged event to the client.
func sendEvent(ctx context.Context, conn *websocket.Conn, channel string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(WSEvent{Channel: channel, Data: raw})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

// readRequest reads and decodes one outbound client message.
func readRequest(ctx context.Context, conn *websocket.Conn) (WSRequest, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return WSRequest{}, err
	}
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return WSRequest{}, err
	}
	return req, nil
}

func TestClient_SubscribesToAllMidsOnConnect(t *testing.T) {
	subscribed := make(chan WSRequest, 1)

	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		req, err := readRequest(ctx, conn)
		if err != nil {
			return
		}
		subscribed <- req
		sendEvent(ctx, conn, ChannelSubscriptionResp, map[string]any{})
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	client, err := NewClient(testClientConfig(wsURL(server)), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case req := <-subscribed:
		if req.Method != "subscribe" {
			t.Errorf("expected method subscribe, got %q", req.Method)
		}
		if req.Subscription == nil || req.Subscription.Type != "allMids" {
			t.Errorf("expected allMids subscription, got %+v", req.Subscription)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe request")
	}
}

func TestClient_UpdatesPriceTable(t *testing.T) {
	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if _, err := readRequest(ctx, conn); err != nil {
			return
		}
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{
			"HYPE": "44.85",
			"BTC":  "112000.5",
			"@107": "1.23", // internal index entry, must be skipped
		}})
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client, err := NewClient(testClientConfig(wsURL(server)), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	updates := make(chan domain.PriceQuote, 16)
	client.OnPriceUpdate(func(q domain.PriceQuote) { updates <- q })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, ok := client.GetPrice("HYPE")
		return ok
	})

	quote, ok := client.GetPrice("HYPE")
	if !ok {
		t.Fatal("expected HYPE price in table")
	}
	if !quote.Price.Equal(decimal.RequireFromString("44.85")) {
		t.Errorf("expected HYPE price 44.85, got %s", quote.Price)
	}
	if quote.Source != "hyperliquid" {
		t.Errorf("expected source hyperliquid, got %q", quote.Source)
	}

	if _, ok := client.GetPrice("@107"); ok {
		t.Error("internal index symbol must not enter the price table")
	}
}

func TestClient_AnnounceThreshold(t *testing.T) {
	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if _, err := readRequest(ctx, conn); err != nil {
			return
		}
		// First observation always announces.
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{"HYPE": "44.85"}})
		time.Sleep(50 * time.Millisecond)
		// ~0.02% move: below the 0.1% threshold, no announce.
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{"HYPE": "44.86"}})
		time.Sleep(50 * time.Millisecond)
		// ~0.11% move from the last announced 44.85: announces.
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{"HYPE": "44.90"}})
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.AnnounceThreshold = decimal.NewFromFloat(0.001)

	client, err := NewClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	updates := make(chan domain.PriceQuote, 16)
	client.OnPriceUpdate(func(q domain.PriceQuote) { updates <- q })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var announced []string
	deadline := time.After(2 * time.Second)
	for len(announced) < 2 {
		select {
		case q := <-updates:
			announced = append(announced, q.Price.String())
		case <-deadline:
			t.Fatalf("timed out, announced so far: %v", announced)
		}
	}

	if announced[0] != "44.85" || announced[1] != "44.9" {
		t.Errorf("expected announces [44.85 44.9], got %v", announced)
	}

	// The intermediate tick must still be visible in the table even
	// though it was never announced.
	select {
	case q := <-updates:
		t.Errorf("unexpected extra announce: %s", q.Price)
	default:
	}
}

func TestClient_SkipsMalformedMids(t *testing.T) {
	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if _, err := readRequest(ctx, conn); err != nil {
			return
		}
		// Garbage frame must not kill the connection.
		conn.Write(ctx, websocket.MessageText, []byte("{not json"))
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{
			"BAD1": "abc",
			"BAD2": "-3",
			"BAD3": "0",
			"HYPE": "44.85",
		}})
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client, err := NewClient(testClientConfig(wsURL(server)), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, ok := client.GetPrice("HYPE")
		return ok
	})

	for _, sym := range []string{"BAD1", "BAD2", "BAD3"} {
		if _, ok := client.GetPrice(sym); ok {
			t.Errorf("invalid mid %s must not enter the price table", sym)
		}
	}
}

func TestClient_SendsHeartbeatPings(t *testing.T) {
	pings := make(chan struct{}, 8)

	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for {
			req, err := readRequest(ctx, conn)
			if err != nil {
				return
			}
			if req.Method == "ping" {
				pings <- struct{}{}
				sendEvent(ctx, conn, ChannelPong, map[string]any{})
			}
		}
	})
	defer server.Close()

	client, err := NewClient(testClientConfig(wsURL(server)), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat ping")
	}
}

func TestClient_ReconnectsOnPongTimeout(t *testing.T) {
	var connections atomic.Int32

	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		connections.Add(1)
		// Read the subscribe and all pings but never answer: the
		// client must force a reconnect on its own.
		for {
			if _, err := readRequest(ctx, conn); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 30 * time.Millisecond
	cfg.PongTimeout = 30 * time.Millisecond

	client, err := NewClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		return connections.Load() >= 2
	})
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var connections atomic.Int32

	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		n := connections.Add(1)
		if _, err := readRequest(ctx, conn); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after the subscribe.
			conn.Close(websocket.StatusGoingAway, "bye")
			return
		}
		sendEvent(ctx, conn, ChannelAllMids, AllMidsData{Mids: map[string]string{"HYPE": "45.00"}})
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	client, err := NewClient(testClientConfig(wsURL(server)), testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// After the drop the client must reconnect, resubscribe and keep
	// updating the price table.
	waitFor(t, 3*time.Second, func() bool {
		_, ok := client.GetPrice("HYPE")
		return ok
	})

	if connections.Load() < 2 {
		t.Errorf("expected at least 2 connections, got %d", connections.Load())
	}
}

func TestClient_TerminalErrorAfterReconnectBudget(t *testing.T) {
	server := mockFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if _, err := readRequest(ctx, conn); err != nil {
			return
		}
		conn.Close(websocket.StatusGoingAway, "bye")
	})

	cfg := testClientConfig(wsURL(server))
	cfg.MaxReconnects = 2

	client, err := NewClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	terminal := make(chan error, 1)
	client.OnTerminalError(func(err error) { terminal <- err })

	states := make(chan wsconn.State, 16)
	client.OnStateChange(func(state wsconn.State, cause error) { states <- state })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Take the server away for good: every reconnect attempt must fail
	// until the budget runs out.
	server.Close()

	var cause error
	select {
	case cause = <-terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal error")
	}

	if !apperror.IsCode(cause, apperror.CodeFeedConnectionFailed) {
		t.Errorf("expected CodeFeedConnectionFailed, got %v", cause)
	}
	if !errors.Is(cause, wsconn.ErrMaxReconnects) {
		t.Errorf("terminal error must carry the exhausted-budget cause, got %v", cause)
	}
	if client.IsConnected() {
		t.Error("client must not report connected after giving up")
	}

	// The state handler sees the terminal disconnect too.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == wsconn.StateDisconnected {
				return
			}
		case <-deadline:
			t.Fatal("expected a disconnected transition through OnStateChange")
		}
	}
}

// waitFor polls cond until it is true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
