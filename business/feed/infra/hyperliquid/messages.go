// Package hyperliquid implements the PriceSource interface over the
// Hyperliquid WebSocket API.
package hyperliquid

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// WebSocket request/response messages

// WSRequest is the outbound message envelope.
type WSRequest struct {
	Method       string        `json:"method"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Subscription identifies the channel to subscribe to.
type Subscription struct {
	Type string `json:"type"`
}

// Channel names used by the upstream API.
const (
	ChannelAllMids          = "allMids"
	ChannelPong             = "pong"
	ChannelSubscriptionResp = "subscriptionResponse"
	ChannelError            = "error"
)

// SubscribeAllMids builds the allMids subscription request.
func SubscribeAllMids() WSRequest {
	return WSRequest{
		Method:       "subscribe",
		Subscription: &Subscription{Type: ChannelAllMids},
	}
}

// Ping builds the application-level heartbeat request.
func Ping() WSRequest {
	return WSRequest{Method: "ping"}
}

// WSEvent is the inbound message envelope. Every server message carries
// a channel tag and a channel-specific data payload.
type WSEvent struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// AllMidsData is the payload of an allMids event: a map from coin
// symbol to mid price, both as strings.
type AllMidsData struct {
	Mids map[string]string `json:"mids"`
}

// ParseMid parses a single mid price string. It rejects non-numeric,
// non-finite and non-positive values.
func ParseMid(raw string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if price.Sign() <= 0 {
		return decimal.Zero, false
	}
	return price, true
}

// IsInternalSymbol reports whether a symbol is an internal index entry
// (e.g. "@107") rather than a tradeable coin.
func IsInternalSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, "@")
}
