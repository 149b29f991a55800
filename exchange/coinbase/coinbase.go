// Package coinbase implements the Coinbase side of the price feed: a fixed
// endpoint with subscribe/unsubscribe control messages on the ticker
// channel, so subscription changes do not require a reconnect.
package coinbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"coinwatch/exchange"
	"coinwatch/types"
)

const (
	DefaultWSURL = "wss://ws-feed.exchange.coinbase.com"

	reconnectDelay = 5 * time.Second
	pingInterval   = 25 * time.Second
)

// subscribeRequest is the control message for both subscribe and
// unsubscribe, distinguished by Type.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type inboundFrame struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Message   string `json:"message"`
}

type Wire struct {
	url string
}

func NewWire(url string) *Wire {
	if url == "" {
		url = DefaultWSURL
	}
	return &Wire{url: url}
}

// NewClient builds a stream client speaking the Coinbase wire protocol over
// the given dialer.
func NewClient(url string, dialer exchange.Dialer) *exchange.StreamClient {
	return exchange.NewStreamClient(NewWire(url), dialer)
}

func (w *Wire) Name() types.Source { return types.SourceCoinbase }

func (w *Wire) URL(set []string) string { return w.url }

// AfterOpen subscribes the ticker channel for the requested products. A
// rejected send counts as a transport failure upstream.
func (w *Wire) AfterOpen(conn exchange.Conn, set []string) error {
	return w.send(conn, "subscribe", set)
}

func (w *Wire) SupportsResubscribe() bool { return true }

// Resubscribe swaps the live subscription: unsubscribe everything no longer
// wanted, subscribe everything new.
func (w *Wire) Resubscribe(conn exchange.Conn, old, new []string) error {
	removed := diff(old, new)
	added := diff(new, old)
	if err := w.send(conn, "unsubscribe", removed); err != nil {
		return err
	}
	return w.send(conn, "subscribe", added)
}

func (w *Wire) send(conn exchange.Conn, typ string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	req := subscribeRequest{Type: typ, ProductIDs: productIDs, Channels: []string{"ticker"}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	log.Debug().Str("type", typ).Strs("product_ids", productIDs).Msg("coinbase control message sent")
	return nil
}

func (w *Wire) Parse(frame []byte) (exchange.Message, error) {
	var f inboundFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return exchange.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case "ticker":
		if f.ProductID == "" || f.Price == "" {
			// Tickers without a trade yet carry no price.
			return exchange.Message{}, nil
		}
		return exchange.Message{Update: &types.PriceUpdate{
			Source:     types.SourceCoinbase,
			Symbol:     f.ProductID,
			Price:      f.Price,
			ReceivedAt: time.Now(),
		}}, nil
	case "error":
		msg := f.Message
		if msg == "" {
			msg = "unknown coinbase error"
		}
		return exchange.Message{Err: msg}, nil
	case "subscriptions":
		log.Debug().Msg("coinbase subscription confirmation received")
		return exchange.Message{}, nil
	default:
		return exchange.Message{}, nil
	}
}

func (w *Wire) PingInterval() time.Duration   { return pingInterval }
func (w *Wire) ReconnectDelay() time.Duration { return reconnectDelay }

// diff returns the elements of a that are not in b.
func diff(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
