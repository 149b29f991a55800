// Package binance implements the Binance side of the price feed: combined
// miniTicker streams addressed in the connect URL. The protocol has no live
// resubscription for URL-scoped streams, so every set change reconnects.
package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinwatch/exchange"
	"coinwatch/types"
)

const (
	DefaultWSBaseURL = "wss://stream.binance.com:9443/stream?streams="

	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// miniTicker is the payload of one combined-stream frame. Only the symbol
// and the close price are of interest.
type miniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

type streamFrame struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

type Wire struct {
	baseURL string
}

func NewWire(baseURL string) *Wire {
	if baseURL == "" {
		baseURL = DefaultWSBaseURL
	}
	return &Wire{baseURL: baseURL}
}

// NewClient builds a stream client speaking the Binance wire protocol over
// the given dialer.
func NewClient(baseURL string, dialer exchange.Dialer) *exchange.StreamClient {
	return exchange.NewStreamClient(NewWire(baseURL), dialer)
}

func (w *Wire) Name() types.Source { return types.SourceBinance }

// URL embeds the subscription set as lowercase <symbol>@miniTicker stream
// names in the connect URL.
func (w *Wire) URL(set []string) string {
	streams := make([]string, len(set))
	for i, symbol := range set {
		streams[i] = strings.ToLower(symbol) + "@miniTicker"
	}
	return w.baseURL + strings.Join(streams, "/")
}

func (w *Wire) AfterOpen(conn exchange.Conn, set []string) error { return nil }

func (w *Wire) SupportsResubscribe() bool { return false }

func (w *Wire) Resubscribe(conn exchange.Conn, old, new []string) error {
	return fmt.Errorf("binance wire does not support live resubscription")
}

func (w *Wire) Parse(frame []byte) (exchange.Message, error) {
	var f streamFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return exchange.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Data.Symbol == "" || f.Data.Close == "" {
		// Control frames (subscription acks) have no data payload.
		return exchange.Message{}, nil
	}
	return exchange.Message{Update: &types.PriceUpdate{
		Source:     types.SourceBinance,
		Symbol:     f.Data.Symbol,
		Price:      f.Data.Close,
		ReceivedAt: time.Now(),
	}}, nil
}

func (w *Wire) PingInterval() time.Duration   { return pingInterval }
func (w *Wire) ReconnectDelay() time.Duration { return reconnectDelay }
