package types

import "time"

// Source identifies one of the two price feeds.
type Source string

const (
	SourceBinance  Source = "binance"
	SourceCoinbase Source = "coinbase"
)

// PriceUpdate is one parsed ticker event as it came off the wire.
// Symbol carries the exchange's own identifier: the canonical symbol for
// Binance (e.g. "BTCUSDT"), the product id for Coinbase (e.g. "BTC-USD").
// Price is kept as raw text; parsing happens in the aggregator so a bad
// value can be dropped there without touching the connection.
type PriceUpdate struct {
	Source     Source
	Symbol     string
	Price      string
	ReceivedAt time.Time
}

// StatusKind enumerates the externally meaningful connection transitions.
type StatusKind int

const (
	StatusConnecting StatusKind = iota
	StatusConnected
	StatusError
	StatusClosed
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// ConnectionStatus is one event on a stream client's status channel.
// Manual marks a Closed event caused by an explicit disconnect, so the
// reconciler can tell it apart from an unexpected drop.
type ConnectionStatus struct {
	Kind    StatusKind
	Message string
	Manual  bool
}
