// Package exchange contains the shared lifecycle engine behind both feed
// clients. Each exchange contributes a Wire that knows its URL scheme,
// subscription protocol and frame format; the engine owns connecting,
// reading, keepalive and reconnection.
package exchange

import (
	"context"
	"time"

	"coinwatch/bus"
	"coinwatch/types"
)

// Client is the contract the rest of the system programs against. All
// methods are asynchronous; outcomes are reported on the status bus.
type Client interface {
	// Connect (re)establishes the connection for the given subscription
	// set. Connecting with the set already being served is a no-op that
	// republishes Connected. An empty set is equivalent to Disconnect.
	Connect(set []string)
	// UpdateSubscription switches the connection to a new set, live when
	// the wire protocol allows it, otherwise by reconnecting.
	UpdateSubscription(set []string)
	// Disconnect stops the client and suppresses automatic reconnection
	// until the next Connect/UpdateSubscription.
	Disconnect()
	// Shutdown releases all resources. Terminal.
	Shutdown()

	Status() *bus.StatusBus
	Updates() *bus.UpdateBus
}

// Conn is the transport-level connection the engine drives. The production
// implementation wraps a gorilla websocket; tests substitute fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Ping() error
	Close() error
}

// Dialer opens transport connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Message is the result of parsing one inbound frame. A zero Message means
// the frame carried nothing of interest (heartbeats, acks).
type Message struct {
	Update *types.PriceUpdate
	// Err carries a protocol-level error frame. It surfaces as a status
	// event but does not terminate the connection.
	Err string
}

// Wire is the exchange-specific half of a stream client.
type Wire interface {
	Name() types.Source
	// URL builds the connect URL for a subscription set.
	URL(set []string) string
	// AfterOpen runs protocol setup on a fresh connection, e.g. sending a
	// subscribe control message. A failure here counts as a transport
	// failure.
	AfterOpen(conn Conn, set []string) error
	// SupportsResubscribe reports whether the protocol can swap
	// subscriptions on a live connection.
	SupportsResubscribe() bool
	// Resubscribe swaps the live subscription from old to new. Only called
	// when SupportsResubscribe is true.
	Resubscribe(conn Conn, old, new []string) error
	// Parse decodes one inbound frame. An error means the frame was
	// malformed; it is logged and dropped.
	Parse(frame []byte) (Message, error)
	PingInterval() time.Duration
	ReconnectDelay() time.Duration
}
