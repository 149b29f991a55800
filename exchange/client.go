package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"coinwatch/bus"
	"coinwatch/types"
)

// State is the engine's connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateWaitingToRetry
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateWaitingToRetry:
		return "waiting_to_retry"
	}
	return "unknown"
}

// StreamClient drives one logical streaming connection to one exchange.
// Wire-level differences live in the injected Wire; the engine owns the
// lifecycle: at most one establishment attempt in flight, unbounded retry
// with delay on transport failure, no retry after a manual disconnect.
type StreamClient struct {
	wire    Wire
	dialer  Dialer
	backoff Backoff

	status  *bus.StatusBus
	updates *bus.UpdateBus

	mu         sync.Mutex
	state      State
	set        []string
	conn       Conn
	gen        int // connection generation; bumping it detaches stale read/ping loops
	manual     bool
	attempts   int
	retryTimer *time.Timer
	closed     bool
}

func NewStreamClient(wire Wire, dialer Dialer) *StreamClient {
	delay := wire.ReconnectDelay()
	return &StreamClient{
		wire:    wire,
		dialer:  dialer,
		backoff: Backoff{Base: delay, Max: delay},
		status:  bus.NewStatusBus(),
		updates: bus.NewUpdateBus(),
	}
}

func (c *StreamClient) Status() *bus.StatusBus  { return c.status }
func (c *StreamClient) Updates() *bus.UpdateBus { return c.updates }

// State reports the current lifecycle state.
func (c *StreamClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StreamClient) Connect(set []string) {
	if len(set) == 0 {
		c.Disconnect()
		return
	}
	set = normalizeSet(set)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.state == StateConnecting {
		log.Warn().Str("exchange", string(c.wire.Name())).Msg("connection attempt already in progress, ignoring connect")
		return
	}
	if c.state == StateOpen && equalSets(c.set, set) && c.retryTimer == nil {
		log.Debug().Str("exchange", string(c.wire.Name())).Msg("already connected with the same subscription set")
		c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnected})
		return
	}
	c.startLocked(set)
}

func (c *StreamClient) UpdateSubscription(set []string) {
	if len(set) == 0 {
		c.Disconnect()
		return
	}
	set = normalizeSet(set)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state == StateOpen && equalSets(c.set, set) && c.retryTimer == nil {
		log.Debug().Str("exchange", string(c.wire.Name())).Msg("subscription set unchanged, already connected")
		c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnected})
		c.mu.Unlock()
		return
	}
	if c.state == StateOpen && c.conn != nil && c.wire.SupportsResubscribe() {
		old := c.set
		c.set = set
		conn := c.conn
		gen := c.gen
		c.mu.Unlock()
		log.Info().Str("exchange", string(c.wire.Name())).Int("streams", len(set)).Msg("resubscribing on live connection")
		if err := c.wire.Resubscribe(conn, old, set); err != nil {
			c.transportFailure(gen, fmt.Errorf("resubscribe: %w", err))
			return
		}
		c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnected})
		return
	}
	if c.state == StateConnecting {
		log.Warn().Str("exchange", string(c.wire.Name())).Msg("connection attempt already in progress, ignoring subscription update")
		c.mu.Unlock()
		return
	}
	log.Info().Str("exchange", string(c.wire.Name())).Int("streams", len(set)).Msg("updating subscription, reconnecting")
	c.startLocked(set)
	c.mu.Unlock()
}

// startLocked tears down any current connection without a retry delay and
// launches a new establishment attempt. Caller holds c.mu.
func (c *StreamClient) startLocked(set []string) {
	c.manual = false
	c.set = set
	c.cancelRetryLocked()
	if c.conn != nil {
		// Closing to reconnect with new parameters: the read loop of the
		// old connection must not schedule a retry.
		c.state = StateClosing
		c.gen++
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.state = StateConnecting
	c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnecting})
	go c.establish(c.gen, set)
}

func (c *StreamClient) establish(gen int, set []string) {
	url := c.wire.URL(set)
	log.Info().Str("exchange", string(c.wire.Name())).Str("url", url).Msg("connecting")
	conn, err := c.dialer.Dial(context.Background(), url)
	if err != nil {
		c.transportFailure(gen, fmt.Errorf("dial: %w", err))
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.manual || c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	// Still StateConnecting: the connection only counts as open once the
	// wire's setup message went out, otherwise a concurrent subscription
	// update would resubscribe on a connection the old set is about to be
	// written to.
	c.conn = conn
	c.mu.Unlock()

	if err := c.wire.AfterOpen(conn, set); err != nil {
		c.transportFailure(gen, fmt.Errorf("subscribe on open: %w", err))
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.state = StateOpen
	c.attempts = 0
	c.mu.Unlock()

	log.Info().Str("exchange", string(c.wire.Name())).Int("streams", len(set)).Msg("connected")
	c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnected})
	go c.readLoop(gen, conn)
	go c.pingLoop(gen, conn)
}

func (c *StreamClient) readLoop(gen int, conn Conn) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			c.transportFailure(gen, fmt.Errorf("read: %w", err))
			return
		}
		msg, err := c.wire.Parse(frame)
		if err != nil {
			// Malformed frames are dropped; they never terminate the
			// connection.
			log.Warn().Err(err).Str("exchange", string(c.wire.Name())).Msg("dropping malformed frame")
			continue
		}
		if msg.Err != "" {
			log.Error().Str("exchange", string(c.wire.Name())).Str("message", msg.Err).Msg("error frame received")
			c.status.Publish(types.ConnectionStatus{Kind: types.StatusError, Message: msg.Err})
		}
		if msg.Update != nil {
			c.updates.Publish(*msg.Update)
		}
	}
}

func (c *StreamClient) pingLoop(gen int, conn Conn) {
	ticker := time.NewTicker(c.wire.PingInterval())
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}
		if err := conn.Ping(); err != nil {
			c.transportFailure(gen, fmt.Errorf("ping: %w", err))
			return
		}
	}
}

// transportFailure handles any transport-level error for generation gen:
// dial failures, read errors, failed sends. Stale generations are ignored,
// which covers both manual closes and reconnect-with-new-parameters.
func (c *StreamClient) transportFailure(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed || c.manual {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.gen++
	c.attempts++
	c.state = StateWaitingToRetry
	delay := c.backoff.Delay(c.attempts)
	log.Error().Err(err).Str("exchange", string(c.wire.Name())).Dur("retry_in", delay).Int("attempt", c.attempts).Msg("transport failure, reconnecting")
	c.status.Publish(types.ConnectionStatus{Kind: types.StatusError, Message: err.Error()})
	c.retryTimer = time.AfterFunc(delay, c.retryFire)
}

func (c *StreamClient) retryFire() {
	c.mu.Lock()
	c.retryTimer = nil
	if c.closed || c.manual || c.state != StateWaitingToRetry {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	set := c.set
	c.state = StateConnecting
	c.status.Publish(types.ConnectionStatus{Kind: types.StatusConnecting})
	c.mu.Unlock()
	c.establish(gen, set)
}

func (c *StreamClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	log.Info().Str("exchange", string(c.wire.Name())).Msg("manual disconnect")
	c.manual = true
	c.cancelRetryLocked()
	c.gen++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateIdle
	c.status.Publish(types.ConnectionStatus{Kind: types.StatusClosed, Manual: true})
}

func (c *StreamClient) Shutdown() {
	c.Disconnect()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.status.Close()
	c.updates.Close()
}

func (c *StreamClient) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func normalizeSet(set []string) []string {
	seen := make(map[string]struct{}, len(set))
	out := make([]string, 0, len(set))
	for _, s := range set {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
