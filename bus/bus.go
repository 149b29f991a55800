// Package bus provides the fan-out channels a stream client publishes on.
// Delivery is fire-and-forget: a slow or absent subscriber drops events, it
// never blocks the publisher.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coinwatch/types"
)

const subscriberBuffer = 100

// UpdateBus broadcasts price updates. New subscribers see only events
// published after they subscribe.
type UpdateBus struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan types.PriceUpdate
	closed bool
}

func NewUpdateBus() *UpdateBus {
	return &UpdateBus{subs: make(map[uuid.UUID]chan types.PriceUpdate)}
}

func (b *UpdateBus) Subscribe() (uuid.UUID, <-chan types.PriceUpdate) {
	ch := make(chan types.PriceUpdate, subscriberBuffer)
	id := uuid.New()
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
	}
	b.mu.Unlock()
	return id, ch
}

func (b *UpdateBus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *UpdateBus) Publish(u types.PriceUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- u:
		default:
			log.Warn().Str("subscriber", id.String()).Str("symbol", u.Symbol).Msg("update subscriber full, dropping event")
		}
	}
}

func (b *UpdateBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// StatusBus broadcasts connection status events and replays the latest one
// to each new subscriber, so a late consumer immediately learns the current
// connection state.
type StatusBus struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan types.ConnectionStatus
	last   *types.ConnectionStatus
	closed bool
}

func NewStatusBus() *StatusBus {
	return &StatusBus{subs: make(map[uuid.UUID]chan types.ConnectionStatus)}
}

func (b *StatusBus) Subscribe() (uuid.UUID, <-chan types.ConnectionStatus) {
	ch := make(chan types.ConnectionStatus, subscriberBuffer)
	id := uuid.New()
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
		if b.last != nil {
			ch <- *b.last
		}
	}
	b.mu.Unlock()
	return id, ch
}

func (b *StatusBus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Last returns the most recently published status, if any.
func (b *StatusBus) Last() (types.ConnectionStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return types.ConnectionStatus{}, false
	}
	return *b.last, true
}

func (b *StatusBus) Publish(st types.ConnectionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = &st
	for id, ch := range b.subs {
		select {
		case ch <- st:
		default:
			log.Warn().Str("subscriber", id.String()).Stringer("kind", st.Kind).Msg("status subscriber full, dropping event")
		}
	}
}

func (b *StatusBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
