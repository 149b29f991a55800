// Package subscription translates the favorites watchlist into the
// per-exchange subscription sets and pushes them to both stream clients.
package subscription

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"coinwatch/exchange"
	"coinwatch/types"
)

// Manager owns the two subscription sets. It never short-circuits on set
// equality; that is the stream clients' job. Rapid watchlist toggles are
// debounced so one reconnect serves a burst of changes.
type Manager struct {
	binance  exchange.Client
	coinbase exchange.Client
	symbols  *types.SymbolMap
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending []string
	closed  bool
}

func NewManager(binance, coinbase exchange.Client, symbols *types.SymbolMap, debounce time.Duration) *Manager {
	return &Manager{
		binance:  binance,
		coinbase: coinbase,
		symbols:  symbols,
		debounce: debounce,
	}
}

// OnFavoritesChanged recomputes both subscription sets for the new
// watchlist. With a debounce configured the push is deferred; another
// change within the window replaces the pending one.
func (m *Manager) OnFavoritesChanged(favorites []string) {
	favs := make([]string, len(favorites))
	copy(favs, favorites)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.debounce <= 0 {
		m.mu.Unlock()
		m.apply(favs)
		return
	}
	m.pending = favs
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.flush)
	m.mu.Unlock()
}

func (m *Manager) flush() {
	m.mu.Lock()
	if m.closed || m.pending == nil {
		m.mu.Unlock()
		return
	}
	favs := m.pending
	m.pending = nil
	m.timer = nil
	m.mu.Unlock()
	m.apply(favs)
}

func (m *Manager) apply(favorites []string) {
	// Binance subscribes canonical symbols directly.
	binanceSet := favorites

	// Coinbase subscribes product ids; symbols without a catalog entry yet
	// have no mapping and are silently skipped.
	coinbaseSet := make([]string, 0, len(favorites))
	for _, symbol := range favorites {
		product, ok := m.symbols.ProductID(symbol)
		if !ok {
			log.Debug().Str("symbol", symbol).Msg("no product mapping yet, skipping coinbase subscription")
			continue
		}
		coinbaseSet = append(coinbaseSet, product)
	}

	log.Info().Int("binance", len(binanceSet)).Int("coinbase", len(coinbaseSet)).Msg("pushing subscription sets")

	// An empty set disconnects instead of connecting to nothing.
	if len(binanceSet) == 0 {
		m.binance.Disconnect()
	} else {
		m.binance.UpdateSubscription(binanceSet)
	}
	if len(coinbaseSet) == 0 {
		m.coinbase.Disconnect()
	} else {
		m.coinbase.UpdateSubscription(coinbaseSet)
	}
}

// Close cancels any pending debounced push.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = nil
}
