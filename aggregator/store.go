// Package aggregator merges the two feeds into one coherent view: the
// price store keyed by canonical symbol, and the status reconciler folding
// both connection-status streams into a single loading/error projection.
package aggregator

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinwatch/types"
)

// SortCriteria selects the ordering of the favorites view.
type SortCriteria string

const (
	SortByName          SortCriteria = "name"
	SortByBinancePrice  SortCriteria = "binancePrice"
	SortByCoinbasePrice SortCriteria = "coinbasePrice"
	SortBySpread        SortCriteria = "spread"
)

// Store is the merged price state. All mutation goes through the single
// writer that owns ApplyUpdate/RebuildViews calls; readers take snapshots
// and never observe a half-applied mutation.
type Store struct {
	symbols *types.SymbolMap

	mu        sync.RWMutex
	coins     map[string]*types.Coin
	order     []string // catalog order (by display name)
	favorites map[string]struct{}
	search    string
	sortBy    SortCriteria
	sortAsc   bool
}

func NewStore(symbols *types.SymbolMap) *Store {
	return &Store{
		symbols:   symbols,
		coins:     make(map[string]*types.Coin),
		favorites: make(map[string]struct{}),
		sortBy:    SortByName,
		sortAsc:   true,
	}
}

// ApplyUpdate merges one inbound price event. Unparsable prices and
// unmapped symbols are dropped and logged, never fatal. The price, its
// timestamp and the derived spread change in one step under the write
// lock, so the mutation is atomic to readers.
func (s *Store) ApplyUpdate(u types.PriceUpdate) bool {
	price, err := decimal.NewFromString(u.Price)
	if err != nil {
		log.Warn().Str("source", string(u.Source)).Str("symbol", u.Symbol).Str("price", u.Price).Msg("dropping unparsable price")
		return false
	}

	symbol := u.Symbol
	if u.Source == types.SourceCoinbase {
		canonical, ok := s.symbols.Canonical(u.Symbol)
		if !ok {
			log.Debug().Str("product_id", u.Symbol).Msg("dropping update for unmapped product")
			return false
		}
		symbol = canonical
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coin, ok := s.coins[symbol]
	if !ok {
		log.Debug().Str("symbol", symbol).Msg("dropping update for unknown symbol")
		return false
	}
	switch u.Source {
	case types.SourceBinance:
		coin.BinancePrice = price
		coin.BinanceUpdatedAt = u.ReceivedAt
	case types.SourceCoinbase:
		coin.CoinbasePrice = price
		coin.CoinbaseUpdatedAt = u.ReceivedAt
	default:
		return false
	}
	coin.UpdateSpread()
	return true
}

// RebuildCatalog replaces the master record set with a fresh catalog,
// carrying already-received prices over so a refresh does not reset them.
func (s *Store) RebuildCatalog(master []types.Coin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coins := make(map[string]*types.Coin, len(master))
	order := make([]string, 0, len(master))
	for _, entry := range master {
		c := entry
		c.CopyPricesFrom(s.coins[c.Symbol])
		_, c.Favorite = s.favorites[c.Symbol]
		coins[c.Symbol] = &c
		order = append(order, c.Symbol)
	}
	// Favorited symbols missing from the new catalog keep their records so
	// live subscriptions stay visible.
	for symbol := range s.favorites {
		if _, ok := coins[symbol]; !ok {
			if prev, exists := s.coins[symbol]; exists {
				coins[symbol] = prev
			}
		}
	}
	s.coins = coins
	s.order = order
}

// SetFavorites replaces the favorites set, creating records for favorited
// symbols the catalog does not carry yet. Records that only existed because
// of a favorite are pruned once that favorite goes away.
func (s *Store) SetFavorites(favorites []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]struct{}, len(favorites))
	for _, symbol := range favorites {
		next[symbol] = struct{}{}
		if _, ok := s.coins[symbol]; !ok {
			c := &types.Coin{Symbol: symbol, Name: symbol, Favorite: true}
			s.coins[symbol] = c
		}
	}
	s.favorites = next
	inCatalog := make(map[string]struct{}, len(s.order))
	for _, symbol := range s.order {
		inCatalog[symbol] = struct{}{}
	}
	for symbol, coin := range s.coins {
		_, coin.Favorite = next[symbol]
		if coin.Favorite {
			continue
		}
		if _, ok := inCatalog[symbol]; !ok {
			delete(s.coins, symbol)
		}
	}
}

// SetSearch installs the catalog view filter (case-insensitive substring
// over name and symbol).
func (s *Store) SetSearch(query string) {
	s.mu.Lock()
	s.search = query
	s.mu.Unlock()
}

// SetSort installs the favorites view ordering.
func (s *Store) SetSort(by SortCriteria, ascending bool) {
	s.mu.Lock()
	s.sortBy = by
	s.sortAsc = ascending
	s.mu.Unlock()
}

// FavoriteSymbols returns the favorites set, sorted.
func (s *Store) FavoriteSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.favorites))
	for symbol := range s.favorites {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// MissingFirstPrice reports whether any favorited symbol still waits for
// its first price from either source.
func (s *Store) MissingFirstPrice() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for symbol := range s.favorites {
		coin, ok := s.coins[symbol]
		if !ok {
			return true
		}
		if !coin.BinancePrice.IsPositive() || !coin.CoinbasePrice.IsPositive() {
			return true
		}
	}
	return false
}

// HasFavorites reports whether the watchlist is non-empty.
func (s *Store) HasFavorites() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.favorites) > 0
}

// Favorites returns the sorted favorites view as value copies.
func (s *Store) Favorites() []types.Coin {
	s.mu.RLock()
	out := make([]types.Coin, 0, len(s.favorites))
	for symbol := range s.favorites {
		if coin, ok := s.coins[symbol]; ok {
			out = append(out, *coin)
		}
	}
	by, asc := s.sortBy, s.sortAsc
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		less := coinLess(&out[i], &out[j], by)
		if asc {
			return less
		}
		return coinLess(&out[j], &out[i], by)
	})
	return out
}

// Catalog returns the filtered catalog view as value copies, in catalog
// (display name) order.
func (s *Store) Catalog() []types.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := strings.ToLower(s.search)
	out := make([]types.Coin, 0, len(s.order))
	for _, symbol := range s.order {
		coin, ok := s.coins[symbol]
		if !ok {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(coin.Name), query) &&
			!strings.Contains(strings.ToLower(coin.Symbol), query) {
			continue
		}
		out = append(out, *coin)
	}
	return out
}

func coinLess(a, b *types.Coin, by SortCriteria) bool {
	switch by {
	case SortByBinancePrice:
		return a.BinancePrice.LessThan(b.BinancePrice)
	case SortByCoinbasePrice:
		return a.CoinbasePrice.LessThan(b.CoinbasePrice)
	case SortBySpread:
		// A nil spread ranks below any derived spread, so it lands last
		// ascending and first descending.
		switch {
		case a.Spread == nil:
			return false
		case b.Spread == nil:
			return true
		default:
			return a.Spread.LessThan(*b.Spread)
		}
	default:
		return a.Name < b.Name
	}
}
