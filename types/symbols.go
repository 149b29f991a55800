package types

import (
	"strings"
	"sync"
)

// SymbolMap is the bidirectional table between canonical symbols (Binance
// naming, e.g. "BTCUSDT") and Coinbase product ids (e.g. "BTC-USD"). It is
// populated from catalog rows; DeriveProductID encodes the naming
// convention used when inserting. Symbols absent from the table have no
// catalog entry yet and are skipped by the subscription manager.
type SymbolMap struct {
	mu           sync.RWMutex
	quoteAsset   string // canonical quote suffix, e.g. "USDT"
	productQuote string // Coinbase quote currency, e.g. "USD"
	toProduct    map[string]string
	toCanonical  map[string]string
}

func NewSymbolMap(quoteAsset, productQuote string) *SymbolMap {
	return &SymbolMap{
		quoteAsset:   quoteAsset,
		productQuote: productQuote,
		toProduct:    make(map[string]string),
		toCanonical:  make(map[string]string),
	}
}

// DeriveProductID applies the naming convention: strip the canonical quote
// suffix, append the Coinbase quote currency.
func (m *SymbolMap) DeriveProductID(canonical string) string {
	base := strings.TrimSuffix(canonical, m.quoteAsset)
	return base + "-" + m.productQuote
}

// Put registers one catalog row. baseAsset overrides the derived base when
// the catalog provides it.
func (m *SymbolMap) Put(canonical, baseAsset string) {
	product := m.DeriveProductID(canonical)
	if baseAsset != "" {
		product = baseAsset + "-" + m.productQuote
	}
	m.mu.Lock()
	m.toProduct[canonical] = product
	m.toCanonical[product] = canonical
	m.mu.Unlock()
}

// ProductID resolves a canonical symbol to its Coinbase product id. ok is
// false for symbols with no catalog entry.
func (m *SymbolMap) ProductID(canonical string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.toProduct[canonical]
	return p, ok
}

// Canonical resolves a Coinbase product id back to the canonical symbol.
func (m *SymbolMap) Canonical(productID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.toCanonical[productID]
	return c, ok
}

func (m *SymbolMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.toProduct)
}
