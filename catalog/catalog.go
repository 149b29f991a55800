// Package catalog fetches the tradable symbol listing from the Binance REST
// API, filters it to actively trading pairs against the configured quote
// asset and keeps the canonical/product symbol table up to date.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"coinwatch/types"
)

const (
	DefaultAPIBaseURL = "https://api.binance.com"

	exchangeInfoPath = "/api/v3/exchangeInfo"
	fetchTimeout     = 15 * time.Second
	statusTrading    = "TRADING"
)

// presetNames maps well-known symbols to display names; anything else falls
// back to the catalog's base asset.
var presetNames = map[string]string{
	"BTCUSDT":   "Bitcoin",
	"ETHUSDT":   "Ethereum",
	"SOLUSDT":   "Solana",
	"BNBUSDT":   "BNB",
	"XRPUSDT":   "XRP",
	"ADAUSDT":   "Cardano",
	"DOGEUSDT":  "Dogecoin",
	"AVAXUSDT":  "Avalanche",
	"DOTUSDT":   "Polkadot",
	"MATICUSDT": "Polygon",
}

// PresetSymbols returns the well-known symbols, used as the initial
// favorites on first boot.
func PresetSymbols() []string {
	out := make([]string, 0, len(presetNames))
	for s := range presetNames {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DisplayName resolves a symbol's human-readable name.
func DisplayName(symbol, baseAsset string) string {
	if name, ok := presetNames[symbol]; ok {
		return name
	}
	return baseAsset
}

type apiSymbol struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

type exchangeInfoResponse struct {
	Symbols []apiSymbol `json:"symbols"`
}

// Service owns the master catalog. Refresh is safe to call at any time; the
// cron schedule re-runs it in the background.
type Service struct {
	baseURL    string
	quoteAsset string
	httpc      *http.Client
	symbols    *types.SymbolMap

	mu      sync.RWMutex
	entries []types.Coin // symbol + name only, sorted by name
	loaded  bool
	lastErr error

	cron *cron.Cron
}

func NewService(baseURL, quoteAsset string, symbols *types.SymbolMap) *Service {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Service{
		baseURL:    baseURL,
		quoteAsset: quoteAsset,
		httpc:      &http.Client{Timeout: fetchTimeout},
		symbols:    symbols,
	}
}

// Refresh fetches the listing and rebuilds the catalog and the symbol
// table. A failure leaves the previous catalog in place and is reported
// both as the return value and via Err, so it can be shown with a retry
// affordance.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.fetch(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		log.Error().Err(err).Msg("catalog refresh failed")
		return err
	}
	s.entries = entries
	s.loaded = true
	s.lastErr = nil
	log.Info().Int("symbols", len(entries)).Str("quote_asset", s.quoteAsset).Msg("catalog refreshed")
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]types.Coin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+exchangeInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange info: unexpected status %d", resp.StatusCode)
	}
	var info exchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	entries := make([]types.Coin, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if sym.Status != statusTrading || sym.QuoteAsset != s.quoteAsset {
			continue
		}
		s.symbols.Put(sym.Symbol, sym.BaseAsset)
		entries = append(entries, types.Coin{
			Symbol: sym.Symbol,
			Name:   DisplayName(sym.Symbol, sym.BaseAsset),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Entries returns the current master catalog (symbol and name only).
func (s *Service) Entries() []types.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Coin, len(s.entries))
	copy(out, s.entries)
	return out
}

// Loaded reports whether at least one refresh has succeeded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Err returns the error of the most recent refresh, nil after a success.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// StartAutoRefresh schedules background refreshes, e.g. "@every 1h". The
// callback runs after each successful refresh so dependents can rebuild.
func (s *Service) StartAutoRefresh(schedule string, onRefresh func()) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})
	if err != nil {
		return fmt.Errorf("schedule catalog refresh: %w", err)
	}
	c.Start()
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	log.Info().Str("schedule", schedule).Msg("catalog auto refresh scheduled")
	return nil
}

// Stop halts the background refresh schedule.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}
