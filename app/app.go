// Package app wires the aggregator together: catalog, favorites, the two
// stream clients, the subscription manager, the price store and the status
// reconciler. It owns the single merge goroutine that serializes all store
// mutations.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coinwatch/aggregator"
	"coinwatch/catalog"
	"coinwatch/exchange"
	"coinwatch/favorites"
	"coinwatch/subscription"
	"coinwatch/types"
)

// Snapshot is the read-only view handed to consumers.
type Snapshot struct {
	Favorites    []types.Coin `json:"favorites"`
	Coins        []types.Coin `json:"coins"`
	Loading      bool         `json:"loading"`
	Error        string       `json:"error,omitempty"`
	CatalogError string       `json:"catalogError,omitempty"`
}

type App struct {
	store      *aggregator.Store
	reconciler *aggregator.Reconciler
	symbols    *types.SymbolMap
	catalog    *catalog.Service
	manager    *subscription.Manager
	binance    exchange.Client
	coinbase   exchange.Client
	favStore   favorites.Store

	mu   sync.Mutex
	favs map[string]struct{}

	stop     chan struct{}
	wg       sync.WaitGroup
	subIDs   []uuid.UUID
	schedule string
}

type Options struct {
	Store           *aggregator.Store
	Reconciler      *aggregator.Reconciler
	Symbols         *types.SymbolMap
	Catalog         *catalog.Service
	Manager         *subscription.Manager
	Binance         exchange.Client
	Coinbase        exchange.Client
	FavoritesStore  favorites.Store
	RefreshSchedule string
}

func New(opts Options) *App {
	return &App{
		store:      opts.Store,
		reconciler: opts.Reconciler,
		symbols:    opts.Symbols,
		catalog:    opts.Catalog,
		manager:    opts.Manager,
		binance:    opts.Binance,
		coinbase:   opts.Coinbase,
		favStore:   opts.FavoritesStore,
		favs:       make(map[string]struct{}),
		stop:       make(chan struct{}),
		schedule:   opts.RefreshSchedule,
	}
}

// Start loads favorites, fetches the catalog, starts the merge loop and
// pushes the initial subscriptions. A catalog fetch failure does not abort
// startup; it stays visible on the snapshot with a retry affordance.
func (a *App) Start(ctx context.Context) error {
	favs, err := a.favStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	if len(favs) == 0 {
		favs = catalog.PresetSymbols()
		log.Info().Int("count", len(favs)).Msg("no stored favorites, using presets")
		if err := a.favStore.Save(ctx, favs); err != nil {
			log.Warn().Err(err).Msg("persisting preset favorites failed")
		}
	}
	a.mu.Lock()
	for _, symbol := range favs {
		a.favs[symbol] = struct{}{}
	}
	a.mu.Unlock()

	if err := a.catalog.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("initial catalog fetch failed, continuing without catalog")
	} else {
		a.store.RebuildCatalog(a.catalog.Entries())
	}
	a.store.SetFavorites(favs)

	a.startMergeLoop()

	a.manager.OnFavoritesChanged(a.favoriteList())

	if a.schedule != "" {
		if err := a.catalog.StartAutoRefresh(a.schedule, a.onCatalogRefreshed); err != nil {
			log.Warn().Err(err).Msg("catalog auto refresh not scheduled")
		}
	}
	return nil
}

func (a *App) startMergeLoop() {
	bStatusID, bStatus := a.binance.Status().Subscribe()
	bUpdateID, bUpdates := a.binance.Updates().Subscribe()
	cStatusID, cStatus := a.coinbase.Status().Subscribe()
	cUpdateID, cUpdates := a.coinbase.Updates().Subscribe()
	a.subIDs = []uuid.UUID{bStatusID, bUpdateID, cStatusID, cUpdateID}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for bStatus != nil || bUpdates != nil || cStatus != nil || cUpdates != nil {
			select {
			case <-a.stop:
				return
			case st, ok := <-bStatus:
				if !ok {
					bStatus = nil
					continue
				}
				a.reconciler.Apply(types.SourceBinance, st)
			case st, ok := <-cStatus:
				if !ok {
					cStatus = nil
					continue
				}
				a.reconciler.Apply(types.SourceCoinbase, st)
			case u, ok := <-bUpdates:
				if !ok {
					bUpdates = nil
					continue
				}
				a.handleUpdate(u)
			case u, ok := <-cUpdates:
				if !ok {
					cUpdates = nil
					continue
				}
				a.handleUpdate(u)
			}
		}
	}()
}

func (a *App) handleUpdate(u types.PriceUpdate) {
	if a.store.ApplyUpdate(u) {
		a.reconciler.PriceArrived()
	}
}

func (a *App) onCatalogRefreshed() {
	a.store.RebuildCatalog(a.catalog.Entries())
	// A refresh may add mappings for favorites that had none, unlocking
	// their Coinbase subscriptions.
	a.manager.OnFavoritesChanged(a.favoriteList())
}

// RefreshCatalog is the retry affordance for a failed catalog fetch.
func (a *App) RefreshCatalog(ctx context.Context) error {
	if err := a.catalog.Refresh(ctx); err != nil {
		return err
	}
	a.onCatalogRefreshed()
	return nil
}

func (a *App) favoriteList() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.favs))
	for symbol := range a.favs {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// AddFavorite adds a symbol to the watchlist and recomputes subscriptions.
func (a *App) AddFavorite(ctx context.Context, symbol string) {
	a.mu.Lock()
	if _, ok := a.favs[symbol]; ok {
		a.mu.Unlock()
		return
	}
	a.favs[symbol] = struct{}{}
	a.mu.Unlock()
	log.Info().Str("symbol", symbol).Msg("favorite added")
	a.favoritesChanged(ctx)
}

// RemoveFavorite drops a symbol from the watchlist and recomputes
// subscriptions; removing the last favorite disconnects both clients.
func (a *App) RemoveFavorite(ctx context.Context, symbol string) {
	a.mu.Lock()
	if _, ok := a.favs[symbol]; !ok {
		a.mu.Unlock()
		return
	}
	delete(a.favs, symbol)
	a.mu.Unlock()
	log.Info().Str("symbol", symbol).Msg("favorite removed")
	a.favoritesChanged(ctx)
}

func (a *App) favoritesChanged(ctx context.Context) {
	favs := a.favoriteList()
	if err := a.favStore.Save(ctx, favs); err != nil {
		log.Warn().Err(err).Msg("persisting favorites failed")
	}
	a.store.SetFavorites(favs)
	a.manager.OnFavoritesChanged(favs)
}

// SetSearch installs the catalog view filter.
func (a *App) SetSearch(query string) {
	a.store.SetSearch(query)
}

// SetSort installs the favorites view ordering.
func (a *App) SetSort(by aggregator.SortCriteria, ascending bool) {
	a.store.SetSort(by, ascending)
}

// Snapshot assembles the consumer-facing read-only view.
func (a *App) Snapshot() Snapshot {
	loading, errMsg := a.reconciler.State()
	snap := Snapshot{
		Favorites: a.store.Favorites(),
		Coins:     a.store.Catalog(),
		Loading:   loading,
		Error:     errMsg,
	}
	if err := a.catalog.Err(); err != nil {
		snap.CatalogError = fmt.Sprintf("failed to load coin list: %v", err)
	}
	return snap
}

// Shutdown stops background work and releases the stream clients.
func (a *App) Shutdown() {
	close(a.stop)
	a.manager.Close()
	a.catalog.Stop()
	a.binance.Shutdown()
	a.coinbase.Shutdown()
	a.wg.Wait()
	log.Info().Msg("aggregator stopped")
}
