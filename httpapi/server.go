// Package httpapi exposes the consumer boundary over HTTP: the read-only
// snapshot, favorites mutations and the catalog retry endpoint. Consumers
// only read the snapshot; they never reach the stream clients.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinwatch/aggregator"
	"coinwatch/app"
	"coinwatch/types"
)

type Server struct {
	app  *app.App
	http *http.Server
}

// coinView decorates a Coin with the derived spread percentage.
type coinView struct {
	types.Coin
	SpreadPercent *decimal.Decimal `json:"spreadPercent,omitempty"`
}

type snapshotView struct {
	Favorites    []coinView `json:"favorites"`
	Coins        []coinView `json:"coins"`
	Loading      bool       `json:"loading"`
	Error        string     `json:"error,omitempty"`
	CatalogError string     `json:"catalogError,omitempty"`
}

func NewServer(addr string, a *app.App) *Server {
	s := &Server{app: a}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/favorites", s.handleFavorites)
	mux.HandleFunc("POST /api/v1/favorites/{symbol}", s.handleAddFavorite)
	mux.HandleFunc("DELETE /api/v1/favorites/{symbol}", s.handleRemoveFavorite)
	mux.HandleFunc("GET /api/v1/coins", s.handleCoins)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("http api listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.app.Snapshot()
	writeJSON(w, http.StatusOK, snapshotView{
		Favorites:    decorate(snap.Favorites),
		Coins:        decorate(snap.Coins),
		Loading:      snap.Loading,
		Error:        snap.Error,
		CatalogError: snap.CatalogError,
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	snap := s.app.Snapshot()
	writeJSON(w, http.StatusOK, decorate(snap.Favorites))
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}
	s.app.AddFavorite(r.Context(), symbol)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}
	s.app.RemoveFavorite(r.Context(), symbol)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.app.SetSearch(q.Get("q"))
	if by := q.Get("sort"); by != "" {
		s.app.SetSort(aggregator.SortCriteria(by), q.Get("dir") != "desc")
	}
	snap := s.app.Snapshot()
	writeJSON(w, http.StatusOK, decorate(snap.Coins))
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RefreshCatalog(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decorate(coins []types.Coin) []coinView {
	out := make([]coinView, len(coins))
	for i, c := range coins {
		out[i] = coinView{Coin: c, SpreadPercent: c.SpreadPercent()}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response failed")
	}
}
