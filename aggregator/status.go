package aggregator

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"coinwatch/types"
)

// sourceLabel is the human-readable exchange name used in error strings.
func sourceLabel(src types.Source) string {
	switch src {
	case types.SourceBinance:
		return "Binance"
	case types.SourceCoinbase:
		return "Coinbase"
	}
	return string(src)
}

// Reconciler folds the two independent connection-status streams plus the
// store's first-price tracking into one loading/error projection. The most
// recently received error wins; a manual disconnect clears only the error
// attributed to that exchange.
type Reconciler struct {
	store *Store

	mu        sync.RWMutex
	loading   bool
	errMsg    string
	errSource types.Source
}

func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{store: store, loading: true}
}

// Apply folds one status event from one exchange into the projection.
func (r *Reconciler) Apply(src types.Source, st types.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Debug().Str("exchange", string(src)).Stringer("kind", st.Kind).Msg("status received")

	switch st.Kind {
	case types.StatusConnected:
		if r.errSource == src {
			r.errMsg = ""
			r.errSource = ""
		}
		r.loading = r.store.MissingFirstPrice()
	case types.StatusConnecting:
		r.loading = true
	case types.StatusError:
		r.loading = false
		r.errMsg = fmt.Sprintf("%s error: %s", sourceLabel(src), st.Message)
		r.errSource = src
	case types.StatusClosed:
		r.loading = false
		if st.Manual {
			if r.errSource == src {
				r.errMsg = ""
				r.errSource = ""
			}
		} else if r.store.HasFavorites() {
			r.errMsg = fmt.Sprintf("%s closed, reconnecting", sourceLabel(src))
			r.errSource = src
		}
	}
}

// PriceArrived re-evaluates loading after a merged price update; once every
// favorited symbol has both prices, loading clears.
func (r *Reconciler) PriceArrived() {
	r.mu.Lock()
	r.loading = r.store.MissingFirstPrice() && r.errMsg == ""
	r.mu.Unlock()
}

// State returns the current projection.
func (r *Reconciler) State() (loading bool, errMsg string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading, r.errMsg
}
