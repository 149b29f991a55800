package subscription

import (
	"sync"
	"testing"
	"time"

	"coinwatch/bus"
	"coinwatch/types"
)

// fakeClient records the calls the manager makes.
type fakeClient struct {
	mu          sync.Mutex
	updates     [][]string
	disconnects int
	status      *bus.StatusBus
	data        *bus.UpdateBus
}

func newFakeClient() *fakeClient {
	return &fakeClient{status: bus.NewStatusBus(), data: bus.NewUpdateBus()}
}

func (c *fakeClient) Connect(set []string) { c.UpdateSubscription(set) }

func (c *fakeClient) UpdateSubscription(set []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]string, len(set))
	copy(cp, set)
	c.updates = append(c.updates, cp)
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeClient) Shutdown()               {}
func (c *fakeClient) Status() *bus.StatusBus  { return c.status }
func (c *fakeClient) Updates() *bus.UpdateBus { return c.data }

func (c *fakeClient) lastUpdate() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) == 0 {
		return nil
	}
	return c.updates[len(c.updates)-1]
}

func (c *fakeClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

func testSymbolMap() *types.SymbolMap {
	m := types.NewSymbolMap("USDT", "USD")
	m.Put("BTCUSDT", "BTC")
	m.Put("ETHUSDT", "ETH")
	return m
}

func TestRecomputesBothSets(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 0)

	m.OnFavoritesChanged([]string{"BTCUSDT", "ETHUSDT"})

	if got := binance.lastUpdate(); len(got) != 2 {
		t.Fatalf("binance set = %v", got)
	}
	got := coinbase.lastUpdate()
	if len(got) != 2 || got[0] != "BTC-USD" || got[1] != "ETH-USD" {
		t.Fatalf("coinbase set = %v", got)
	}
}

func TestUnmappedSymbolSkippedForCoinbase(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 0)

	// NEWUSDT has no catalog entry yet: binance still subscribes it,
	// coinbase silently skips it.
	m.OnFavoritesChanged([]string{"BTCUSDT", "NEWUSDT"})

	if got := binance.lastUpdate(); len(got) != 2 {
		t.Fatalf("binance set = %v", got)
	}
	got := coinbase.lastUpdate()
	if len(got) != 1 || got[0] != "BTC-USD" {
		t.Fatalf("coinbase set = %v", got)
	}
}

func TestEmptySetDisconnectsInsteadOfSubscribing(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 0)

	m.OnFavoritesChanged(nil)

	if binance.updateCount() != 0 || coinbase.updateCount() != 0 {
		t.Fatal("empty favorites must not push a subscription")
	}
	if binance.disconnectCount() != 1 || coinbase.disconnectCount() != 1 {
		t.Fatal("empty favorites must disconnect both clients")
	}
}

func TestOnlyUnmappedFavoritesDisconnectsCoinbaseOnly(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 0)

	m.OnFavoritesChanged([]string{"NEWUSDT"})

	if binance.updateCount() != 1 {
		t.Fatal("binance must still be subscribed")
	}
	if coinbase.disconnectCount() != 1 {
		t.Fatal("coinbase with empty mapped set must disconnect")
	}
}

func TestDebounceCollapsesRapidToggles(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 20*time.Millisecond)
	defer m.Close()

	m.OnFavoritesChanged([]string{"BTCUSDT"})
	m.OnFavoritesChanged([]string{"BTCUSDT", "ETHUSDT"})
	m.OnFavoritesChanged([]string{"ETHUSDT"})

	deadline := time.Now().Add(2 * time.Second)
	for binance.updateCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give a potential second (erroneous) flush a chance to fire.
	time.Sleep(50 * time.Millisecond)

	if binance.updateCount() != 1 {
		t.Fatalf("expected one debounced push, got %d", binance.updateCount())
	}
	if got := binance.lastUpdate(); len(got) != 1 || got[0] != "ETHUSDT" {
		t.Fatalf("debounce must apply the latest set, got %v", got)
	}
}

func TestCloseCancelsPendingPush(t *testing.T) {
	binance, coinbase := newFakeClient(), newFakeClient()
	m := NewManager(binance, coinbase, testSymbolMap(), 20*time.Millisecond)

	m.OnFavoritesChanged([]string{"BTCUSDT"})
	m.Close()
	time.Sleep(50 * time.Millisecond)

	if binance.updateCount() != 0 {
		t.Fatal("pending push must be cancelled by Close")
	}
}
