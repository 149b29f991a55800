package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUpdateSpreadNilUntilBothPricesSet(t *testing.T) {
	c := Coin{Symbol: "BTCUSDT"}
	c.UpdateSpread()
	if c.Spread != nil {
		t.Fatal("spread must be nil with no prices")
	}

	c.BinancePrice = dec("50000.00")
	c.UpdateSpread()
	if c.Spread != nil {
		t.Fatal("spread must be nil with one price")
	}

	c.CoinbasePrice = dec("50010.50")
	c.UpdateSpread()
	if c.Spread == nil || !c.Spread.Equal(dec("10.50")) {
		t.Fatalf("expected spread 10.50, got %v", c.Spread)
	}
}

func TestUpdateSpreadIsAbsolute(t *testing.T) {
	c := Coin{BinancePrice: dec("100"), CoinbasePrice: dec("110")}
	c.UpdateSpread()
	if !c.Spread.Equal(dec("10")) {
		t.Fatalf("expected 10, got %v", c.Spread)
	}

	c.BinancePrice, c.CoinbasePrice = c.CoinbasePrice, c.BinancePrice
	c.UpdateSpread()
	if !c.Spread.Equal(dec("10")) {
		t.Fatalf("expected 10 after swapping sides, got %v", c.Spread)
	}
}

func TestSpreadPercent(t *testing.T) {
	c := Coin{BinancePrice: dec("200"), CoinbasePrice: dec("210")}
	c.UpdateSpread()
	p := c.SpreadPercent()
	if p == nil || !p.Equal(dec("5")) {
		t.Fatalf("expected 5%%, got %v", p)
	}

	c2 := Coin{}
	if c2.SpreadPercent() != nil {
		t.Fatal("expected nil percent without prices")
	}
}

func TestCopyPricesFromPreservesStateAndSpread(t *testing.T) {
	now := time.Now()
	prev := &Coin{
		Symbol:            "ETHUSDT",
		BinancePrice:      dec("3000"),
		BinanceUpdatedAt:  now,
		CoinbasePrice:     dec("3001"),
		CoinbaseUpdatedAt: now,
	}
	fresh := Coin{Symbol: "ETHUSDT", Name: "Ethereum"}
	fresh.CopyPricesFrom(prev)
	if !fresh.BinancePrice.Equal(dec("3000")) || !fresh.CoinbasePrice.Equal(dec("3001")) {
		t.Fatalf("prices not carried over: %+v", fresh)
	}
	if fresh.Spread == nil || !fresh.Spread.Equal(dec("1")) {
		t.Fatalf("spread not recomputed: %v", fresh.Spread)
	}

	fresh2 := Coin{Symbol: "ETHUSDT"}
	fresh2.CopyPricesFrom(nil)
	if !fresh2.BinancePrice.IsZero() {
		t.Fatal("nil previous record must leave prices unset")
	}
}
