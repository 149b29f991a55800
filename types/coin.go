package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coin is the merged per-symbol record. Prices default to decimal zero,
// which stands for "no update received yet from that source"; Spread is nil
// until both sources have reported.
type Coin struct {
	Symbol            string           `json:"symbol"`
	Name              string           `json:"name"`
	BinancePrice      decimal.Decimal  `json:"binancePrice"`
	BinanceUpdatedAt  time.Time        `json:"binanceUpdatedAt"`
	CoinbasePrice     decimal.Decimal  `json:"coinbasePrice"`
	CoinbaseUpdatedAt time.Time        `json:"coinbaseUpdatedAt"`
	Spread            *decimal.Decimal `json:"spread"`
	Favorite          bool             `json:"favorite"`
}

// UpdateSpread recomputes the derived spread. Called after every price
// mutation so readers never see a price/spread mismatch.
func (c *Coin) UpdateSpread() {
	if c.BinancePrice.IsPositive() && c.CoinbasePrice.IsPositive() {
		s := c.BinancePrice.Sub(c.CoinbasePrice).Abs()
		c.Spread = &s
	} else {
		c.Spread = nil
	}
}

// SpreadPercent returns the spread relative to the Binance price, or nil
// when the spread itself is not derivable.
func (c *Coin) SpreadPercent() *decimal.Decimal {
	if c.Spread == nil || !c.BinancePrice.IsPositive() {
		return nil
	}
	p := c.Spread.Div(c.BinancePrice).Mul(decimal.NewFromInt(100))
	return &p
}

// CopyPricesFrom carries already-received price state over from another
// record of the same symbol, used when views are rebuilt after a catalog
// refresh so prices are not reset.
func (c *Coin) CopyPricesFrom(prev *Coin) {
	if prev == nil {
		return
	}
	c.BinancePrice = prev.BinancePrice
	c.BinanceUpdatedAt = prev.BinanceUpdatedAt
	c.CoinbasePrice = prev.CoinbasePrice
	c.CoinbaseUpdatedAt = prev.CoinbaseUpdatedAt
	c.UpdateSpread()
}
