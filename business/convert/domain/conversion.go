// Package domain contains the core domain types for the conversion context.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Hop names the path a conversion took to reach the reference currency.
type Hop string

const (
	// HopNone means the coin already is the reference currency.
	HopNone Hop = "none"
	// HopDirect means a coin/reference market was quoted somewhere.
	HopDirect Hop = "direct"
	// HopUSD means coin/USD was quoted and converted at the fiat rate.
	HopUSD Hop = "usd"
	// HopBTC means coin/BTC was quoted and BTC itself was resolved.
	HopBTC Hop = "btc"
)

// Conversion is the resolved value of one unit of a coin in the
// reference currency, with the venue and path that produced it.
type Conversion struct {
	Coin      string
	Reference string
	Price     decimal.Decimal
	Exchange  string // venue whose quote won; empty for HopNone
	Hop       Hop
}

func (c Conversion) String() string {
	return fmt.Sprintf("%s=%s %s (%s via %s)", c.Coin, c.Price.StringFixed(4), c.Reference, c.Exchange, c.Hop)
}
