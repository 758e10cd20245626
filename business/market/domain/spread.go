package domain

import "github.com/shopspring/decimal"

// SpreadQuote normalizes two prices into a buy/sell pair with the
// absolute and relative spread between them.
type SpreadQuote struct {
	BuyPrice   decimal.Decimal // the lower price
	SellPrice  decimal.Decimal // the higher price
	Spread     decimal.Decimal // sell - buy
	SpreadRate decimal.Decimal // spread / buy
}

// CalculateSpread orders two prices and computes their spread.
func CalculateSpread(a, b decimal.Decimal) SpreadQuote {
	low, high := a, b
	if a.GreaterThan(b) {
		low, high = b, a
	}

	spread := high.Sub(low)
	rate := decimal.Zero
	if !low.IsZero() {
		rate = spread.Div(low)
	}

	return SpreadQuote{
		BuyPrice:   low,
		SellPrice:  high,
		Spread:     spread,
		SpreadRate: rate,
	}
}
