// Package domain contains the core domain types for the market data context.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair represents a trading pair in BASE/QUOTE notation.
type Pair struct {
	Base  string
	Quote string
}

// NewPair creates a trading pair from upper-cased currency codes.
func NewPair(base, quote string) Pair {
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// ParseSymbol parses a "BASE/QUOTE" symbol string.
func ParseSymbol(symbol string) (Pair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("market: invalid symbol %q", symbol)
	}
	return NewPair(parts[0], parts[1]), nil
}

// Symbol returns the "BASE/QUOTE" representation.
func (p Pair) Symbol() string {
	return p.Base + "/" + p.Quote
}

// Invert returns the inverted pair.
func (p Pair) Invert() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

func (p Pair) String() string {
	return p.Symbol()
}

// fiatCodes are the conventional fiat currencies the engine recognizes.
// USDT is deliberately not fiat: it trades on crypto books, not at the
// external fiat rate.
var fiatCodes = map[string]bool{
	"EUR": true,
	"USD": true,
	"GBP": true,
	"CHF": true,
	"JPY": true,
}

// IsFiat reports whether the currency code is a conventional fiat currency.
func IsFiat(code string) bool {
	return fiatCodes[strings.ToUpper(code)]
}

// BidAsk is the top of an order book on one exchange at one instant.
// Either side may be absent when the book is empty on that side.
// Never cache a BidAsk: staleness is a correctness hazard.
type BidAsk struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	HasBid bool
	HasAsk bool
}

// NewBidAsk builds a BidAsk with both sides present.
func NewBidAsk(bid, ask decimal.Decimal) BidAsk {
	return BidAsk{Bid: bid, Ask: ask, HasBid: true, HasAsk: true}
}

// BidOnly builds a BidAsk with an empty ask side.
func BidOnly(bid decimal.Decimal) BidAsk {
	return BidAsk{Bid: bid, HasBid: true}
}

// AskOnly builds a BidAsk with an empty bid side.
func AskOnly(ask decimal.Decimal) BidAsk {
	return BidAsk{Ask: ask, HasAsk: true}
}

// TwoSided reports whether both book sides have at least one order.
func (b BidAsk) TwoSided() bool {
	return b.HasBid && b.HasAsk
}

// Spread returns ask - bid, or zero when a side is missing.
func (b BidAsk) Spread() decimal.Decimal {
	if !b.TwoSided() {
		return decimal.Zero
	}
	return b.Ask.Sub(b.Bid)
}

// FundingFee holds the deposit and withdrawal fee for one coin on one
// exchange. Either may be unknown; unknown fees are treated as zero by
// volume calculations, which understates the minimum viable volume, so
// operators should configure them where the venue publishes them.
type FundingFee struct {
	Deposit     decimal.Decimal
	Withdraw    decimal.Decimal
	HasDeposit  bool
	HasWithdraw bool
}

// DepositOrZero returns the deposit fee, or zero when unknown.
func (f FundingFee) DepositOrZero() decimal.Decimal {
	if !f.HasDeposit {
		return decimal.Zero
	}
	return f.Deposit
}

// WithdrawOrZero returns the withdrawal fee, or zero when unknown.
func (f FundingFee) WithdrawOrZero() decimal.Decimal {
	if !f.HasWithdraw {
		return decimal.Zero
	}
	return f.Withdraw
}

// ExchangePrice is a price observed on a specific exchange.
type ExchangePrice struct {
	Exchange string
	Price    decimal.Decimal
}
