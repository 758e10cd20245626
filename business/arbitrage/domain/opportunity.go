package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	marketdomain "github.com/traderbetty/engine/business/market/domain"
)

// Kind tags the two opportunity variants.
type Kind string

const (
	KindPair  Kind = "pair"
	KindCross Kind = "cross"
)

// Opportunity is the tagged union over the two opportunity kinds.
// Records are created fresh per evaluation and never persisted.
type Opportunity interface {
	Kind() Kind
	// IsProfitable reports whether profit is strictly positive after all
	// fees. Nothing with profit <= 0 is ever acted on.
	IsProfitable() bool
	Describe() string
}

// PairOpportunity is a same-exchange arbitrage between two quote
// currencies for one base asset.
type PairOpportunity struct {
	Exchange string
	Base     string
	Quote1   string
	Quote2   string

	BuySymbol  string // base/buy-quote
	SellSymbol string // base/sell-quote
	BuyQuote   string // the cheaper quote currency, profit is denominated in it
	SellQuote  string

	BuyPrice      decimal.Decimal
	SellPrice     decimal.Decimal
	BuyFee        decimal.Decimal
	SellFee       decimal.Decimal
	ConversionFee decimal.Decimal

	// CrossRateReal is the market rate converting the sell quote into the
	// buy quote; CrossRateImplied is the same rate implied by the two base
	// legs' prices.
	CrossRateReal    decimal.Decimal
	CrossRateImplied decimal.Decimal

	Spread     decimal.Decimal
	SpreadRate decimal.Decimal
	Profit     decimal.Decimal // per unit of base, in the buy quote currency

	Timestamp time.Time
}

// Kind returns KindPair.
func (o *PairOpportunity) Kind() Kind { return KindPair }

// IsProfitable reports whether the profit is strictly positive.
func (o *PairOpportunity) IsProfitable() bool { return o.Profit.IsPositive() }

// Describe returns a one-line summary for reporting.
func (o *PairOpportunity) Describe() string {
	return fmt.Sprintf("%s on %s: buy %s @ %s, sell %s @ %s, profit %s %s/unit",
		o.Base, o.Exchange,
		o.BuySymbol, o.BuyPrice.StringFixed(4),
		o.SellSymbol, o.SellPrice.StringFixed(4),
		o.Profit.StringFixed(6), o.BuyQuote)
}

// Validate checks structural invariants at construction time.
func (o *PairOpportunity) Validate() error {
	if o.Exchange == "" || o.Base == "" {
		return fmt.Errorf("pair opportunity: exchange and base are required")
	}
	if o.Quote1 == o.Quote2 {
		return fmt.Errorf("pair opportunity: quote currencies must differ")
	}
	if o.BuyQuote == o.SellQuote {
		return fmt.Errorf("pair opportunity: buy and sell quote must differ")
	}
	if !o.BuyPrice.IsPositive() || !o.SellPrice.IsPositive() {
		return fmt.Errorf("pair opportunity: prices must be positive")
	}
	if !o.CrossRateReal.IsPositive() {
		return fmt.Errorf("pair opportunity: real cross-rate must be positive")
	}
	return nil
}

// CrossOpportunity is an arbitrage of one pair between two exchanges,
// with the asset physically moving between venues.
type CrossOpportunity struct {
	Base  string
	Quote string

	BuyExchange  string
	SellExchange string

	BuyPrice  decimal.Decimal // best ask on the buy venue
	SellPrice decimal.Decimal // best bid on the sell venue
	BuyFee    decimal.Decimal
	SellFee   decimal.Decimal

	WithdrawFee decimal.Decimal // base units lost leaving the buy venue
	DepositFee  decimal.Decimal // base units lost entering the sell venue

	Spread     decimal.Decimal
	SpreadRate decimal.Decimal

	// MinVolume is the smallest trade that still clears both legs after
	// transfer fees; Volume is what the evaluation actually used.
	MinVolume decimal.Decimal
	Volume    decimal.Decimal
	Profit    decimal.Decimal // in the quote currency

	Timestamp time.Time
}

// Kind returns KindCross.
func (o *CrossOpportunity) Kind() Kind { return KindCross }

// IsProfitable reports whether the profit is strictly positive.
func (o *CrossOpportunity) IsProfitable() bool { return o.Profit.IsPositive() }

// Describe returns a one-line summary for reporting.
func (o *CrossOpportunity) Describe() string {
	return fmt.Sprintf("%s/%s: buy %s @ %s, sell %s @ %s, volume %s, profit %s %s",
		o.Base, o.Quote,
		o.BuyExchange, o.BuyPrice.StringFixed(4),
		o.SellExchange, o.SellPrice.StringFixed(4),
		o.Volume.StringFixed(6),
		o.Profit.StringFixed(4), o.Quote)
}

// Validate checks structural invariants at construction time.
func (o *CrossOpportunity) Validate() error {
	if o.Base == "" || o.Quote == "" {
		return fmt.Errorf("cross opportunity: base and quote are required")
	}
	if o.BuyExchange == o.SellExchange {
		return fmt.Errorf("cross opportunity: buy and sell exchange must differ")
	}
	if !o.BuyPrice.IsPositive() || !o.SellPrice.IsPositive() {
		return fmt.Errorf("cross opportunity: prices must be positive")
	}
	if o.Volume.LessThan(o.MinVolume) {
		return fmt.Errorf("cross opportunity: volume below minimum viable volume")
	}
	return nil
}

// Symbol returns the traded pair symbol.
func (o *CrossOpportunity) Symbol() string {
	return marketdomain.NewPair(o.Base, o.Quote).Symbol()
}
