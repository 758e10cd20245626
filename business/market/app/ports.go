// Package app contains application services and port definitions for the market context.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/market/domain"
)

// MarketDataProvider is the per-exchange market data port. Implementations
// adapt one venue (or one venue behind a gateway) and must classify their
// failures: transient connectivity problems carry retryable apperror codes,
// a symbol the venue simply does not list carries CodePairUnavailable.
type MarketDataProvider interface {
	// ID returns the exchange identifier.
	ID() string

	// Symbols returns the set of tradable pair symbols.
	Symbols(ctx context.Context) (map[string]bool, error)

	// BestBidAsk returns the top of the order book. A one-sided or empty
	// book is a valid result, not an error.
	BestBidAsk(ctx context.Context, pair domain.Pair) (domain.BidAsk, error)

	// Ticker returns the last trade price.
	Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)

	// TakerFee returns the taker fee fraction for the symbol.
	TakerFee(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)

	// FundingFee returns deposit/withdrawal fees for a coin.
	FundingFee(ctx context.Context, coin string) (domain.FundingFee, error)

	// RateLimitInterval returns the venue's minimum delay between requests.
	RateLimitInterval() time.Duration
}

// FiatRateSource provides fiat-to-fiat exchange rates from an external
// source. Rates are comparatively stable; callers cache them per
// evaluation pass instead of refetching per coin.
type FiatRateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
