// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	marketdomain "github.com/traderbetty/engine/business/market/domain"
)

// MarketGate is the slice of the market service the calculators need.
// Every call is paced and retried by the implementation; quotes are
// fetched fresh on every evaluation, never cached here.
type MarketGate interface {
	HasSymbol(ctx context.Context, exchange string, pair marketdomain.Pair) (bool, error)
	BestBidAsk(ctx context.Context, exchange string, pair marketdomain.Pair) (marketdomain.BidAsk, error)
	TakerFee(ctx context.Context, exchange string, pair marketdomain.Pair) (decimal.Decimal, error)
	FundingFee(ctx context.Context, exchange string, coin string) (marketdomain.FundingFee, error)
	AllBidAsk(ctx context.Context, pair marketdomain.Pair, exchanges ...string) (map[string]marketdomain.BidAsk, error)
}

// FiatRater quotes fiat/fiat rates for one evaluation pass.
type FiatRater interface {
	FiatRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// OrderClient is the order layer port. Implementations adapt venue order
// APIs; a symbol the venue does not list must come back as
// CodePairUnavailable and an underfunded account as CodeInsufficientFunds.
type OrderClient interface {
	// AvailableBalance returns the free balance of a currency on an exchange.
	AvailableBalance(ctx context.Context, exchange, currency string) (decimal.Decimal, error)

	// SubmitLimitBuy places a limit buy order and returns its id.
	SubmitLimitBuy(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error)

	// SubmitLimitSell places a limit sell order and returns its id.
	SubmitLimitSell(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error)

	// OrderStatus fetches the current state of an order, including the
	// filled amount.
	OrderStatus(ctx context.Context, exchange, orderID string) (domain.Order, error)
}

// Reporter receives every evaluation outcome. Rejections are reported
// with their reason so a scan is auditable, not silently dropped.
type Reporter interface {
	Opportunity(opp domain.Opportunity)
	Rejection(kind domain.Kind, subject string, err error)
	Execution(res *domain.ExecutionResult)
}
