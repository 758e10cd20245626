// Package app contains the conversion resolver service.
package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/convert/domain"
	marketdomain "github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// MarketGate is the slice of the market service the resolver needs.
type MarketGate interface {
	// BestPrice returns the highest last trade price for the pair across
	// the given exchanges (all exchanges when none given).
	BestPrice(ctx context.Context, pair marketdomain.Pair, exchanges ...string) (marketdomain.ExchangePrice, error)
}

// FiatRateSource quotes fiat/fiat conversion rates.
type FiatRateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Resolver values coins in the reference currency. The chain is: a
// direct coin/reference market, then coin/USD at the fiat rate, then
// coin/BTC with BTC itself resolved one level deep. BTC never hops
// through itself.
type Resolver struct {
	gate      MarketGate
	fiat      FiatRateSource
	reference string
	logger    *slog.Logger
}

// NewResolver creates a resolver valuing coins in the reference currency.
func NewResolver(gate MarketGate, fiat FiatRateSource, reference string, logger *slog.Logger) *Resolver {
	return &Resolver{
		gate:      gate,
		fiat:      fiat,
		reference: strings.ToUpper(reference),
		logger:    logger,
	}
}

// Reference returns the reference currency code.
func (r *Resolver) Reference() string { return r.reference }

// Pass is one evaluation pass. The USD fiat rate is fetched at most
// once per pass, so every conversion inside a scan sees the same rate.
type Pass struct {
	resolver *Resolver

	mu       sync.Mutex
	usdRate  decimal.Decimal
	usdErr   error
	usdReady bool
}

// NewPass starts a fresh evaluation pass.
func (r *Resolver) NewPass() *Pass {
	return &Pass{resolver: r}
}

// usdToReference returns the USD->reference rate, fetching it on first use.
func (p *Pass) usdToReference(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usdReady {
		p.usdRate, p.usdErr = p.resolver.fiat.Rate(ctx, "USD", p.resolver.reference)
		p.usdReady = true
	}
	return p.usdRate, p.usdErr
}

// FiatRate returns the from->to fiat rate, answering reference/USD pairs
// from the pass cache.
func (p *Pass) FiatRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	ref := p.resolver.reference
	if from == "USD" && to == ref {
		return p.usdToReference(ctx)
	}
	if from == ref && to == "USD" {
		rate, err := p.usdToReference(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		if !rate.IsPositive() {
			return decimal.Zero, apperror.New(apperror.CodeFiatRateFailed, apperror.WithContext(from+"->"+to))
		}
		return decimal.NewFromInt(1).Div(rate), nil
	}
	return p.resolver.fiat.Rate(ctx, from, to)
}

// Resolve values one unit of coin in the reference currency, restricted
// to the given exchanges when any are named. A coin no hop can price
// comes back as CodeUnconvertible.
func (p *Pass) Resolve(ctx context.Context, coin string, exchanges ...string) (domain.Conversion, error) {
	return p.resolve(ctx, coin, true, exchanges)
}

func (p *Pass) resolve(ctx context.Context, coin string, allowBTCHop bool, exchanges []string) (domain.Conversion, error) {
	r := p.resolver
	coin = strings.ToUpper(coin)

	if coin == r.reference {
		return domain.Conversion{
			Coin:      coin,
			Reference: r.reference,
			Price:     decimal.NewFromInt(1),
			Hop:       domain.HopNone,
		}, nil
	}

	// Direct coin/reference market.
	best, err := r.gate.BestPrice(ctx, marketdomain.NewPair(coin, r.reference), exchanges...)
	if err == nil {
		return domain.Conversion{
			Coin:      coin,
			Reference: r.reference,
			Price:     best.Price,
			Exchange:  best.Exchange,
			Hop:       domain.HopDirect,
		}, nil
	}
	if !apperror.IsRejection(err) {
		return domain.Conversion{}, err
	}

	// coin/USD at the pass's fiat rate.
	if conv, err := p.resolveViaUSD(ctx, coin, exchanges); err == nil {
		return conv, nil
	} else if !apperror.IsRejection(err) {
		return domain.Conversion{}, err
	}

	// coin/BTC with BTC itself resolved, one level only.
	if allowBTCHop && coin != "BTC" {
		if conv, err := p.resolveViaBTC(ctx, coin, exchanges); err == nil {
			return conv, nil
		} else if !apperror.IsRejection(err) {
			return domain.Conversion{}, err
		}
	}

	return domain.Conversion{}, apperror.Rejection(apperror.CodeUnconvertible, coin+" in "+r.reference)
}

func (p *Pass) resolveViaUSD(ctx context.Context, coin string, exchanges []string) (domain.Conversion, error) {
	r := p.resolver
	if r.reference == "USD" {
		return domain.Conversion{}, apperror.Rejection(apperror.CodePairUnavailable, coin+"/USD")
	}

	best, err := r.gate.BestPrice(ctx, marketdomain.NewPair(coin, "USD"), exchanges...)
	if err != nil {
		return domain.Conversion{}, err
	}
	rate, err := p.usdToReference(ctx)
	if err != nil {
		r.logger.Warn("fiat rate unavailable, usd hop skipped", "coin", coin, "error", err)
		return domain.Conversion{}, apperror.Rejection(apperror.CodeUnconvertible, coin+"/USD")
	}
	return domain.Conversion{
		Coin:      strings.ToUpper(coin),
		Reference: r.reference,
		Price:     best.Price.Mul(rate),
		Exchange:  best.Exchange,
		Hop:       domain.HopUSD,
	}, nil
}

func (p *Pass) resolveViaBTC(ctx context.Context, coin string, exchanges []string) (domain.Conversion, error) {
	r := p.resolver
	best, err := r.gate.BestPrice(ctx, marketdomain.NewPair(coin, "BTC"), exchanges...)
	if err != nil {
		return domain.Conversion{}, err
	}
	btc, err := p.resolve(ctx, "BTC", false, exchanges)
	if err != nil {
		return domain.Conversion{}, err
	}
	return domain.Conversion{
		Coin:      strings.ToUpper(coin),
		Reference: r.reference,
		Price:     best.Price.Mul(btc.Price),
		Exchange:  best.Exchange,
		Hop:       domain.HopBTC,
	}, nil
}
