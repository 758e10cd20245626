// Package app contains the portfolio valuation service.
package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	convertapp "github.com/traderbetty/engine/business/convert/app"
	convertdomain "github.com/traderbetty/engine/business/convert/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// BalanceSource lists all non-zero balances on one exchange.
type BalanceSource interface {
	Balances(ctx context.Context, exchange string) (map[string]decimal.Decimal, error)
}

// Holding is one coin position valued in the reference currency.
type Holding struct {
	Exchange string
	Coin     string
	Amount   decimal.Decimal
	Value    decimal.Decimal // in the reference currency; zero when unconvertible
	Hop      convertdomain.Hop
}

// Valuation is a snapshot of all holdings across exchanges.
type Valuation struct {
	Reference string
	Total     decimal.Decimal
	Holdings  []Holding
	Timestamp time.Time
}

// Valuator prices every holding in the reference currency. A coin is
// preferably valued on the venue holding it; when that venue cannot
// price it, the best quote anywhere is used instead. Coins nothing can
// price are carried at zero so the total never errors out over dust.
type Valuator struct {
	balances BalanceSource
	resolver *convertapp.Resolver
	logger   *slog.Logger
}

// NewValuator creates a valuator.
func NewValuator(balances BalanceSource, resolver *convertapp.Resolver, logger *slog.Logger) *Valuator {
	return &Valuator{balances: balances, resolver: resolver, logger: logger}
}

// ValueAll values every holding on the given exchanges. The whole
// snapshot shares one resolver pass, so one fiat rate.
func (v *Valuator) ValueAll(ctx context.Context, exchanges []string) (Valuation, error) {
	pass := v.resolver.NewPass()
	out := Valuation{
		Reference: v.resolver.Reference(),
		Total:     decimal.Zero,
		Timestamp: time.Now(),
	}

	for _, exchange := range exchanges {
		balances, err := v.balances.Balances(ctx, exchange)
		if err != nil {
			return Valuation{}, err
		}

		for coin, amount := range balances {
			if !amount.IsPositive() {
				continue
			}
			holding, err := v.value(ctx, pass, exchange, coin, amount)
			if err != nil {
				return Valuation{}, err
			}
			out.Holdings = append(out.Holdings, holding)
			out.Total = out.Total.Add(holding.Value)
		}
	}

	sort.Slice(out.Holdings, func(i, j int) bool {
		if out.Holdings[i].Exchange != out.Holdings[j].Exchange {
			return out.Holdings[i].Exchange < out.Holdings[j].Exchange
		}
		return out.Holdings[i].Coin < out.Holdings[j].Coin
	})
	return out, nil
}

func (v *Valuator) value(ctx context.Context, pass *convertapp.Pass, exchange, coin string, amount decimal.Decimal) (Holding, error) {
	holding := Holding{Exchange: exchange, Coin: coin, Amount: amount, Value: decimal.Zero}

	conv, err := pass.Resolve(ctx, coin, exchange)
	if err != nil && apperror.IsRejection(err) {
		// The holding venue cannot price it; any venue will do.
		conv, err = pass.Resolve(ctx, coin)
	}
	switch {
	case err == nil:
		holding.Value = amount.Mul(conv.Price)
		holding.Hop = conv.Hop
	case apperror.IsRejection(err):
		v.logger.Warn("holding carried at zero", "exchange", exchange, "coin", coin, "error", err)
	default:
		return Holding{}, err
	}
	return holding, nil
}
