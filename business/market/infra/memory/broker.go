package memory

import (
	"context"

	"github.com/shopspring/decimal"

	arbdomain "github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// Broker routes order operations to the in-memory venues. It implements
// the arbitrage order port so the paper-trading wiring mirrors the real
// gateway wiring one for one.
type Broker struct {
	venues map[string]*Exchange
}

// NewBroker creates a broker over the given venues.
func NewBroker(venues ...*Exchange) *Broker {
	byID := make(map[string]*Exchange, len(venues))
	for _, v := range venues {
		byID[v.ID()] = v
	}
	return &Broker{venues: byID}
}

func (b *Broker) venue(exchange string) (*Exchange, error) {
	v, ok := b.venues[exchange]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownExchange, apperror.WithContext(exchange))
	}
	return v, nil
}

// AvailableBalance returns the free balance of a currency on a venue.
func (b *Broker) AvailableBalance(ctx context.Context, exchange, currency string) (decimal.Decimal, error) {
	v, err := b.venue(exchange)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Balance(currency), nil
}

// SubmitLimitBuy places a limit buy order on a venue.
func (b *Broker) SubmitLimitBuy(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error) {
	v, err := b.venue(exchange)
	if err != nil {
		return "", err
	}
	return v.submit(symbol, arbdomain.SideBuy, amount, price)
}

// SubmitLimitSell places a limit sell order on a venue.
func (b *Broker) SubmitLimitSell(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error) {
	v, err := b.venue(exchange)
	if err != nil {
		return "", err
	}
	return v.submit(symbol, arbdomain.SideSell, amount, price)
}

// OrderStatus fetches the current state of an order.
func (b *Broker) OrderStatus(ctx context.Context, exchange, orderID string) (arbdomain.Order, error) {
	v, err := b.venue(exchange)
	if err != nil {
		return arbdomain.Order{}, err
	}
	return v.status(orderID)
}

// Balances lists all balances on a venue.
func (b *Broker) Balances(ctx context.Context, exchange string) (map[string]decimal.Decimal, error) {
	v, err := b.venue(exchange)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(v.balances))
	for currency, amount := range v.balances {
		out[currency] = amount
	}
	return out, nil
}
