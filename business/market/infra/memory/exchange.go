// Package memory provides a deterministic in-memory exchange used for
// paper trading and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	arbdomain "github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// Exchange is one simulated venue. All quotes, fees, balances and order
// behavior are scripted by the caller.
type Exchange struct {
	id       string
	interval time.Duration

	mu         sync.Mutex
	symbols    map[string]bool
	books      map[string]domain.BidAsk
	tickers    map[string]decimal.Decimal
	takerFees  map[string]decimal.Decimal
	defaultFee decimal.Decimal
	funding    map[string]domain.FundingFee
	balances   map[string]decimal.Decimal

	orders    map[string]*arbdomain.Order
	polls     map[string]int
	nextID    int
	lookups   int
	failEvery map[string]int // op name -> remaining transient failures

	// Order behavior knobs.
	fillAfterPolls int             // polls before an open order closes
	cancelOrders   bool            // orders get canceled instead of filled
	neverFill      bool            // orders stay open forever
	fillFraction   decimal.Decimal // filled amount at close, as fraction of requested
}

// NewExchange creates an empty venue.
func NewExchange(id string, interval time.Duration) *Exchange {
	return &Exchange{
		id:             id,
		interval:       interval,
		symbols:        make(map[string]bool),
		books:          make(map[string]domain.BidAsk),
		tickers:        make(map[string]decimal.Decimal),
		takerFees:      make(map[string]decimal.Decimal),
		funding:        make(map[string]domain.FundingFee),
		balances:       make(map[string]decimal.Decimal),
		orders:         make(map[string]*arbdomain.Order),
		polls:          make(map[string]int),
		failEvery:      make(map[string]int),
		fillAfterPolls: 1,
		fillFraction:   decimal.NewFromInt(1),
	}
}

// ID returns the exchange identifier.
func (e *Exchange) ID() string { return e.id }

// RateLimitInterval returns the configured inter-request interval.
func (e *Exchange) RateLimitInterval() time.Duration { return e.interval }

// ListSymbol marks a symbol tradable without giving it a book.
func (e *Exchange) ListSymbol(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[symbol] = true
}

// SetBook sets the top of book for a symbol and marks it tradable.
func (e *Exchange) SetBook(symbol string, book domain.BidAsk) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[symbol] = true
	e.books[symbol] = book
}

// SetTicker sets the last trade price for a symbol and marks it tradable.
func (e *Exchange) SetTicker(symbol string, price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[symbol] = true
	e.tickers[symbol] = price
}

// SetTakerFee sets the taker fee for a symbol.
func (e *Exchange) SetTakerFee(symbol string, fee decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.takerFees[symbol] = fee
}

// SetDefaultFee sets the fee returned for symbols without an explicit fee.
func (e *Exchange) SetDefaultFee(fee decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultFee = fee
}

// SetFunding sets the funding fees for a coin.
func (e *Exchange) SetFunding(coin string, fee domain.FundingFee) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funding[coin] = fee
}

// SetBalance sets the free balance of a currency.
func (e *Exchange) SetBalance(currency string, amount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[currency] = amount
}

// FillAfterPolls configures how many status polls an order stays open.
func (e *Exchange) FillAfterPolls(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillAfterPolls = n
}

// CancelOrders makes every order end canceled instead of filled.
func (e *Exchange) CancelOrders() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelOrders = true
}

// NeverFill makes every order stay open forever.
func (e *Exchange) NeverFill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.neverFill = true
}

// FillFraction sets the filled fraction reported when an order closes.
func (e *Exchange) FillFraction(f decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillFraction = f
}

// FailNext injects n transient failures for the named operation
// ("book", "ticker", "symbols", "fee", "funding").
func (e *Exchange) FailNext(op string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failEvery[op] = n
}

// Lookups returns how many market data queries the venue has served.
func (e *Exchange) Lookups() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookups
}

func (e *Exchange) transientFor(op string) error {
	if e.failEvery[op] > 0 {
		e.failEvery[op]--
		return apperror.Transient(apperror.CodeExchangeUnavailable, e.id, fmt.Errorf("injected %s failure", op))
	}
	return nil
}

// Symbols implements app.MarketDataProvider.
func (e *Exchange) Symbols(ctx context.Context) (map[string]bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups++
	if err := e.transientFor("symbols"); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(e.symbols))
	for s := range e.symbols {
		out[s] = true
	}
	return out, nil
}

// BestBidAsk implements app.MarketDataProvider.
func (e *Exchange) BestBidAsk(ctx context.Context, pair domain.Pair) (domain.BidAsk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups++
	if err := e.transientFor("book"); err != nil {
		return domain.BidAsk{}, err
	}
	if !e.symbols[pair.Symbol()] {
		return domain.BidAsk{}, apperror.Rejection(apperror.CodePairUnavailable, e.id+" "+pair.Symbol())
	}
	return e.books[pair.Symbol()], nil
}

// Ticker implements app.MarketDataProvider.
func (e *Exchange) Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups++
	if err := e.transientFor("ticker"); err != nil {
		return decimal.Zero, err
	}
	price, ok := e.tickers[pair.Symbol()]
	if !ok {
		return decimal.Zero, apperror.Rejection(apperror.CodePairUnavailable, e.id+" "+pair.Symbol())
	}
	return price, nil
}

// TakerFee implements app.MarketDataProvider.
func (e *Exchange) TakerFee(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups++
	if err := e.transientFor("fee"); err != nil {
		return decimal.Zero, err
	}
	if fee, ok := e.takerFees[pair.Symbol()]; ok {
		return fee, nil
	}
	return e.defaultFee, nil
}

// FundingFee implements app.MarketDataProvider.
func (e *Exchange) FundingFee(ctx context.Context, coin string) (domain.FundingFee, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups++
	if err := e.transientFor("funding"); err != nil {
		return domain.FundingFee{}, err
	}
	return e.funding[coin], nil
}

// submit places an order on the venue. Buys require a sufficient quote
// balance; the quote is debited immediately.
func (e *Exchange) submit(symbol string, side arbdomain.Side, amount, price decimal.Decimal) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.symbols[symbol] {
		return "", apperror.Rejection(apperror.CodePairUnavailable, e.id+" "+symbol)
	}
	pair, err := domain.ParseSymbol(symbol)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeInvalidInput, symbol)
	}

	if side == arbdomain.SideBuy {
		cost := amount.Mul(price)
		if e.balances[pair.Quote].LessThan(cost) {
			return "", apperror.Rejection(apperror.CodeInsufficientFunds, e.id+" "+pair.Quote)
		}
		e.balances[pair.Quote] = e.balances[pair.Quote].Sub(cost)
	}

	e.nextID++
	id := fmt.Sprintf("%s-%d", e.id, e.nextID)
	e.orders[id] = &arbdomain.Order{
		ID:         id,
		Exchange:   e.id,
		Symbol:     symbol,
		Side:       side,
		Amount:     amount,
		Filled:     decimal.Zero,
		LimitPrice: price,
		Status:     arbdomain.OrderOpen,
	}
	return id, nil
}

// status returns the order, advancing its scripted lifecycle by one poll.
func (e *Exchange) status(orderID string) (arbdomain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return arbdomain.Order{}, apperror.Rejection(apperror.CodeOrderNotFound, orderID)
	}

	if order.Status == arbdomain.OrderOpen && !e.neverFill {
		e.polls[orderID]++
		if e.polls[orderID] >= e.fillAfterPolls {
			if e.cancelOrders {
				order.Status = arbdomain.OrderCanceled
			} else {
				order.Status = arbdomain.OrderClosed
				order.Filled = order.Amount.Mul(e.fillFraction)
				if order.Side == arbdomain.SideBuy {
					pair, _ := domain.ParseSymbol(order.Symbol)
					e.balances[pair.Base] = e.balances[pair.Base].Add(order.Filled)
				}
			}
		}
	}

	return *order, nil
}

// Balance returns the free balance of a currency.
func (e *Exchange) Balance(currency string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[currency]
}
