package app

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	marketdomain "github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// CrossCalculator evaluates one pair across exchanges: buy on the venue
// with the lowest ask, withdraw, deposit, sell on the venue with the
// highest bid. Transfer fees are paid in base units, which sets a floor
// on viable volume.
type CrossCalculator struct {
	gate   MarketGate
	logger *slog.Logger
}

// NewCrossCalculator creates the calculator.
func NewCrossCalculator(gate MarketGate, logger *slog.Logger) *CrossCalculator {
	return &CrossCalculator{gate: gate, logger: logger}
}

// Evaluate prices the pair across the given exchanges with the requested
// volume. The volume is raised to the minimum viable volume when it is
// below it. Best bid and best ask landing on the same venue is a
// rejection: there is nothing to move.
func (c *CrossCalculator) Evaluate(ctx context.Context, base, quote string, exchanges []string, requestedVolume decimal.Decimal) (*domain.CrossOpportunity, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	pair := marketdomain.NewPair(base, quote)

	books, err := c.gate.AllBidAsk(ctx, pair, exchanges...)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, apperror.Rejection(apperror.CodePairUnavailable, pair.Symbol())
	}

	buyVenue, sellVenue, err := bestVenues(books, pair)
	if err != nil {
		return nil, err
	}
	if buyVenue.Exchange == sellVenue.Exchange {
		return nil, apperror.Rejection(apperror.CodeNoArbitrage, pair.Symbol()+" on "+buyVenue.Exchange)
	}

	buyFee, err := c.gate.TakerFee(ctx, buyVenue.Exchange, pair)
	if err != nil {
		return nil, err
	}
	sellFee, err := c.gate.TakerFee(ctx, sellVenue.Exchange, pair)
	if err != nil {
		return nil, err
	}

	srcFunding, err := c.gate.FundingFee(ctx, buyVenue.Exchange, base)
	if err != nil {
		return nil, err
	}
	dstFunding, err := c.gate.FundingFee(ctx, sellVenue.Exchange, base)
	if err != nil {
		return nil, err
	}
	withdraw := srcFunding.WithdrawOrZero()
	deposit := dstFunding.DepositOrZero()

	one := decimal.NewFromInt(1)

	// The larger transfer fee scaled by both trading fees floors the
	// volume: below it the transfer eats the entire position.
	minVolume := decimal.Max(withdraw, deposit).
		Mul(one.Add(buyFee)).
		Mul(one.Add(sellFee))
	volume := decimal.Max(requestedVolume, minVolume)

	cost := volume.Mul(buyVenue.Price).Mul(one.Add(buyFee))
	sellVolume := volume.Sub(withdraw).Sub(deposit)
	income := sellVolume.Mul(sellVenue.Price).Mul(one.Sub(sellFee))
	profit := income.Sub(cost)

	spread := marketdomain.CalculateSpread(buyVenue.Price, sellVenue.Price)

	opp := &domain.CrossOpportunity{
		Base:         base,
		Quote:        quote,
		BuyExchange:  buyVenue.Exchange,
		SellExchange: sellVenue.Exchange,
		BuyPrice:     buyVenue.Price,
		SellPrice:    sellVenue.Price,
		BuyFee:       buyFee,
		SellFee:      sellFee,
		WithdrawFee:  withdraw,
		DepositFee:   deposit,
		Spread:       spread.Spread,
		SpreadRate:   spread.SpreadRate,
		MinVolume:    minVolume,
		Volume:       volume,
		Profit:       profit,
		Timestamp:    time.Now(),
	}

	if !opp.Profit.IsPositive() {
		return nil, apperror.Rejection(apperror.CodeNoProfit, opp.Describe())
	}
	if err := opp.Validate(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeValidationError, opp.Describe())
	}
	return opp, nil
}

// bestVenues picks the lowest ask and the highest bid across venues,
// ties broken by exchange id ascending.
func bestVenues(books map[string]marketdomain.BidAsk, pair marketdomain.Pair) (buy, sell marketdomain.ExchangePrice, err error) {
	ids := make([]string, 0, len(books))
	for id := range books {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var haveBuy, haveSell bool
	for _, id := range ids {
		book := books[id]
		if book.HasAsk && book.Ask.IsPositive() {
			if !haveBuy || book.Ask.LessThan(buy.Price) {
				buy = marketdomain.ExchangePrice{Exchange: id, Price: book.Ask}
				haveBuy = true
			}
		}
		if book.HasBid && book.Bid.IsPositive() {
			if !haveSell || book.Bid.GreaterThan(sell.Price) {
				sell = marketdomain.ExchangePrice{Exchange: id, Price: book.Bid}
				haveSell = true
			}
		}
	}
	if !haveBuy || !haveSell {
		return marketdomain.ExchangePrice{}, marketdomain.ExchangePrice{},
			apperror.Rejection(apperror.CodeEmptyOrderBook, pair.Symbol())
	}
	return buy, sell, nil
}
