package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	marketdomain "github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// PairCalculator evaluates same-exchange arbitrage between two quote
// currencies for one base asset: buy the base in the cheap quote, sell
// it in the dear one, convert the proceeds back.
type PairCalculator struct {
	gate          MarketGate
	conversionFee decimal.Decimal // fee applied to fiat/fiat conversions
	logger        *slog.Logger
}

// NewPairCalculator creates the calculator. conversionFee is charged on
// fiat/fiat conversions, where no exchange book prices the hop.
func NewPairCalculator(gate MarketGate, conversionFee decimal.Decimal, logger *slog.Logger) *PairCalculator {
	return &PairCalculator{gate: gate, conversionFee: conversionFee, logger: logger}
}

// crossRate is the market rate turning one quote currency into the
// other, with the fee that conversion costs.
type crossRate struct {
	// rate is units of quote1 one unit of quote2 buys.
	rate decimal.Decimal
	fee  decimal.Decimal
}

// Evaluate prices the opportunity base/quote1 vs base/quote2 on one
// exchange. Identical quotes are rejected before any market lookup.
// Rejections come back as coded errors; a non-nil opportunity always
// has strictly positive profit.
func (c *PairCalculator) Evaluate(ctx context.Context, fiat FiatRater, exchange, base, quote1, quote2 string) (*domain.PairOpportunity, error) {
	base = strings.ToUpper(base)
	quote1 = strings.ToUpper(quote1)
	quote2 = strings.ToUpper(quote2)

	if quote1 == quote2 {
		return nil, apperror.Rejection(apperror.CodeQuotesEqual, base+" on "+exchange)
	}

	leg1 := marketdomain.NewPair(base, quote1)
	leg2 := marketdomain.NewPair(base, quote2)

	book1, err := c.book(ctx, exchange, leg1)
	if err != nil {
		return nil, err
	}
	book2, err := c.book(ctx, exchange, leg2)
	if err != nil {
		return nil, err
	}

	real, err := c.resolveCrossRate(ctx, fiat, exchange, quote1, quote2)
	if err != nil {
		return nil, err
	}

	// Implied rate from the two base legs: one base bought at ask1 sells
	// for bid2, so implied quote1-per-quote2 is ask1/bid2.
	implied := book1.Ask.Div(book2.Bid)
	diff := real.rate.Sub(implied)

	fee1, err := c.gate.TakerFee(ctx, exchange, leg1)
	if err != nil {
		return nil, err
	}
	fee2, err := c.gate.TakerFee(ctx, exchange, leg2)
	if err != nil {
		return nil, err
	}

	opp := &domain.PairOpportunity{
		Exchange:         exchange,
		Base:             base,
		Quote1:           quote1,
		Quote2:           quote2,
		ConversionFee:    real.fee,
		CrossRateImplied: implied,
		Timestamp:        time.Now(),
	}

	one := decimal.NewFromInt(1)
	if diff.IsPositive() {
		// quote2 is overpriced relative to the legs: buy base in quote1,
		// sell in quote2, convert quote2 proceeds back at the real rate.
		opp.BuyQuote, opp.SellQuote = quote1, quote2
		opp.BuySymbol, opp.SellSymbol = leg1.Symbol(), leg2.Symbol()
		opp.BuyPrice, opp.SellPrice = book1.Ask, book2.Bid
		opp.BuyFee, opp.SellFee = fee1, fee2
		opp.CrossRateReal = real.rate
	} else {
		// Mirror image: buy in quote2, sell in quote1, convert back at
		// the reciprocal rate.
		opp.BuyQuote, opp.SellQuote = quote2, quote1
		opp.BuySymbol, opp.SellSymbol = leg2.Symbol(), leg1.Symbol()
		opp.BuyPrice, opp.SellPrice = book2.Ask, book1.Bid
		opp.BuyFee, opp.SellFee = fee2, fee1
		opp.CrossRateReal = one.Div(real.rate)
	}

	// Profit per unit of base, denominated in the buy quote currency.
	proceeds := opp.SellPrice.Mul(one.Sub(opp.SellFee)).Mul(opp.CrossRateReal).Mul(one.Sub(opp.ConversionFee))
	cost := opp.BuyPrice.Mul(one.Add(opp.BuyFee))
	opp.Profit = proceeds.Sub(cost)
	opp.Spread = diff.Abs()
	opp.SpreadRate = opp.Spread.Div(implied)

	if !opp.Profit.IsPositive() {
		return nil, apperror.Rejection(apperror.CodeNoProfit, opp.Describe())
	}
	if err := opp.Validate(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeValidationError, opp.Describe())
	}
	return opp, nil
}

// book fetches a two-sided top of book, rejecting unlisted pairs and
// one-sided books.
func (c *PairCalculator) book(ctx context.Context, exchange string, pair marketdomain.Pair) (marketdomain.BidAsk, error) {
	listed, err := c.gate.HasSymbol(ctx, exchange, pair)
	if err != nil {
		return marketdomain.BidAsk{}, err
	}
	if !listed {
		return marketdomain.BidAsk{}, apperror.Rejection(apperror.CodePairUnavailable, exchange+" "+pair.Symbol())
	}
	book, err := c.gate.BestBidAsk(ctx, exchange, pair)
	if err != nil {
		return marketdomain.BidAsk{}, err
	}
	if !book.TwoSided() || !book.Bid.IsPositive() || !book.Ask.IsPositive() {
		return marketdomain.BidAsk{}, apperror.Rejection(apperror.CodeEmptyOrderBook, exchange+" "+pair.Symbol())
	}
	return book, nil
}

// resolveCrossRate finds how many quote1 one quote2 buys. Two fiat
// currencies convert at the external fiat rate for a fixed fee; any
// other combination needs one of the exchange's own books, charged at
// that book's taker fee.
func (c *PairCalculator) resolveCrossRate(ctx context.Context, fiat FiatRater, exchange, quote1, quote2 string) (crossRate, error) {
	if marketdomain.IsFiat(quote1) && marketdomain.IsFiat(quote2) {
		rate, err := fiat.FiatRate(ctx, quote2, quote1)
		if err != nil {
			return crossRate{}, err
		}
		return crossRate{rate: rate, fee: c.conversionFee}, nil
	}

	// quote2/quote1 book: selling quote2 hits its bid.
	direct := marketdomain.NewPair(quote2, quote1)
	listed, err := c.gate.HasSymbol(ctx, exchange, direct)
	if err != nil {
		return crossRate{}, err
	}
	if listed {
		book, err := c.gate.BestBidAsk(ctx, exchange, direct)
		if err != nil {
			return crossRate{}, err
		}
		if !book.HasBid || !book.Bid.IsPositive() {
			return crossRate{}, apperror.Rejection(apperror.CodeEmptyOrderBook, exchange+" "+direct.Symbol())
		}
		fee, err := c.gate.TakerFee(ctx, exchange, direct)
		if err != nil {
			return crossRate{}, err
		}
		return crossRate{rate: book.Bid, fee: fee}, nil
	}

	// quote1/quote2 book: buying quote1 with quote2 pays its ask.
	inverse := direct.Invert()
	listed, err = c.gate.HasSymbol(ctx, exchange, inverse)
	if err != nil {
		return crossRate{}, err
	}
	if listed {
		book, err := c.gate.BestBidAsk(ctx, exchange, inverse)
		if err != nil {
			return crossRate{}, err
		}
		if !book.HasAsk || !book.Ask.IsPositive() {
			return crossRate{}, apperror.Rejection(apperror.CodeEmptyOrderBook, exchange+" "+inverse.Symbol())
		}
		fee, err := c.gate.TakerFee(ctx, exchange, inverse)
		if err != nil {
			return crossRate{}, err
		}
		return crossRate{rate: decimal.NewFromInt(1).Div(book.Ask), fee: fee}, nil
	}

	return crossRate{}, apperror.Rejection(apperror.CodeUnconvertible, exchange+" "+quote2+"->"+quote1)
}
