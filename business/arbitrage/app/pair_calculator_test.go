package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbapp "github.com/traderbetty/engine/business/arbitrage/app"
	marketapp "github.com/traderbetty/engine/business/market/app"
	marketdomain "github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/business/market/infra/memory"
	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/ratelimit"
)

type fixedFiat struct {
	rate decimal.Decimal
}

func (f fixedFiat) FiatRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return f.rate, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGate(t *testing.T, venues ...*memory.Exchange) *marketapp.Service {
	t.Helper()
	providers := make([]marketapp.MarketDataProvider, len(venues))
	for i, v := range venues {
		providers[i] = v
	}
	return marketapp.NewService(providers, ratelimit.NewRegistry(), marketapp.ServiceConfig{
		RetryMax:     1,
		RetryBackoff: time.Millisecond,
	}, discardLogger(), nil)
}

func newPairCalc(t *testing.T, venues ...*memory.Exchange) *arbapp.PairCalculator {
	t.Helper()
	return arbapp.NewPairCalculator(newGate(t, venues...), dec("0.0025"), discardLogger())
}

func TestPairEqualQuotesRejectedWithoutLookups(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("89900"), dec("90000")))
	calc := newPairCalc(t, venue)

	_, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "EUR")
	if apperror.GetCode(err) != apperror.CodeQuotesEqual {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
	if venue.Lookups() != 0 {
		t.Fatalf("equal quotes triggered %d market lookups", venue.Lookups())
	}
}

func TestPairProfitableFiatQuotes(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetDefaultFee(dec("0.001"))
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("89900"), dec("90000")))
	venue.SetBook("BTC/USD", marketdomain.NewBidAsk(dec("101500"), dec("101600")))
	calc := newPairCalc(t, venue)

	opp, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "USD")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if opp.BuyQuote != "EUR" || opp.SellQuote != "USD" {
		t.Fatalf("direction: buy %s sell %s", opp.BuyQuote, opp.SellQuote)
	}
	if opp.BuySymbol != "BTC/EUR" || opp.SellSymbol != "BTC/USD" {
		t.Fatalf("legs: %s / %s", opp.BuySymbol, opp.SellSymbol)
	}
	if !opp.CrossRateReal.Equal(dec("0.9")) {
		t.Fatalf("real rate = %s", opp.CrossRateReal)
	}

	// proceeds: 101500 * 0.999 * 0.9 * 0.9975 = 91030.503375
	// cost:     90000 * 1.001              = 90090
	if !opp.Profit.Equal(dec("940.503375")) {
		t.Fatalf("profit = %s, want 940.503375", opp.Profit)
	}
	if !opp.IsProfitable() {
		t.Fatal("IsProfitable() = false")
	}
}

func TestPairReverseDirection(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetDefaultFee(dec("0.001"))
	// EUR leg expensive relative to the fiat rate: the buy flips to USD.
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("92000"), dec("92100")))
	venue.SetBook("BTC/USD", marketdomain.NewBidAsk(dec("100000"), dec("100100")))
	calc := newPairCalc(t, venue)

	opp, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "USD")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if opp.BuyQuote != "USD" || opp.SellQuote != "EUR" {
		t.Fatalf("direction: buy %s sell %s", opp.BuyQuote, opp.SellQuote)
	}
	if !opp.Profit.IsPositive() {
		t.Fatalf("profit = %s", opp.Profit)
	}
}

func TestPairNoProfitRejected(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetDefaultFee(dec("0.001"))
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("89900"), dec("90000")))
	venue.SetBook("BTC/USD", marketdomain.NewBidAsk(dec("100400"), dec("100500")))
	calc := newPairCalc(t, venue)

	_, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "USD")
	if apperror.GetCode(err) != apperror.CodeNoProfit {
		t.Fatalf("code = %s, err = %v", apperror.GetCode(err), err)
	}
	if !apperror.IsRejection(err) {
		t.Fatal("no-profit must classify as a rejection")
	}
}

func TestPairCryptoQuoteUsesExchangeBook(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetDefaultFee(dec("0.001"))
	venue.SetBook("ETH/EUR", marketdomain.NewBidAsk(dec("2700"), dec("2710")))
	venue.SetBook("ETH/USDT", marketdomain.NewBidAsk(dec("3000"), dec("3010")))
	venue.SetBook("USDT/EUR", marketdomain.NewBidAsk(dec("0.95"), dec("0.96")))
	calc := newPairCalc(t, venue)

	opp, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "ETH", "EUR", "USDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// USDT is not fiat, so the conversion prices off the USDT/EUR book
	// at its taker fee, not the external fiat rate.
	if !opp.CrossRateReal.Equal(dec("0.95")) {
		t.Fatalf("real rate = %s, want the USDT/EUR bid", opp.CrossRateReal)
	}
	if !opp.ConversionFee.Equal(dec("0.001")) {
		t.Fatalf("conversion fee = %s, want the book's taker fee", opp.ConversionFee)
	}
	// proceeds: 3000 * 0.999 * 0.95 * 0.999 = 2844.30285
	// cost:     2710 * 1.001               = 2712.71
	if !opp.Profit.Equal(dec("131.59285")) {
		t.Fatalf("profit = %s, want 131.59285", opp.Profit)
	}
}

func TestPairUnconvertibleQuotes(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetDefaultFee(dec("0.001"))
	venue.SetBook("ETH/EUR", marketdomain.NewBidAsk(dec("2700"), dec("2710")))
	venue.SetBook("ETH/USDT", marketdomain.NewBidAsk(dec("3000"), dec("3010")))
	// No USDT/EUR or EUR/USDT book anywhere.
	calc := newPairCalc(t, venue)

	_, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "ETH", "EUR", "USDT")
	if apperror.GetCode(err) != apperror.CodeUnconvertible {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
}

func TestPairMissingLegRejected(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("89900"), dec("90000")))
	calc := newPairCalc(t, venue)

	_, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "GBP")
	if apperror.GetCode(err) != apperror.CodePairUnavailable {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
}

func TestPairOneSidedBookRejected(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetBook("BTC/EUR", marketdomain.NewBidAsk(dec("89900"), dec("90000")))
	venue.SetBook("BTC/USD", marketdomain.BidOnly(dec("101500")))
	calc := newPairCalc(t, venue)

	_, err := calc.Evaluate(context.Background(), fixedFiat{rate: dec("0.9")}, "kraken", "BTC", "EUR", "USD")
	if apperror.GetCode(err) != apperror.CodeEmptyOrderBook {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
}
