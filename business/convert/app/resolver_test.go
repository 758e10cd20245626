package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	convertapp "github.com/traderbetty/engine/business/convert/app"
	"github.com/traderbetty/engine/business/convert/domain"
	marketapp "github.com/traderbetty/engine/business/market/app"
	"github.com/traderbetty/engine/business/market/infra/memory"
	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/ratelimit"
)

type countingFiat struct {
	calls int
	rate  decimal.Decimal
	err   error
}

func (f *countingFiat) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newResolver(t *testing.T, fiat convertapp.FiatRateSource, venues ...*memory.Exchange) *convertapp.Resolver {
	t.Helper()
	providers := make([]marketapp.MarketDataProvider, len(venues))
	for i, v := range venues {
		providers[i] = v
	}
	gate := marketapp.NewService(providers, ratelimit.NewRegistry(), marketapp.ServiceConfig{
		RetryMax:     1,
		RetryBackoff: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	return convertapp.NewResolver(gate, fiat, "EUR", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveReferenceIsIdentity(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	resolver := newResolver(t, &countingFiat{rate: dec("0.9")}, venue)

	conv, err := resolver.NewPass().Resolve(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Hop != domain.HopNone || !conv.Price.Equal(dec("1")) {
		t.Fatalf("conv = %+v", conv)
	}
	if venue.Lookups() != 0 {
		t.Fatalf("identity conversion hit the market %d times", venue.Lookups())
	}
}

func TestResolveDirect(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetTicker("BTC/EUR", dec("50000"))
	resolver := newResolver(t, &countingFiat{rate: dec("0.9")}, venue)

	conv, err := resolver.NewPass().Resolve(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Hop != domain.HopDirect || conv.Exchange != "kraken" {
		t.Fatalf("conv = %+v", conv)
	}
	if !conv.Price.Equal(dec("50000")) {
		t.Fatalf("price = %s", conv.Price)
	}
}

func TestResolveUSDHop(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetTicker("SOL/USD", dec("200"))
	fiat := &countingFiat{rate: dec("0.9")}
	resolver := newResolver(t, fiat, venue)

	conv, err := resolver.NewPass().Resolve(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Hop != domain.HopUSD {
		t.Fatalf("hop = %s", conv.Hop)
	}
	if !conv.Price.Equal(dec("180")) {
		t.Fatalf("price = %s, want 180", conv.Price)
	}
}

func TestResolveBTCHop(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetTicker("ADA/BTC", dec("0.0004"))
	venue.SetTicker("BTC/EUR", dec("50000"))
	resolver := newResolver(t, &countingFiat{rate: dec("0.9")}, venue)

	conv, err := resolver.NewPass().Resolve(context.Background(), "ADA")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Hop != domain.HopBTC {
		t.Fatalf("hop = %s", conv.Hop)
	}
	if !conv.Price.Equal(dec("20")) {
		t.Fatalf("price = %s, want 20", conv.Price)
	}
}

func TestResolveUnconvertible(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	resolver := newResolver(t, &countingFiat{rate: dec("0.9")}, venue)

	_, err := resolver.NewPass().Resolve(context.Background(), "XYZ")
	if apperror.GetCode(err) != apperror.CodeUnconvertible {
		t.Fatalf("code = %s", apperror.GetCode(err))
	}
	if !apperror.IsRejection(err) {
		t.Fatal("unconvertible must classify as a rejection")
	}
}

func TestPassFetchesFiatRateOnce(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.SetTicker("SOL/USD", dec("200"))
	venue.SetTicker("DOT/USD", dec("10"))
	fiat := &countingFiat{rate: dec("0.9")}
	resolver := newResolver(t, fiat, venue)

	pass := resolver.NewPass()
	ctx := context.Background()
	if _, err := pass.Resolve(ctx, "SOL"); err != nil {
		t.Fatalf("Resolve SOL: %v", err)
	}
	if _, err := pass.Resolve(ctx, "DOT"); err != nil {
		t.Fatalf("Resolve DOT: %v", err)
	}
	if _, err := pass.FiatRate(ctx, "USD", "EUR"); err != nil {
		t.Fatalf("FiatRate: %v", err)
	}
	if fiat.calls != 1 {
		t.Fatalf("fiat rate fetched %d times in one pass", fiat.calls)
	}

	// A fresh pass fetches again.
	if _, err := resolver.NewPass().Resolve(ctx, "SOL"); err != nil {
		t.Fatalf("Resolve on new pass: %v", err)
	}
	if fiat.calls != 2 {
		t.Fatalf("fiat rate fetched %d times across two passes", fiat.calls)
	}
}

func TestPassFiatRateReciprocal(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	resolver := newResolver(t, &countingFiat{rate: dec("0.8")}, venue)

	pass := resolver.NewPass()
	rate, err := pass.FiatRate(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("FiatRate: %v", err)
	}
	if !rate.Equal(dec("1.25")) {
		t.Fatalf("EUR->USD = %s, want 1.25", rate)
	}
}

func TestResolvePrefersRestrictedExchange(t *testing.T) {
	kraken := memory.NewExchange("kraken", 0)
	kraken.SetTicker("BTC/EUR", dec("50000"))
	binance := memory.NewExchange("binance", 0)
	binance.SetTicker("BTC/EUR", dec("51000"))
	resolver := newResolver(t, &countingFiat{rate: dec("0.9")}, kraken, binance)

	conv, err := resolver.NewPass().Resolve(context.Background(), "BTC", "kraken")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Exchange != "kraken" || !conv.Price.Equal(dec("50000")) {
		t.Fatalf("conv = %+v", conv)
	}

	// Unrestricted, the better quote wins.
	conv, err = resolver.NewPass().Resolve(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conv.Exchange != "binance" || !conv.Price.Equal(dec("51000")) {
		t.Fatalf("conv = %+v", conv)
	}
}
