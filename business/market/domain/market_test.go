package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    Pair
		wantErr bool
	}{
		{in: "BTC/EUR", want: Pair{Base: "BTC", Quote: "EUR"}},
		{in: "eth/usdt", want: Pair{Base: "ETH", Quote: "USDT"}},
		{in: "BTCEUR", wantErr: true},
		{in: "/EUR", wantErr: true},
		{in: "BTC/", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSymbol(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSymbol(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSymbol(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSymbol(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPairSymbolRoundTrip(t *testing.T) {
	p := NewPair("btc", "eur")
	if p.Symbol() != "BTC/EUR" {
		t.Fatalf("Symbol() = %q", p.Symbol())
	}
	if p.Invert().Symbol() != "EUR/BTC" {
		t.Fatalf("Invert().Symbol() = %q", p.Invert().Symbol())
	}
}

func TestIsFiat(t *testing.T) {
	for _, code := range []string{"EUR", "usd", "GBP", "CHF", "JPY"} {
		if !IsFiat(code) {
			t.Errorf("IsFiat(%q) = false", code)
		}
	}
	// Stablecoins trade on crypto books, not at the external fiat rate.
	for _, code := range []string{"USDT", "USDC", "BTC", ""} {
		if IsFiat(code) {
			t.Errorf("IsFiat(%q) = true", code)
		}
	}
}

func TestBidAskSides(t *testing.T) {
	two := NewBidAsk(decimal.NewFromInt(99), decimal.NewFromInt(101))
	if !two.TwoSided() {
		t.Fatal("expected two-sided book")
	}
	if !two.Spread().Equal(decimal.NewFromInt(2)) {
		t.Fatalf("Spread() = %s", two.Spread())
	}

	bid := BidOnly(decimal.NewFromInt(99))
	if bid.TwoSided() {
		t.Fatal("bid-only book reported two-sided")
	}
	if !bid.Spread().IsZero() {
		t.Fatalf("one-sided Spread() = %s", bid.Spread())
	}

	ask := AskOnly(decimal.NewFromInt(101))
	if ask.HasBid || !ask.HasAsk {
		t.Fatal("AskOnly sides wrong")
	}
}

func TestFundingFeeDefaults(t *testing.T) {
	var unknown FundingFee
	if !unknown.DepositOrZero().IsZero() || !unknown.WithdrawOrZero().IsZero() {
		t.Fatal("unknown funding fees must read as zero")
	}

	known := FundingFee{
		Withdraw:    decimal.NewFromFloat(0.0005),
		HasWithdraw: true,
	}
	if !known.WithdrawOrZero().Equal(decimal.NewFromFloat(0.0005)) {
		t.Fatalf("WithdrawOrZero() = %s", known.WithdrawOrZero())
	}
	if !known.DepositOrZero().IsZero() {
		t.Fatalf("DepositOrZero() = %s", known.DepositOrZero())
	}
}
