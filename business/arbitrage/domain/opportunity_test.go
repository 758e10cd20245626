package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validPair() *PairOpportunity {
	return &PairOpportunity{
		Exchange:         "kraken",
		Base:             "BTC",
		Quote1:           "EUR",
		Quote2:           "USD",
		BuySymbol:        "BTC/EUR",
		SellSymbol:       "BTC/USD",
		BuyQuote:         "EUR",
		SellQuote:        "USD",
		BuyPrice:         decimal.NewFromInt(90000),
		SellPrice:        decimal.NewFromInt(101500),
		CrossRateReal:    decimal.NewFromFloat(0.9),
		CrossRateImplied: decimal.NewFromFloat(0.89),
		Profit:           decimal.NewFromInt(940),
		Timestamp:        time.Now(),
	}
}

func TestPairOpportunityValidate(t *testing.T) {
	if err := validPair().Validate(); err != nil {
		t.Fatalf("valid opportunity rejected: %v", err)
	}

	equalQuotes := validPair()
	equalQuotes.Quote2 = "EUR"
	if err := equalQuotes.Validate(); err == nil {
		t.Fatal("equal quotes accepted")
	}

	zeroPrice := validPair()
	zeroPrice.BuyPrice = decimal.Zero
	if err := zeroPrice.Validate(); err == nil {
		t.Fatal("zero buy price accepted")
	}

	noRate := validPair()
	noRate.CrossRateReal = decimal.Zero
	if err := noRate.Validate(); err == nil {
		t.Fatal("zero cross-rate accepted")
	}
}

func TestPairOpportunityProfitability(t *testing.T) {
	opp := validPair()
	if !opp.IsProfitable() {
		t.Fatal("positive profit read as unprofitable")
	}
	opp.Profit = decimal.Zero
	if opp.IsProfitable() {
		t.Fatal("zero profit read as profitable")
	}
	opp.Profit = decimal.NewFromInt(-1)
	if opp.IsProfitable() {
		t.Fatal("negative profit read as profitable")
	}
}

func validCross() *CrossOpportunity {
	return &CrossOpportunity{
		Base:         "LTC",
		Quote:        "EUR",
		BuyExchange:  "binance",
		SellExchange: "kraken",
		BuyPrice:     decimal.NewFromInt(100),
		SellPrice:    decimal.NewFromInt(110),
		MinVolume:    decimal.NewFromFloat(0.5),
		Volume:       decimal.NewFromInt(30),
		Profit:       decimal.NewFromInt(213),
		Timestamp:    time.Now(),
	}
}

func TestCrossOpportunityValidate(t *testing.T) {
	if err := validCross().Validate(); err != nil {
		t.Fatalf("valid opportunity rejected: %v", err)
	}

	sameVenue := validCross()
	sameVenue.SellExchange = "binance"
	if err := sameVenue.Validate(); err == nil {
		t.Fatal("same venue accepted")
	}

	underMin := validCross()
	underMin.Volume = decimal.NewFromFloat(0.1)
	if err := underMin.Validate(); err == nil {
		t.Fatal("volume below minimum accepted")
	}
}

func TestCrossOpportunitySymbol(t *testing.T) {
	if validCross().Symbol() != "LTC/EUR" {
		t.Fatalf("Symbol() = %q", validCross().Symbol())
	}
}

func TestDescribeMentionsVenuesAndProfit(t *testing.T) {
	pair := validPair().Describe()
	if !strings.Contains(pair, "kraken") || !strings.Contains(pair, "BTC/EUR") {
		t.Fatalf("pair describe = %q", pair)
	}
	cross := validCross().Describe()
	if !strings.Contains(cross, "binance") || !strings.Contains(cross, "kraken") {
		t.Fatalf("cross describe = %q", cross)
	}
}
