package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/market/domain"
)

// Provider serves market data for one exchange through the gateway. It
// implements the market data port.
type Provider struct {
	client     *Client
	exchange   string
	interval   time.Duration
	defaultFee decimal.Decimal
}

// NewProvider creates a provider for one exchange id.
func NewProvider(client *Client, exchange string, interval time.Duration, defaultFee decimal.Decimal) *Provider {
	return &Provider{
		client:     client,
		exchange:   exchange,
		interval:   interval,
		defaultFee: defaultFee,
	}
}

// ID returns the exchange identifier.
func (p *Provider) ID() string { return p.exchange }

// RateLimitInterval returns the venue's mandated inter-request interval.
func (p *Provider) RateLimitInterval() time.Duration { return p.interval }

type marketInfo struct {
	Symbol string           `json:"symbol"`
	Taker  *decimal.Decimal `json:"taker"`
}

type orderBook struct {
	Bids [][]decimal.Decimal `json:"bids"`
	Asks [][]decimal.Decimal `json:"asks"`
}

type ticker struct {
	Last decimal.Decimal `json:"last"`
}

type currencyInfo struct {
	WithdrawFee *decimal.Decimal `json:"withdrawFee"`
	DepositFee  *decimal.Decimal `json:"depositFee"`
}

// Symbols lists every tradable symbol on the exchange.
func (p *Provider) Symbols(ctx context.Context) (map[string]bool, error) {
	var markets []marketInfo
	path := fmt.Sprintf("/exchanges/%s/markets", p.exchange)
	if err := p.client.get(ctx, path, nil, &markets); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(markets))
	for _, m := range markets {
		out[m.Symbol] = true
	}
	return out, nil
}

// BestBidAsk returns the top of the order book.
func (p *Provider) BestBidAsk(ctx context.Context, pair domain.Pair) (domain.BidAsk, error) {
	var book orderBook
	path := fmt.Sprintf("/exchanges/%s/orderbook", p.exchange)
	query := map[string]string{"symbol": pair.Symbol(), "limit": "1"}
	if err := p.client.get(ctx, path, query, &book); err != nil {
		return domain.BidAsk{}, err
	}

	var top domain.BidAsk
	if len(book.Bids) > 0 && len(book.Bids[0]) > 0 {
		top.Bid = book.Bids[0][0]
		top.HasBid = true
	}
	if len(book.Asks) > 0 && len(book.Asks[0]) > 0 {
		top.Ask = book.Asks[0][0]
		top.HasAsk = true
	}
	return top, nil
}

// Ticker returns the last trade price.
func (p *Provider) Ticker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	var t ticker
	path := fmt.Sprintf("/exchanges/%s/ticker", p.exchange)
	query := map[string]string{"symbol": pair.Symbol()}
	if err := p.client.get(ctx, path, query, &t); err != nil {
		return decimal.Zero, err
	}
	return t.Last, nil
}

// TakerFee returns the taker fee fraction for a symbol, falling back to
// the configured default when the venue does not publish per-market fees.
func (p *Provider) TakerFee(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	var m marketInfo
	path := fmt.Sprintf("/exchanges/%s/markets/%s", p.exchange, url.PathEscape(pair.Symbol()))
	if err := p.client.get(ctx, path, nil, &m); err != nil {
		return decimal.Zero, err
	}
	if m.Taker == nil {
		return p.defaultFee, nil
	}
	return *m.Taker, nil
}

// FundingFee returns deposit and withdrawal fees for a coin. Venues
// that publish neither come back with both sides unknown.
func (p *Provider) FundingFee(ctx context.Context, coin string) (domain.FundingFee, error) {
	var info currencyInfo
	path := fmt.Sprintf("/exchanges/%s/currencies/%s", p.exchange, url.PathEscape(coin))
	if err := p.client.get(ctx, path, nil, &info); err != nil {
		return domain.FundingFee{}, err
	}

	var fee domain.FundingFee
	if info.WithdrawFee != nil {
		fee.Withdraw = *info.WithdrawFee
		fee.HasWithdraw = true
	}
	if info.DepositFee != nil {
		fee.Deposit = *info.DepositFee
		fee.HasDeposit = true
	}
	return fee, nil
}
