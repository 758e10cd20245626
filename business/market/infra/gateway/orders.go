package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	arbdomain "github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// OrderClient routes order operations through the gateway. It implements
// the arbitrage order port.
type OrderClient struct {
	client *Client
}

// NewOrderClient creates an order client over the shared gateway transport.
func NewOrderClient(client *Client) *OrderClient {
	return &OrderClient{client: client}
}

type balanceInfo struct {
	Free decimal.Decimal `json:"free"`
}

type orderRequest struct {
	Symbol string          `json:"symbol"`
	Type   string          `json:"type"`
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

type orderInfo struct {
	ID     string          `json:"id"`
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
	Filled decimal.Decimal `json:"filled"`
	Price  decimal.Decimal `json:"price"`
}

// Balances lists the free balance of every currency held on an exchange.
func (c *OrderClient) Balances(ctx context.Context, exchange string) (map[string]decimal.Decimal, error) {
	var all map[string]balanceInfo
	path := fmt.Sprintf("/exchanges/%s/balances", exchange)
	if err := c.client.get(ctx, path, nil, &all); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(all))
	for currency, info := range all {
		out[currency] = info.Free
	}
	return out, nil
}

// AvailableBalance returns the free balance of a currency on an exchange.
func (c *OrderClient) AvailableBalance(ctx context.Context, exchange, currency string) (decimal.Decimal, error) {
	var info balanceInfo
	path := fmt.Sprintf("/exchanges/%s/balance/%s", exchange, url.PathEscape(currency))
	if err := c.client.get(ctx, path, nil, &info); err != nil {
		return decimal.Zero, err
	}
	return info.Free, nil
}

// SubmitLimitBuy places a limit buy order and returns its id.
func (c *OrderClient) SubmitLimitBuy(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error) {
	return c.submit(ctx, exchange, symbol, "buy", amount, price)
}

// SubmitLimitSell places a limit sell order and returns its id.
func (c *OrderClient) SubmitLimitSell(ctx context.Context, exchange, symbol string, amount, price decimal.Decimal) (string, error) {
	return c.submit(ctx, exchange, symbol, "sell", amount, price)
}

func (c *OrderClient) submit(ctx context.Context, exchange, symbol, side string, amount, price decimal.Decimal) (string, error) {
	var info orderInfo
	path := fmt.Sprintf("/exchanges/%s/orders", exchange)
	body := orderRequest{Symbol: symbol, Type: "limit", Side: side, Amount: amount, Price: price}
	if err := c.client.post(ctx, path, body, &info); err != nil {
		if apperror.GetCode(err) == apperror.CodeExternalServiceError {
			// The gateway answers order validation failures with 4xx.
			return "", apperror.Wrap(err, apperror.CodeOrderRejected, exchange+" "+symbol)
		}
		return "", err
	}
	if info.ID == "" {
		return "", apperror.New(apperror.CodeOrderRejected,
			apperror.WithContext(exchange+" "+symbol),
			apperror.WithMessage("gateway returned no order id"))
	}
	return info.ID, nil
}

// OrderStatus fetches the current state of an order, including its fill.
func (c *OrderClient) OrderStatus(ctx context.Context, exchange, orderID string) (arbdomain.Order, error) {
	var info orderInfo
	path := fmt.Sprintf("/exchanges/%s/orders/%s", exchange, url.PathEscape(orderID))
	if err := c.client.get(ctx, path, nil, &info); err != nil {
		if apperror.GetCode(err) == apperror.CodePairUnavailable {
			return arbdomain.Order{}, apperror.Rejection(apperror.CodeOrderNotFound, orderID)
		}
		return arbdomain.Order{}, err
	}

	status := arbdomain.OrderStatus(info.Status)
	switch status {
	case arbdomain.OrderOpen, arbdomain.OrderClosed, arbdomain.OrderCanceled:
	default:
		// ccxt reports "expired" and "rejected" for some venues; both are
		// final without a fill, same as canceled for our purposes.
		status = arbdomain.OrderCanceled
	}

	return arbdomain.Order{
		ID:         info.ID,
		Exchange:   exchange,
		Symbol:     info.Symbol,
		Side:       arbdomain.Side(info.Side),
		Amount:     info.Amount,
		Filled:     info.Filled,
		LimitPrice: info.Price,
		Status:     status,
	}, nil
}
