package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/metrics"
	"github.com/traderbetty/engine/internal/ratelimit"
)

// Plan is a fully priced trade ready to execute: one buy leg funded in
// BuyQuote, one sell leg sized later from the actual fill.
type Plan struct {
	BuyExchange string
	BuySymbol   string
	BuyQuote    string
	BuyPrice    decimal.Decimal

	SellExchange string
	SellSymbol   string
	SellPrice    decimal.Decimal
}

// PlanFromPair turns a pair opportunity into an executable plan. Both
// legs run on the same venue.
func PlanFromPair(o *domain.PairOpportunity) Plan {
	return Plan{
		BuyExchange:  o.Exchange,
		BuySymbol:    o.BuySymbol,
		BuyQuote:     o.BuyQuote,
		BuyPrice:     o.BuyPrice,
		SellExchange: o.Exchange,
		SellSymbol:   o.SellSymbol,
		SellPrice:    o.SellPrice,
	}
}

// PlanFromCross turns a cross opportunity into an executable plan. The
// sell leg presumes inventory already sits on the sell venue; the
// engine does not drive on-chain transfers.
func PlanFromCross(o *domain.CrossOpportunity) Plan {
	return Plan{
		BuyExchange:  o.BuyExchange,
		BuySymbol:    o.Symbol(),
		BuyQuote:     o.Quote,
		BuyPrice:     o.BuyPrice,
		SellExchange: o.SellExchange,
		SellSymbol:   o.Symbol(),
		SellPrice:    o.SellPrice,
	}
}

// ExecutorConfig tunes order sizing and buy-fill polling.
type ExecutorConfig struct {
	// BalanceFraction is the share of the free quote balance committed
	// to the buy leg.
	BalanceFraction decimal.Decimal
	// PollInterval spaces successive status polls.
	PollInterval time.Duration
	// PollTimeout bounds how long an open buy order is polled before the
	// execution is written off as stale.
	PollTimeout time.Duration
}

// Executor drives one plan through its legs: submit the buy, poll it to
// a terminal status, size the sell from the actual fill, submit the
// sell. The sell is never submitted before the buy has closed.
type Executor struct {
	orders  OrderClient
	limits  *ratelimit.Registry
	cfg     ExecutorConfig
	logger  *slog.Logger
	metrics *metrics.EngineMetrics
}

// NewExecutor creates an executor. Status polls go through the shared
// per-exchange limiters, the same budget market data draws from.
func NewExecutor(orders OrderClient, limits *ratelimit.Registry, cfg ExecutorConfig, logger *slog.Logger, m *metrics.EngineMetrics) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Executor{orders: orders, limits: limits, cfg: cfg, logger: logger, metrics: m}
}

// Execute runs the plan to a terminal state. It never returns an error:
// every failure mode is a terminal state with a reason on the result.
func (e *Executor) Execute(ctx context.Context, plan Plan) *domain.ExecutionResult {
	res := &domain.ExecutionResult{State: domain.StatePending, Trace: []domain.ExecutionState{domain.StatePending}}
	e.count(domain.StatePending)

	amount, err := e.sizeBuy(ctx, plan)
	if err != nil {
		return e.abort(res, fmt.Sprintf("sizing buy leg: %v", err))
	}

	buyID, err := e.orders.SubmitLimitBuy(ctx, plan.BuyExchange, plan.BuySymbol, amount, plan.BuyPrice)
	if err != nil {
		return e.abort(res, fmt.Sprintf("submitting buy: %v", err))
	}
	e.advance(res, domain.StateBuyOpen)
	e.logger.Info("buy submitted",
		"exchange", plan.BuyExchange,
		"symbol", plan.BuySymbol,
		"order_id", buyID,
		"amount", amount,
		"price", plan.BuyPrice,
	)

	buy, outcome := e.pollBuy(ctx, plan, buyID)
	res.BuyOrder = buy
	switch outcome {
	case pollFilled:
		if !buy.Filled.IsPositive() {
			e.terminal(res, domain.StateCanceled, "buy order closed without fill")
			return res
		}
		e.advance(res, domain.StateBuyClosed)
	case pollCanceled:
		e.terminal(res, domain.StateCanceled, "buy order canceled by venue")
		return res
	case pollStale:
		e.terminal(res, domain.StateStale, "buy order still open after poll timeout")
		return res
	case pollShutdownOpen:
		e.terminal(res, domain.StateCanceled, "shutdown while buy order open")
		return res
	case pollShutdownFilled:
		// The buy filled under our feet during shutdown; the sell leg
		// still goes out so inventory is not stranded.
		e.advance(res, domain.StateBuyClosed)
	}

	// Sell exactly what the buy filled, never the requested amount.
	sellCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		sellCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}
	sellID, err := e.orders.SubmitLimitSell(sellCtx, plan.SellExchange, plan.SellSymbol, buy.Filled, plan.SellPrice)
	if err != nil {
		return e.abort(res, fmt.Sprintf("submitting sell with inventory held: %v", err))
	}
	e.advance(res, domain.StateSellSubmitted)
	res.SellOrder = &domain.Order{
		ID:         sellID,
		Exchange:   plan.SellExchange,
		Symbol:     plan.SellSymbol,
		Side:       domain.SideSell,
		Amount:     buy.Filled,
		LimitPrice: plan.SellPrice,
		Status:     domain.OrderOpen,
	}
	e.logger.Info("sell submitted",
		"exchange", plan.SellExchange,
		"symbol", plan.SellSymbol,
		"order_id", sellID,
		"amount", buy.Filled,
		"price", plan.SellPrice,
	)

	e.advance(res, domain.StateDone)
	return res
}

// sizeBuy turns the free quote balance into a base amount at the buy price.
func (e *Executor) sizeBuy(ctx context.Context, plan Plan) (decimal.Decimal, error) {
	balance, err := e.orders.AvailableBalance(ctx, plan.BuyExchange, plan.BuyQuote)
	if err != nil {
		return decimal.Zero, err
	}
	amount := balance.Mul(e.cfg.BalanceFraction).Div(plan.BuyPrice)
	if !amount.IsPositive() {
		return decimal.Zero, apperror.Rejection(apperror.CodeInsufficientFunds, plan.BuyExchange+" "+plan.BuyQuote)
	}
	return amount, nil
}

type pollOutcome int

const (
	pollFilled pollOutcome = iota
	pollCanceled
	pollStale
	pollShutdownOpen
	pollShutdownFilled
)

// pollBuy polls the buy order until it reaches a terminal status, the
// poll timeout passes, or the context is canceled. Cancellation gets
// one final detached status fetch so a fill that landed during
// shutdown is not silently dropped.
func (e *Executor) pollBuy(ctx context.Context, plan Plan, orderID string) (*domain.Order, pollOutcome) {
	deadline := time.Now().Add(e.cfg.PollTimeout)
	var last *domain.Order

	for {
		select {
		case <-ctx.Done():
			return e.reconcile(ctx, plan, orderID, last)
		case <-time.After(e.cfg.PollInterval):
		}

		if time.Now().After(deadline) {
			return last, pollStale
		}

		if err := e.limits.Wait(ctx, plan.BuyExchange); err != nil {
			return e.reconcile(ctx, plan, orderID, last)
		}

		order, err := e.orders.OrderStatus(ctx, plan.BuyExchange, orderID)
		if err != nil {
			if apperror.IsRetryable(err) {
				e.logger.Warn("order status poll failed", "order_id", orderID, "error", err)
				continue
			}
			if ctx.Err() != nil {
				return e.reconcile(ctx, plan, orderID, last)
			}
			// Permanent failure mid-poll reads as a canceled order.
			e.logger.Error("order status unavailable", "order_id", orderID, "error", err)
			return last, pollCanceled
		}
		last = &order

		switch order.Status {
		case domain.OrderClosed:
			return last, pollFilled
		case domain.OrderCanceled:
			return last, pollCanceled
		}
	}
}

// reconcile runs the final status fetch after cancellation, on a
// detached short-lived context.
func (e *Executor) reconcile(ctx context.Context, plan Plan, orderID string, last *domain.Order) (*domain.Order, pollOutcome) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	order, err := e.orders.OrderStatus(fetchCtx, plan.BuyExchange, orderID)
	if err != nil {
		e.logger.Warn("final status fetch failed after shutdown", "order_id", orderID, "error", err)
		return last, pollShutdownOpen
	}
	if order.Status == domain.OrderClosed && order.Filled.IsPositive() {
		return &order, pollShutdownFilled
	}
	return &order, pollShutdownOpen
}

func (e *Executor) advance(res *domain.ExecutionResult, to domain.ExecutionState) {
	if !domain.CanTransition(res.State, to) {
		// A transition the state graph forbids is a programming error;
		// surface it loudly instead of corrupting the trace.
		panic(fmt.Sprintf("illegal execution transition %s -> %s", res.State, to))
	}
	res.State = to
	res.Trace = append(res.Trace, to)
	e.count(to)
}

func (e *Executor) terminal(res *domain.ExecutionResult, state domain.ExecutionState, reason string) {
	e.advance(res, state)
	res.Reason = reason
	e.logger.Warn("execution ended early", "state", state, "reason", reason)
}

func (e *Executor) abort(res *domain.ExecutionResult, reason string) *domain.ExecutionResult {
	res.State = domain.StateAborted
	res.Trace = append(res.Trace, domain.StateAborted)
	res.Reason = reason
	e.count(domain.StateAborted)
	e.logger.Error("execution aborted", "reason", reason)
	return res
}

func (e *Executor) count(state domain.ExecutionState) {
	if e.metrics == nil {
		return
	}
	e.metrics.Orders.WithLabelValues(string(state)).Inc()
}
