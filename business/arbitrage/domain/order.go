// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"github.com/shopspring/decimal"
)

// Side represents the side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the venue-reported lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderClosed   OrderStatus = "closed"
	OrderCanceled OrderStatus = "canceled"
)

// Terminal reports whether the status will never change again.
func (s OrderStatus) Terminal() bool {
	return s == OrderClosed || s == OrderCanceled
}

// Order is a limit order on one exchange. It is created on submission
// and mutated only by status polling.
type Order struct {
	ID         string
	Exchange   string
	Symbol     string
	Side       Side
	Amount     decimal.Decimal
	Filled     decimal.Decimal
	LimitPrice decimal.Decimal
	Status     OrderStatus
}

// ExecutionState is the engine-side state of driving one opportunity
// through its buy and sell legs.
type ExecutionState string

const (
	StatePending       ExecutionState = "PENDING"
	StateBuyOpen       ExecutionState = "BUY_OPEN"
	StateBuyClosed     ExecutionState = "BUY_CLOSED"
	StateSellSubmitted ExecutionState = "SELL_SUBMITTED"
	StateDone          ExecutionState = "DONE"
	StateCanceled      ExecutionState = "CANCELED"
	StateAborted       ExecutionState = "ABORTED"
	StateStale         ExecutionState = "STALE"
)

// Terminal reports whether the execution has finished, one way or another.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateDone, StateCanceled, StateAborted, StateStale:
		return true
	}
	return false
}

// transitions is the legal state graph. StateAborted is reachable from
// every non-terminal state and is handled separately.
var transitions = map[ExecutionState][]ExecutionState{
	StatePending:       {StateBuyOpen},
	StateBuyOpen:       {StateBuyClosed, StateCanceled, StateStale},
	StateBuyClosed:     {StateSellSubmitted},
	StateSellSubmitted: {StateDone},
}

// CanTransition reports whether moving from one execution state to
// another is legal.
func CanTransition(from, to ExecutionState) bool {
	if to == StateAborted {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExecutionResult records the outcome of driving one opportunity.
type ExecutionResult struct {
	State     ExecutionState
	Trace     []ExecutionState // every state visited, in order
	BuyOrder  *Order
	SellOrder *Order
	Reason    string // set for ABORTED/CANCELED/STALE
}

// Visited reports whether the execution passed through the given state.
func (r *ExecutionResult) Visited(state ExecutionState) bool {
	for _, s := range r.Trace {
		if s == state {
			return true
		}
	}
	return false
}
