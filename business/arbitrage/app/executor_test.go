package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	arbapp "github.com/traderbetty/engine/business/arbitrage/app"
	"github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/business/market/infra/memory"
	"github.com/traderbetty/engine/internal/ratelimit"
)

func testPlan() arbapp.Plan {
	return arbapp.Plan{
		BuyExchange:  "kraken",
		BuySymbol:    "BTC/EUR",
		BuyQuote:     "EUR",
		BuyPrice:     dec("100"),
		SellExchange: "kraken",
		SellSymbol:   "BTC/USD",
		SellPrice:    dec("110"),
	}
}

func fundedVenue() *memory.Exchange {
	venue := memory.NewExchange("kraken", 0)
	venue.ListSymbol("BTC/EUR")
	venue.ListSymbol("BTC/USD")
	venue.SetBalance("EUR", dec("1000"))
	return venue
}

func newExecutor(venue *memory.Exchange, pollTimeout time.Duration) *arbapp.Executor {
	return arbapp.NewExecutor(memory.NewBroker(venue), ratelimit.NewRegistry(), arbapp.ExecutorConfig{
		BalanceFraction: dec("0.75"),
		PollInterval:    time.Millisecond,
		PollTimeout:     pollTimeout,
	}, discardLogger(), nil)
}

func stateIndex(trace []domain.ExecutionState, state domain.ExecutionState) int {
	for i, s := range trace {
		if s == state {
			return i
		}
	}
	return -1
}

func TestExecuteHappyPath(t *testing.T) {
	venue := fundedVenue()
	exec := newExecutor(venue, time.Second)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateDone {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}

	want := []domain.ExecutionState{
		domain.StatePending,
		domain.StateBuyOpen,
		domain.StateBuyClosed,
		domain.StateSellSubmitted,
		domain.StateDone,
	}
	if len(res.Trace) != len(want) {
		t.Fatalf("trace = %v", res.Trace)
	}
	for i := range want {
		if res.Trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", res.Trace, want)
		}
	}

	// 75% of 1000 EUR at price 100 buys 7.5 base units.
	if res.BuyOrder == nil || !res.BuyOrder.Filled.Equal(dec("7.5")) {
		t.Fatalf("buy order = %+v", res.BuyOrder)
	}
	if res.SellOrder == nil || !res.SellOrder.Amount.Equal(dec("7.5")) {
		t.Fatalf("sell order = %+v", res.SellOrder)
	}
}

func TestExecuteSellSizedFromPartialFill(t *testing.T) {
	venue := fundedVenue()
	venue.FillFraction(dec("0.4"))
	exec := newExecutor(venue, time.Second)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateDone {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	// The buy asked for 7.5 but filled 3; the sell must move 3, never 7.5.
	if !res.BuyOrder.Filled.Equal(dec("3")) {
		t.Fatalf("filled = %s", res.BuyOrder.Filled)
	}
	if !res.SellOrder.Amount.Equal(dec("3")) {
		t.Fatalf("sell amount = %s", res.SellOrder.Amount)
	}
}

func TestExecuteNeverSellsBeforeBuyCloses(t *testing.T) {
	venue := fundedVenue()
	venue.FillAfterPolls(3)
	exec := newExecutor(venue, time.Second)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateDone {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	closed := stateIndex(res.Trace, domain.StateBuyClosed)
	submitted := stateIndex(res.Trace, domain.StateSellSubmitted)
	if closed == -1 || submitted == -1 || closed >= submitted {
		t.Fatalf("trace = %v", res.Trace)
	}
}

func TestExecuteBuyCanceledByVenue(t *testing.T) {
	venue := fundedVenue()
	venue.CancelOrders()
	exec := newExecutor(venue, time.Second)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateCanceled {
		t.Fatalf("state = %s", res.State)
	}
	if res.Visited(domain.StateBuyClosed) || res.Visited(domain.StateSellSubmitted) {
		t.Fatalf("canceled buy still progressed: %v", res.Trace)
	}
	if res.Reason == "" {
		t.Fatal("canceled execution must carry a reason")
	}
}

func TestExecuteStaleAfterPollTimeout(t *testing.T) {
	venue := fundedVenue()
	venue.NeverFill()
	exec := newExecutor(venue, 30*time.Millisecond)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateStale {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	if res.Visited(domain.StateSellSubmitted) {
		t.Fatalf("stale buy still sold: %v", res.Trace)
	}
}

func TestExecuteInsufficientFundsAborts(t *testing.T) {
	venue := memory.NewExchange("kraken", 0)
	venue.ListSymbol("BTC/EUR")
	venue.ListSymbol("BTC/USD")
	exec := newExecutor(venue, time.Second)

	res := exec.Execute(context.Background(), testPlan())
	if res.State != domain.StateAborted {
		t.Fatalf("state = %s", res.State)
	}
	if !strings.Contains(res.Reason, "sizing buy leg") {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.Visited(domain.StateBuyOpen) {
		t.Fatalf("unfunded execution submitted a buy: %v", res.Trace)
	}
}

func TestExecuteShutdownReconcilesFill(t *testing.T) {
	venue := fundedVenue()
	exec := newExecutor(venue, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // shutdown arrives while the buy is in flight

	res := exec.Execute(ctx, testPlan())
	// The final detached status fetch sees the fill, so the sell leg
	// still goes out instead of stranding inventory.
	if res.State != domain.StateDone {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	if res.SellOrder == nil || !res.SellOrder.Amount.Equal(dec("7.5")) {
		t.Fatalf("sell order = %+v", res.SellOrder)
	}
}

func TestExecuteShutdownWithOpenBuyCancels(t *testing.T) {
	venue := fundedVenue()
	venue.NeverFill()
	exec := newExecutor(venue, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.Execute(ctx, testPlan())
	if res.State != domain.StateCanceled {
		t.Fatalf("state = %s, reason = %q", res.State, res.Reason)
	}
	if res.Visited(domain.StateSellSubmitted) {
		t.Fatalf("shutdown with open buy still sold: %v", res.Trace)
	}
}
