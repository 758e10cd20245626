// Package infra contains outbound adapters for the arbitrage context.
package infra

import (
	"log/slog"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	"github.com/traderbetty/engine/internal/apperror"
)

// ConsoleReporter writes every evaluation outcome to the structured log.
// Opportunities and executions go out at info, rejections at debug so a
// quiet market does not flood the log.
type ConsoleReporter struct {
	logger *slog.Logger
}

// NewConsoleReporter creates a reporter over the given logger.
func NewConsoleReporter(logger *slog.Logger) *ConsoleReporter {
	return &ConsoleReporter{logger: logger}
}

// Opportunity reports a profitable finding.
func (r *ConsoleReporter) Opportunity(opp domain.Opportunity) {
	r.logger.Info("opportunity found",
		"kind", opp.Kind(),
		"detail", opp.Describe(),
	)
}

// Rejection reports an examined-and-declined evaluation.
func (r *ConsoleReporter) Rejection(kind domain.Kind, subject string, err error) {
	r.logger.Debug("opportunity rejected",
		"kind", kind,
		"subject", subject,
		"code", apperror.GetCode(err),
		"reason", err.Error(),
	)
}

// Execution reports the outcome of driving an opportunity.
func (r *ConsoleReporter) Execution(res *domain.ExecutionResult) {
	attrs := []any{
		"state", res.State,
		"trace", res.Trace,
	}
	if res.BuyOrder != nil {
		attrs = append(attrs, "buy_order", res.BuyOrder.ID, "filled", res.BuyOrder.Filled)
	}
	if res.SellOrder != nil {
		attrs = append(attrs, "sell_order", res.SellOrder.ID)
	}
	if res.Reason != "" {
		attrs = append(attrs, "reason", res.Reason)
	}

	if res.State == domain.StateDone {
		r.logger.Info("execution completed", attrs...)
		return
	}
	r.logger.Warn("execution did not complete", attrs...)
}
