package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/arbitrage/domain"
	convertapp "github.com/traderbetty/engine/business/convert/app"
	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/config"
	"github.com/traderbetty/engine/internal/metrics"
)

// Scanner runs evaluation passes over the configured jobs. Jobs inside
// a pass run sequentially: every market call is rate limited anyway, so
// fanning out would only reorder the same waits.
type Scanner struct {
	pairs    *PairCalculator
	cross    *CrossCalculator
	executor *Executor
	resolver *convertapp.Resolver
	reporter Reporter
	cfg      config.ArbitrageConfig
	logger   *slog.Logger
	metrics  *metrics.EngineMetrics
}

// NewScanner wires the calculators, the executor and the reporter.
func NewScanner(
	pairs *PairCalculator,
	cross *CrossCalculator,
	executor *Executor,
	resolver *convertapp.Resolver,
	reporter Reporter,
	cfg config.ArbitrageConfig,
	logger *slog.Logger,
	m *metrics.EngineMetrics,
) *Scanner {
	return &Scanner{
		pairs:    pairs,
		cross:    cross,
		executor: executor,
		resolver: resolver,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Run scans at the configured interval until the context is canceled.
// A pass already underway finishes its current job before stopping.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		"pair_jobs", len(s.cfg.PairJobs),
		"cross_jobs", len(s.cfg.CrossJobs),
		"interval", s.cfg.ScanInterval,
		"execute", s.cfg.Execute,
	)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		s.Pass(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Pass evaluates every configured job once. All conversions in the pass
// share one fiat rate fetch.
func (s *Scanner) Pass(ctx context.Context) {
	pass := s.resolver.NewPass()

	for _, job := range s.cfg.PairJobs {
		if ctx.Err() != nil {
			return
		}
		s.runPairJob(ctx, pass, job)
	}
	for _, job := range s.cfg.CrossJobs {
		if ctx.Err() != nil {
			return
		}
		s.runCrossJob(ctx, job)
	}
}

func (s *Scanner) runPairJob(ctx context.Context, pass *convertapp.Pass, job config.PairJob) {
	subject := fmt.Sprintf("%s %s/%s vs %s/%s", job.Exchange, job.Base, job.Quote1, job.Base, job.Quote2)
	started := time.Now()

	opp, err := s.pairs.Evaluate(ctx, pass, job.Exchange, job.Base, job.Quote1, job.Quote2)
	s.observe(domain.KindPair, started, err)
	if err != nil {
		s.handleRejection(domain.KindPair, subject, err)
		return
	}

	s.reporter.Opportunity(opp)
	if s.cfg.Execute {
		res := s.executor.Execute(ctx, PlanFromPair(opp))
		s.reporter.Execution(res)
	}
}

func (s *Scanner) runCrossJob(ctx context.Context, job config.CrossJob) {
	subject := fmt.Sprintf("%s/%s across %v", job.Base, job.Quote, job.Exchanges)
	started := time.Now()

	opp, err := s.cross.Evaluate(ctx, job.Base, job.Quote, job.Exchanges, decimal.NewFromFloat(job.Volume))
	s.observe(domain.KindCross, started, err)
	if err != nil {
		s.handleRejection(domain.KindCross, subject, err)
		return
	}

	s.reporter.Opportunity(opp)
	if s.cfg.Execute {
		res := s.executor.Execute(ctx, PlanFromCross(opp))
		s.reporter.Execution(res)
	}
}

// handleRejection routes expected outcomes to the reporter and faults
// to the log. Rejections are part of a healthy scan; faults are not.
func (s *Scanner) handleRejection(kind domain.Kind, subject string, err error) {
	if apperror.IsRejection(err) {
		s.reporter.Rejection(kind, subject, err)
		if s.metrics != nil {
			s.metrics.Rejections.WithLabelValues(string(kind), string(apperror.GetCode(err))).Inc()
		}
		return
	}
	s.logger.Error("evaluation failed", "kind", kind, "subject", subject, "error", err)
}

func (s *Scanner) observe(kind domain.Kind, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "opportunity"
	switch {
	case err == nil:
	case apperror.IsRejection(err):
		outcome = "rejection"
	default:
		outcome = "error"
	}
	s.metrics.Evaluations.WithLabelValues(string(kind), outcome).Inc()
	s.metrics.EvalDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
}
