// Package app contains application services and port definitions for the market context.
package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/business/market/domain"
	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/metrics"
	"github.com/traderbetty/engine/internal/ratelimit"
)

// ServiceConfig tunes retry behavior for transient provider failures.
type ServiceConfig struct {
	RetryMax     int           // additional attempts after the first
	RetryBackoff time.Duration // initial backoff, doubled per attempt
}

// Service is the market data gate. It owns the per-exchange providers,
// paces every call through the shared per-exchange limiters, and retries
// transient failures with backoff. Permanent "not supported" conditions
// pass through untouched.
type Service struct {
	providers map[string]MarketDataProvider
	ids       []string // stable enumeration order (sorted)
	limits    *ratelimit.Registry
	cfg       ServiceConfig
	logger    *slog.Logger
	metrics   *metrics.EngineMetrics
}

// NewService creates the gate service and registers one limiter per
// exchange using the provider's mandated inter-request interval.
func NewService(providers []MarketDataProvider, limits *ratelimit.Registry, cfg ServiceConfig, logger *slog.Logger, m *metrics.EngineMetrics) *Service {
	byID := make(map[string]MarketDataProvider, len(providers))
	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
		ids = append(ids, p.ID())
		limits.Register(p.ID(), p.RateLimitInterval())
	}
	sort.Strings(ids)

	return &Service{
		providers: byID,
		ids:       ids,
		limits:    limits,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Exchanges returns all configured exchange ids in stable sorted order.
func (s *Service) Exchanges() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *Service) provider(exchange string) (MarketDataProvider, error) {
	p, ok := s.providers[exchange]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownExchange, apperror.WithContext(exchange))
	}
	return p, nil
}

// call paces and retries one provider operation. Each attempt waits out
// the exchange's limiter first; only retryable codes are retried.
func (s *Service) call(ctx context.Context, exchange string, fn func() error) error {
	var err error
	backoff := s.cfg.RetryBackoff
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			if s.metrics != nil {
				s.metrics.GateRetries.WithLabelValues(exchange).Inc()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if werr := s.limits.Wait(ctx, exchange); werr != nil {
			return werr
		}

		err = fn()
		s.count(exchange, err)
		if err == nil || !apperror.IsRetryable(err) {
			return err
		}
		s.logger.Warn("transient market data failure",
			"exchange", exchange,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return err
}

func (s *Service) count(exchange string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.GateRequests.WithLabelValues(exchange, result).Inc()
}

// HasSymbol reports whether the exchange lists the pair.
func (s *Service) HasSymbol(ctx context.Context, exchange string, pair domain.Pair) (bool, error) {
	p, err := s.provider(exchange)
	if err != nil {
		return false, err
	}
	var symbols map[string]bool
	err = s.call(ctx, exchange, func() error {
		var cerr error
		symbols, cerr = p.Symbols(ctx)
		return cerr
	})
	if err != nil {
		return false, err
	}
	return symbols[pair.Symbol()], nil
}

// BestBidAsk returns the top of the book on one exchange.
func (s *Service) BestBidAsk(ctx context.Context, exchange string, pair domain.Pair) (domain.BidAsk, error) {
	p, err := s.provider(exchange)
	if err != nil {
		return domain.BidAsk{}, err
	}
	var book domain.BidAsk
	err = s.call(ctx, exchange, func() error {
		var cerr error
		book, cerr = p.BestBidAsk(ctx, pair)
		return cerr
	})
	return book, err
}

// Ticker returns the last trade price on one exchange.
func (s *Service) Ticker(ctx context.Context, exchange string, pair domain.Pair) (decimal.Decimal, error) {
	p, err := s.provider(exchange)
	if err != nil {
		return decimal.Zero, err
	}
	var price decimal.Decimal
	err = s.call(ctx, exchange, func() error {
		var cerr error
		price, cerr = p.Ticker(ctx, pair)
		return cerr
	})
	return price, err
}

// TakerFee returns the taker fee fraction for a symbol on one exchange.
func (s *Service) TakerFee(ctx context.Context, exchange string, pair domain.Pair) (decimal.Decimal, error) {
	p, err := s.provider(exchange)
	if err != nil {
		return decimal.Zero, err
	}
	var fee decimal.Decimal
	err = s.call(ctx, exchange, func() error {
		var cerr error
		fee, cerr = p.TakerFee(ctx, pair)
		return cerr
	})
	return fee, err
}

// FundingFee returns deposit/withdrawal fees for a coin on one exchange.
func (s *Service) FundingFee(ctx context.Context, exchange string, coin string) (domain.FundingFee, error) {
	p, err := s.provider(exchange)
	if err != nil {
		return domain.FundingFee{}, err
	}
	var fee domain.FundingFee
	err = s.call(ctx, exchange, func() error {
		var cerr error
		fee, cerr = p.FundingFee(ctx, coin)
		return cerr
	})
	return fee, err
}

// exchangeSubset returns the requested ids, or all ids when none given,
// always in stable sorted order.
func (s *Service) exchangeSubset(exchanges []string) []string {
	if len(exchanges) == 0 {
		return s.Exchanges()
	}
	subset := make([]string, len(exchanges))
	copy(subset, exchanges)
	sort.Strings(subset)
	return subset
}

// LastPrices collects the last trade price for the pair on every exchange
// that lists it, ordered by price descending with ties broken by exchange
// id ascending. Exchanges that do not list the pair are skipped, not errors.
func (s *Service) LastPrices(ctx context.Context, pair domain.Pair, exchanges ...string) ([]domain.ExchangePrice, error) {
	var prices []domain.ExchangePrice
	for _, id := range s.exchangeSubset(exchanges) {
		listed, err := s.HasSymbol(ctx, id, pair)
		if err != nil {
			return nil, err
		}
		if !listed {
			continue
		}
		price, err := s.Ticker(ctx, id, pair)
		if err != nil {
			if apperror.GetCode(err) == apperror.CodePairUnavailable {
				continue
			}
			return nil, err
		}
		prices = append(prices, domain.ExchangePrice{Exchange: id, Price: price})
	}

	sort.SliceStable(prices, func(i, j int) bool {
		if !prices[i].Price.Equal(prices[j].Price) {
			return prices[i].Price.GreaterThan(prices[j].Price)
		}
		return prices[i].Exchange < prices[j].Exchange
	})
	return prices, nil
}

// BestPrice returns the highest last trade price across exchanges.
// Ties go to the lexicographically smallest exchange id.
func (s *Service) BestPrice(ctx context.Context, pair domain.Pair, exchanges ...string) (domain.ExchangePrice, error) {
	prices, err := s.LastPrices(ctx, pair, exchanges...)
	if err != nil {
		return domain.ExchangePrice{}, err
	}
	if len(prices) == 0 {
		return domain.ExchangePrice{}, apperror.Rejection(apperror.CodePairUnavailable, pair.Symbol())
	}
	return prices[0], nil
}

// AllBidAsk returns the top of book on every exchange listing the pair.
func (s *Service) AllBidAsk(ctx context.Context, pair domain.Pair, exchanges ...string) (map[string]domain.BidAsk, error) {
	books := make(map[string]domain.BidAsk)
	for _, id := range s.exchangeSubset(exchanges) {
		listed, err := s.HasSymbol(ctx, id, pair)
		if err != nil {
			return nil, err
		}
		if !listed {
			continue
		}
		book, err := s.BestBidAsk(ctx, id, pair)
		if err != nil {
			if apperror.GetCode(err) == apperror.CodePairUnavailable {
				continue
			}
			return nil, err
		}
		books[id] = book
	}
	return books, nil
}

// BestAsk returns the lowest ask for the pair across exchanges, ties
// broken by exchange id ascending.
func (s *Service) BestAsk(ctx context.Context, pair domain.Pair, exchanges ...string) (domain.ExchangePrice, error) {
	books, err := s.AllBidAsk(ctx, pair, exchanges...)
	if err != nil {
		return domain.ExchangePrice{}, err
	}
	if len(books) == 0 {
		return domain.ExchangePrice{}, apperror.Rejection(apperror.CodePairUnavailable, pair.Symbol())
	}

	var best domain.ExchangePrice
	found := false
	for _, id := range sortedKeys(books) {
		book := books[id]
		if !book.HasAsk {
			continue
		}
		if !found || book.Ask.LessThan(best.Price) {
			best = domain.ExchangePrice{Exchange: id, Price: book.Ask}
			found = true
		}
	}
	if !found {
		return domain.ExchangePrice{}, apperror.Rejection(apperror.CodeEmptyOrderBook, pair.Symbol())
	}
	return best, nil
}

// BestBid returns the highest bid for the pair across exchanges, ties
// broken by exchange id ascending.
func (s *Service) BestBid(ctx context.Context, pair domain.Pair, exchanges ...string) (domain.ExchangePrice, error) {
	books, err := s.AllBidAsk(ctx, pair, exchanges...)
	if err != nil {
		return domain.ExchangePrice{}, err
	}
	if len(books) == 0 {
		return domain.ExchangePrice{}, apperror.Rejection(apperror.CodePairUnavailable, pair.Symbol())
	}

	var best domain.ExchangePrice
	found := false
	for _, id := range sortedKeys(books) {
		book := books[id]
		if !book.HasBid {
			continue
		}
		if !found || book.Bid.GreaterThan(best.Price) {
			best = domain.ExchangePrice{Exchange: id, Price: book.Bid}
			found = true
		}
	}
	if !found {
		return domain.ExchangePrice{}, apperror.Rejection(apperror.CodeEmptyOrderBook, pair.Symbol())
	}
	return best, nil
}

func sortedKeys(m map[string]domain.BidAsk) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
