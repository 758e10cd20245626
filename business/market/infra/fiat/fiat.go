// Package fiat provides fiat exchange rate sources.
package fiat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/httpclient"
)

// HTTPSource fetches fiat rates from a frankfurter-compatible API.
type HTTPSource struct {
	client httpclient.Client
}

// NewHTTPSource creates a source against the given base URL.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	hc, err := httpclient.New(
		httpclient.WithProviderName("fiat-rates"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("fiat: build http client: %w", err)
	}
	return &HTTPSource{client: hc}, nil
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Rate returns how many units of `to` one unit of `from` buys.
func (s *HTTPSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	var result latestResponse
	resp, err := s.client.NewRequest().
		SetQueryParam("base", from).
		SetQueryParam("symbols", to).
		SetResult(&result).
		Get(ctx, "/latest")
	if err != nil {
		return decimal.Zero, apperror.Transient(apperror.CodeFiatRateFailed, from+"->"+to, err)
	}
	if resp.IsError() {
		return decimal.Zero, apperror.New(apperror.CodeFiatRateFailed,
			apperror.WithContext(fmt.Sprintf("%s->%s: status %d", from, to, resp.StatusCode)))
	}

	rate, ok := result.Rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeFiatRateFailed, apperror.WithContext(from+"->"+to))
	}
	return rate, nil
}

// FixedSource serves a single configured rate pair. It backs paper
// trading and acts as the fallback when the rate API is down.
type FixedSource struct {
	from, to string
	rate     decimal.Decimal
}

// NewFixedSource creates a source answering from->to with rate and
// to->from with its reciprocal.
func NewFixedSource(from, to string, rate decimal.Decimal) *FixedSource {
	return &FixedSource{from: strings.ToUpper(from), to: strings.ToUpper(to), rate: rate}
}

// Rate returns the configured rate, its reciprocal, or 1 for identity.
func (s *FixedSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	switch {
	case from == to:
		return decimal.NewFromInt(1), nil
	case from == s.from && to == s.to:
		return s.rate, nil
	case from == s.to && to == s.from && s.rate.IsPositive():
		return decimal.NewFromInt(1).Div(s.rate), nil
	}
	return decimal.Zero, apperror.New(apperror.CodeFiatRateFailed, apperror.WithContext(from+"->"+to))
}

// FallbackSource tries a primary source and falls back to a secondary
// when the primary fails. The fallback is logged by the caller through
// the returned error being nil; operators see the degraded rate in the
// opportunity reports.
type FallbackSource struct {
	primary   RateSource
	secondary RateSource
}

// RateSource is the minimal fiat rate interface.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// NewFallbackSource chains two sources.
func NewFallbackSource(primary, secondary RateSource) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary}
}

// Rate returns the primary's answer, or the secondary's when the
// primary errors.
func (s *FallbackSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, err := s.primary.Rate(ctx, from, to)
	if err == nil {
		return rate, nil
	}
	return s.secondary.Rate(ctx, from, to)
}
