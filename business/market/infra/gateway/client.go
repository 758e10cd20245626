// Package gateway adapts a ccxt-gateway REST service as market data and
// order providers. One gateway process fronts many exchanges; every
// request names the venue in its path.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/traderbetty/engine/internal/apperror"
	"github.com/traderbetty/engine/internal/httpclient"
)

// Client is the shared transport to one gateway instance. All venue
// providers and the order client go through the same circuit breaker,
// since a dead gateway takes every venue down at once.
type Client struct {
	http    httpclient.Client
	breaker *gobreaker.CircuitBreaker[*httpclient.Response]
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	hc, err := httpclient.New(
		httpclient.WithProviderName("ccxt-gateway"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway: build http client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*httpclient.Response](gobreaker.Settings{
		Name:    "ccxt-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{http: hc, breaker: breaker}, nil
}

// get runs a GET through the breaker and decodes into result.
func (c *Client) get(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := c.breaker.Execute(func() (*httpclient.Response, error) {
		req := c.http.NewRequest().SetResult(result)
		for k, v := range query {
			req.SetQueryParam(k, v)
		}
		resp, err := req.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("gateway: %s returned %d", path, resp.StatusCode)
		}
		return resp, nil
	})
	return c.mapError(path, resp, err)
}

// post runs a POST through the breaker and decodes into result.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	resp, err := c.breaker.Execute(func() (*httpclient.Response, error) {
		resp, err := c.http.NewRequest().SetBody(body).SetResult(result).Post(ctx, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("gateway: %s returned %d", path, resp.StatusCode)
		}
		return resp, nil
	})
	return c.mapError(path, resp, err)
}

// mapError translates transport, breaker and HTTP status failures into
// the engine's error codes. 404 means the venue does not know the
// subject, which is an evaluation outcome, not a fault.
func (c *Client) mapError(path string, resp *httpclient.Response, err error) error {
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperror.New(apperror.CodeCircuitOpen, apperror.WithContext(path), apperror.WithCause(err))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.Transient(apperror.CodeServiceTimeout, path, err)
		}
		if resp != nil && resp.StatusCode >= 500 {
			return apperror.Transient(apperror.CodeExchangeUnavailable, path, err)
		}
		return apperror.Transient(apperror.CodeExchangeUnavailable, path, err)
	}

	switch {
	case resp == nil:
		return apperror.Transient(apperror.CodeExchangeUnavailable, path, nil)
	case resp.StatusCode == http.StatusNotFound:
		return apperror.Rejection(apperror.CodePairUnavailable, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperror.Transient(apperror.CodeRateLimitExceeded, path, nil)
	case resp.IsError():
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithContext(fmt.Sprintf("%s: status %d", path, resp.StatusCode)))
	}
	return nil
}
