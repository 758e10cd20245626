// Package ratelimit provides per-exchange request pacing on top of
// golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with convenience methods.
type Limiter struct {
	limiter *rate.Limiter
}

// NewInterval creates a limiter that allows one event per interval.
// An interval of zero or less disables pacing.
func NewInterval(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// NewWithBurst creates a new rate limiter with explicit rate and burst.
func NewWithBurst(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// SetInterval updates the minimum delay between events.
func (l *Limiter) SetInterval(interval time.Duration) {
	if interval <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Every(interval))
}

// Registry hands out one shared limiter per exchange. All callers touching
// the same exchange go through the same token bucket, so provider limits
// hold even when evaluations run concurrently.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Register installs a limiter for the exchange with the given minimum
// inter-request interval. Registering twice replaces the interval but
// keeps the shared bucket.
func (r *Registry) Register(exchange string, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[exchange]; ok {
		lim.SetInterval(interval)
		return
	}
	r.limiters[exchange] = NewInterval(interval)
}

// Wait blocks until the exchange's limiter releases a token. Unknown
// exchanges are not paced.
func (r *Registry) Wait(ctx context.Context, exchange string) error {
	r.mu.RLock()
	lim, ok := r.limiters[exchange]
	r.mu.RUnlock()
	if !ok {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// Exchanges returns the registered exchange ids in sorted order.
func (r *Registry) Exchanges() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.limiters))
	for id := range r.limiters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
