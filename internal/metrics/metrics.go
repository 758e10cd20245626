// Package metrics defines the engine's Prometheus instruments and the
// metrics HTTP endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics holds the counters shared by the scanner, the gate
// service and the executor.
type EngineMetrics struct {
	Evaluations  *prometheus.CounterVec   // kind, outcome: opportunity|rejection|error
	Rejections   *prometheus.CounterVec   // kind, code
	GateRequests *prometheus.CounterVec   // exchange, result: ok|error
	GateRetries  *prometheus.CounterVec   // exchange
	Orders       *prometheus.CounterVec   // execution state
	EvalDuration *prometheus.HistogramVec // kind
}

// New registers and returns the engine metrics under the given namespace.
func New(namespace string) *EngineMetrics {
	return &EngineMetrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Arbitrage evaluations by kind and outcome",
		}, []string{"kind", "outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected opportunities by kind and reason code",
		}, []string{"kind", "code"}),
		GateRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_requests_total",
			Help:      "Market data gate requests by exchange and result",
		}, []string{"exchange", "result"}),
		GateRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_retries_total",
			Help:      "Transient gate failures that were retried",
		}, []string{"exchange"}),
		Orders: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order executions by terminal state",
		}, []string{"state"}),
		EvalDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a single opportunity evaluation",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"}),
	}
}

// Server serves the Prometheus scrape endpoint.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server on the given port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		// The scrape endpoint is best-effort; a bind failure must not
		// take the engine down.
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
