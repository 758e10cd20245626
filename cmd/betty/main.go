// Command betty scans configured markets for arbitrage and, when armed,
// executes what it finds.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	arbapp "github.com/traderbetty/engine/business/arbitrage/app"
	arbinfra "github.com/traderbetty/engine/business/arbitrage/infra"
	convertapp "github.com/traderbetty/engine/business/convert/app"
	marketapp "github.com/traderbetty/engine/business/market/app"
	"github.com/traderbetty/engine/business/market/infra/fiat"
	"github.com/traderbetty/engine/business/market/infra/gateway"
	"github.com/traderbetty/engine/business/market/infra/memory"
	portfolioapp "github.com/traderbetty/engine/business/portfolio/app"
	"github.com/traderbetty/engine/internal/config"
	"github.com/traderbetty/engine/internal/health"
	"github.com/traderbetty/engine/internal/metrics"
	"github.com/traderbetty/engine/internal/ratelimit"
)

var version = "dev"

func main() {
	var (
		configPath   = flag.String("config", "", "path to config file")
		paper        = flag.Bool("paper", false, "simulate order execution in memory")
		paperBalance = flag.Float64("paper-balance", 1000, "starting paper balance in the reference currency")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("betty %s\n", version)
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	logger.Info("starting", "app", cfg.App.Name, "version", version, "paper", *paper)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *paper, *paperBalance); err != nil && err != context.Canceled {
		logger.Error("engine exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, paper bool, paperBalance float64) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := setupTracing()
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer shutdown()
	}

	m := metrics.New("betty")
	metricsServer := metrics.NewServer(cfg.Telemetry.PrometheusPort)
	metricsServer.Start()
	healthServer := health.NewServer(cfg.Telemetry.HealthPort)
	healthServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.SetReady(false)
		_ = metricsServer.Stop(shutdownCtx)
		_ = healthServer.Stop(shutdownCtx)
	}()

	// Market data always comes from the gateway; paper mode only swaps
	// the order side for in-memory venues fed real quotes.
	gw, err := gateway.NewClient(cfg.Market.GatewayURL, cfg.Market.RequestTimeout)
	if err != nil {
		return err
	}
	providers := make([]marketapp.MarketDataProvider, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		providers = append(providers, gateway.NewProvider(
			gw, ex.ID, ex.RateLimitInterval, decimal.NewFromFloat(ex.TakerFeeDefault),
		))
	}

	limits := ratelimit.NewRegistry()
	gate := marketapp.NewService(providers, limits, marketapp.ServiceConfig{
		RetryMax:     cfg.Market.RetryMax,
		RetryBackoff: cfg.Market.RetryBackoff,
	}, logger, m)

	fiatSource := buildFiatSource(cfg, logger)
	resolver := convertapp.NewResolver(gate, fiatSource, cfg.Arbitrage.Reference, logger)

	var (
		orders   arbapp.OrderClient
		balances portfolioapp.BalanceSource
	)
	if paper {
		broker := buildPaperBroker(cfg, paperBalance)
		orders = broker
		balances = broker
	} else {
		client := gateway.NewOrderClient(gw)
		orders = client
		balances = client
	}

	valuator := portfolioapp.NewValuator(balances, resolver, logger)
	logValuation(ctx, valuator, gate.Exchanges(), logger)

	executor := arbapp.NewExecutor(orders, limits, arbapp.ExecutorConfig{
		BalanceFraction: cfg.Arbitrage.BalanceFractionDecimal(),
		PollInterval:    time.Second,
		PollTimeout:     cfg.Arbitrage.PollTimeout,
	}, logger, m)

	scanner := arbapp.NewScanner(
		arbapp.NewPairCalculator(gate, cfg.Arbitrage.ConversionFeeDecimal(), logger),
		arbapp.NewCrossCalculator(gate, logger),
		executor,
		resolver,
		arbinfra.NewConsoleReporter(logger),
		cfg.Arbitrage,
		logger,
		m,
	)

	healthServer.SetReady(true)
	return scanner.Run(ctx)
}

// buildFiatSource layers the configured rate API over the fixed
// fallback rate. With neither configured the engine still runs; fiat
// conversions then reject as unconvertible.
func buildFiatSource(cfg *config.Config, logger *slog.Logger) convertapp.FiatRateSource {
	fallbackRate := cfg.Market.FiatFallbackRateDecimal()
	fixed := fiat.NewFixedSource("USD", cfg.Arbitrage.Reference, fallbackRate)

	if cfg.Market.FiatURL == "" {
		return fixed
	}
	api, err := fiat.NewHTTPSource(cfg.Market.FiatURL, cfg.Market.RequestTimeout)
	if err != nil {
		logger.Warn("fiat rate api unavailable, using fallback rate", "error", err)
		return fixed
	}
	if !fallbackRate.IsPositive() {
		return api
	}
	return fiat.NewFallbackSource(api, fixed)
}

// buildPaperBroker creates one in-memory venue per configured exchange,
// funded in the reference currency and listing every job's symbols.
func buildPaperBroker(cfg *config.Config, balance float64) *memory.Broker {
	symbols := jobSymbols(cfg)

	venues := make([]*memory.Exchange, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		venue := memory.NewExchange(ex.ID, ex.RateLimitInterval)
		venue.SetBalance(cfg.Arbitrage.Reference, decimal.NewFromFloat(balance))
		venue.SetDefaultFee(decimal.NewFromFloat(ex.TakerFeeDefault))
		for _, symbol := range symbols {
			venue.ListSymbol(symbol)
		}
		venues = append(venues, venue)
	}
	return memory.NewBroker(venues...)
}

// jobSymbols collects every symbol any configured job can trade.
func jobSymbols(cfg *config.Config) []string {
	seen := make(map[string]bool)
	for _, job := range cfg.Arbitrage.PairJobs {
		seen[job.Base+"/"+job.Quote1] = true
		seen[job.Base+"/"+job.Quote2] = true
	}
	for _, job := range cfg.Arbitrage.CrossJobs {
		seen[job.Base+"/"+job.Quote] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

func logValuation(ctx context.Context, valuator *portfolioapp.Valuator, exchanges []string, logger *slog.Logger) {
	valuation, err := valuator.ValueAll(ctx, exchanges)
	if err != nil {
		logger.Warn("portfolio valuation failed", "error", err)
		return
	}
	logger.Info("portfolio valued",
		"reference", valuation.Reference,
		"total", valuation.Total,
		"holdings", len(valuation.Holdings),
	)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func setupTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}
