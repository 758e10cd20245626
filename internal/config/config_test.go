package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
market:
  gateway_url: http://localhost:3000
exchanges:
  - id: kraken
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Arbitrage.Reference)
	assert.Equal(t, 0.75, cfg.Arbitrage.BalanceFraction)
	assert.Equal(t, 0.0025, cfg.Arbitrage.ConversionFee)
	assert.Equal(t, 10*time.Second, cfg.Arbitrage.ScanInterval)
	assert.Equal(t, 2*time.Minute, cfg.Arbitrage.PollTimeout)
	assert.False(t, cfg.Arbitrage.Execute, "execute must default to off")
	assert.Equal(t, 3, cfg.Market.RetryMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Market.RetryBackoff)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
market:
  gateway_url: http://localhost:3000
  fiat_url: https://api.frankfurter.app
  fiat_fallback_rate: 0.92
exchanges:
  - id: kraken
    rate_limit_interval: 3s
    taker_fee_default: 0.0026
  - id: binance
    rate_limit_interval: 500ms
    taker_fee_default: 0.001
arbitrage:
  reference: EUR
  execute: true
  pair_jobs:
    - exchange: kraken
      base: BTC
      quote1: EUR
      quote2: USD
  cross_jobs:
    - base: BTC
      quote: EUR
      exchanges: [kraken, binance]
      volume: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Exchanges, 2)
	assert.Equal(t, 3*time.Second, cfg.Exchanges[0].RateLimitInterval)
	assert.Equal(t, 0.0026, cfg.Exchanges[0].TakerFeeDefault)
	assert.True(t, cfg.Arbitrage.Execute)

	require.Len(t, cfg.Arbitrage.PairJobs, 1)
	assert.Equal(t, "kraken", cfg.Arbitrage.PairJobs[0].Exchange)
	require.Len(t, cfg.Arbitrage.CrossJobs, 1)
	assert.Equal(t, 0.5, cfg.Arbitrage.CrossJobs[0].Volume)
	assert.Equal(t, []string{"kraken", "binance"}, cfg.Arbitrage.CrossJobs[0].Exchanges)
}

func TestDecimalAccessors(t *testing.T) {
	cfg := ArbitrageConfig{BalanceFraction: 0.75, ConversionFee: 0.0025}
	assert.Equal(t, "0.75", cfg.BalanceFractionDecimal().String())
	assert.Equal(t, "0.0025", cfg.ConversionFeeDecimal().String())

	market := MarketConfig{FiatFallbackRate: 0.92}
	assert.Equal(t, "0.92", market.FiatFallbackRateDecimal().String())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate exchange id",
			yaml: `
exchanges:
  - id: kraken
  - id: kraken
`,
		},
		{
			name: "pair job with equal quotes",
			yaml: `
exchanges:
  - id: kraken
arbitrage:
  pair_jobs:
    - exchange: kraken
      base: BTC
      quote1: EUR
      quote2: EUR
`,
		},
		{
			name: "pair job on unknown exchange",
			yaml: `
exchanges:
  - id: kraken
arbitrage:
  pair_jobs:
    - exchange: bitstamp
      base: BTC
      quote1: EUR
      quote2: USD
`,
		},
		{
			name: "cross job with one exchange",
			yaml: `
exchanges:
  - id: kraken
arbitrage:
  cross_jobs:
    - base: BTC
      quote: EUR
      exchanges: [kraken]
`,
		},
		{
			name: "cross job with same exchange twice",
			yaml: `
exchanges:
  - id: kraken
arbitrage:
  cross_jobs:
    - base: BTC
      quote: EUR
      exchanges: [kraken, kraken]
`,
		},
		{
			name: "balance fraction above one",
			yaml: `
exchanges:
  - id: kraken
arbitrage:
  balance_fraction: 1.5
`,
		},
		{
			name: "negative rate limit interval",
			yaml: `
exchanges:
  - id: kraken
    rate_limit_interval: -1s
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
