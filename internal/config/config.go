// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Market    MarketConfig     `mapstructure:"market"`
	Exchanges []ExchangeConfig `mapstructure:"exchanges"`
	Arbitrage ArbitrageConfig  `mapstructure:"arbitrage"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// MarketConfig holds market data gate settings.
type MarketConfig struct {
	GatewayURL       string        `mapstructure:"gateway_url"`
	FiatURL          string        `mapstructure:"fiat_url"`
	FiatFallbackRate float64       `mapstructure:"fiat_fallback_rate"` // USD->EUR when no fiat API
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RetryMax         int           `mapstructure:"retry_max"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
}

// ExchangeConfig describes one exchange reachable through the gateway.
type ExchangeConfig struct {
	ID                string        `mapstructure:"id"`
	RateLimitInterval time.Duration `mapstructure:"rate_limit_interval"`
	TakerFeeDefault   float64       `mapstructure:"taker_fee_default"`
}

// PairJob is a same-exchange two-quote arbitrage evaluation target.
type PairJob struct {
	Exchange string `mapstructure:"exchange"`
	Base     string `mapstructure:"base"`
	Quote1   string `mapstructure:"quote1"`
	Quote2   string `mapstructure:"quote2"`
}

// CrossJob is a cross-exchange arbitrage evaluation target.
type CrossJob struct {
	Base      string   `mapstructure:"base"`
	Quote     string   `mapstructure:"quote"`
	Exchanges []string `mapstructure:"exchanges"`
	Volume    float64  `mapstructure:"volume"`
}

// ArbitrageConfig holds detection and execution settings.
type ArbitrageConfig struct {
	Reference       string        `mapstructure:"reference"`
	BalanceFraction float64       `mapstructure:"balance_fraction"`
	ConversionFee   float64       `mapstructure:"conversion_fee"`
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	Execute         bool          `mapstructure:"execute"`
	PairJobs        []PairJob     `mapstructure:"pair_jobs"`
	CrossJobs       []CrossJob    `mapstructure:"cross_jobs"`
}

// BalanceFractionDecimal returns the balance fraction as decimal.Decimal.
func (c *ArbitrageConfig) BalanceFractionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.BalanceFraction)
}

// ConversionFeeDecimal returns the fiat conversion fee as decimal.Decimal.
func (c *ArbitrageConfig) ConversionFeeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.ConversionFee)
}

// FiatFallbackRateDecimal returns the fallback fiat rate as decimal.Decimal.
func (c *MarketConfig) FiatFallbackRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FiatFallbackRate)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
	HealthPort     int  `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("BETTY")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "BETTY_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "BETTY_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "BETTY_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("market.gateway_url", "BETTY_GATEWAY_URL", "GATEWAY_URL")
	v.BindEnv("market.fiat_url", "BETTY_FIAT_URL", "FIAT_URL")

	v.BindEnv("arbitrage.reference", "BETTY_REFERENCE")
	v.BindEnv("arbitrage.execute", "BETTY_EXECUTE")

	v.BindEnv("telemetry.enabled", "BETTY_TELEMETRY_ENABLED")
	v.BindEnv("telemetry.prometheus_port", "BETTY_PROMETHEUS_PORT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "betty")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.retry_max", 3)
	v.SetDefault("market.retry_backoff", "500ms")
	v.SetDefault("market.fiat_fallback_rate", 0.0)

	v.SetDefault("arbitrage.reference", "EUR")
	v.SetDefault("arbitrage.balance_fraction", 0.75)
	v.SetDefault("arbitrage.conversion_fee", 0.0025)
	v.SetDefault("arbitrage.scan_interval", "10s")
	v.SetDefault("arbitrage.poll_timeout", "2m")
	v.SetDefault("arbitrage.execute", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Arbitrage.Reference == "" {
		return fmt.Errorf("arbitrage.reference is required")
	}
	if c.Arbitrage.BalanceFraction <= 0 || c.Arbitrage.BalanceFraction > 1 {
		return fmt.Errorf("arbitrage.balance_fraction must be in (0, 1]: %f", c.Arbitrage.BalanceFraction)
	}
	if c.Arbitrage.ConversionFee < 0 || c.Arbitrage.ConversionFee >= 1 {
		return fmt.Errorf("arbitrage.conversion_fee must be in [0, 1): %f", c.Arbitrage.ConversionFee)
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		if ex.ID == "" {
			return fmt.Errorf("exchanges[].id is required")
		}
		if seen[ex.ID] {
			return fmt.Errorf("duplicate exchange id: %s", ex.ID)
		}
		seen[ex.ID] = true
		if ex.RateLimitInterval < 0 {
			return fmt.Errorf("exchange %s: rate_limit_interval cannot be negative", ex.ID)
		}
	}
	for _, job := range c.Arbitrage.PairJobs {
		if job.Quote1 == job.Quote2 {
			return fmt.Errorf("pair job %s on %s: quote currencies must differ", job.Base, job.Exchange)
		}
		if !seen[job.Exchange] {
			return fmt.Errorf("pair job references unknown exchange: %s", job.Exchange)
		}
	}
	for _, job := range c.Arbitrage.CrossJobs {
		if len(job.Exchanges) != 2 {
			return fmt.Errorf("cross job %s/%s: exactly two exchanges required", job.Base, job.Quote)
		}
		for _, id := range job.Exchanges {
			if !seen[id] {
				return fmt.Errorf("cross job references unknown exchange: %s", id)
			}
		}
		if job.Exchanges[0] == job.Exchanges[1] {
			return fmt.Errorf("cross job %s/%s: exchanges must differ", job.Base, job.Quote)
		}
	}
	return nil
}
