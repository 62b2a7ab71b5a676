// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Routers   RoutersConfig   `mapstructure:"routers"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Selector  SelectorConfig  `mapstructure:"selector"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// FeedConfig holds streaming price feed configuration.
type FeedConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
	StaleTimeout      time.Duration `mapstructure:"stale_timeout"`
	AnnounceThreshold float64       `mapstructure:"announce_threshold"`
}

// AnnounceThresholdDecimal returns the announce threshold as a decimal fraction.
func (c *FeedConfig) AnnounceThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.AnnounceThreshold)
}

// ChainConfig holds chain node and signer configuration.
type ChainConfig struct {
	HTTPURL    string `mapstructure:"http_url"`
	ChainID    uint64 `mapstructure:"chain_id"`
	PrivateKey string `mapstructure:"private_key"`
}

// RoutersConfig holds swap router contract addresses.
type RoutersConfig struct {
	V2Router         string   `mapstructure:"v2_router"`
	V3Router         string   `mapstructure:"v3_router"`
	V3Quoter         string   `mapstructure:"v3_quoter"`
	DefaultFeeTier   int      `mapstructure:"default_fee_tier"`
	IntermediateHops []string `mapstructure:"intermediate_hops"`
}

// V2RouterAddress returns the V2 router address as common.Address.
func (c *RoutersConfig) V2RouterAddress() common.Address {
	return common.HexToAddress(c.V2Router)
}

// V3RouterAddress returns the V3 router address as common.Address.
func (c *RoutersConfig) V3RouterAddress() common.Address {
	return common.HexToAddress(c.V3Router)
}

// V3QuoterAddress returns the V3 quoter address as common.Address.
func (c *RoutersConfig) V3QuoterAddress() common.Address {
	return common.HexToAddress(c.V3Quoter)
}

// IntermediateHopAddresses returns the configured hop tokens for V2 paths.
func (c *RoutersConfig) IntermediateHopAddresses() []common.Address {
	hops := make([]common.Address, 0, len(c.IntermediateHops))
	for _, h := range c.IntermediateHops {
		hops = append(hops, common.HexToAddress(h))
	}
	return hops
}

// TradingConfig holds execution engine configuration.
type TradingConfig struct {
	TradeSize        float64       `mapstructure:"trade_size"`
	SlippageBps      int64         `mapstructure:"slippage_bps"`
	TradeInterval    time.Duration `mapstructure:"trade_interval"`
	Deadline         time.Duration `mapstructure:"deadline"`
	V2GasLimit       uint64        `mapstructure:"v2_gas_limit"`
	V3GasLimit       uint64        `mapstructure:"v3_gas_limit"`
	QuotesPerMinute  int           `mapstructure:"quotes_per_minute"`
	ConfirmationWait time.Duration `mapstructure:"confirmation_wait"`
}

// TradeSizeDecimal returns the trade size as decimal.Decimal.
func (c *TradingConfig) TradeSizeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradeSize)
}

// SelectorConfig holds pair selection configuration.
type SelectorConfig struct {
	Pairs          []string      `mapstructure:"pairs"`
	MaxActive      int           `mapstructure:"max_active"`
	EvalInterval   time.Duration `mapstructure:"eval_interval"`
	RotateInterval time.Duration `mapstructure:"rotate_interval"`
	RotationMargin float64       `mapstructure:"rotation_margin"`
	Strategy       string        `mapstructure:"strategy"`
	StatsBaseURL   string        `mapstructure:"stats_base_url"`
}

// RotationMarginDecimal returns the rotation margin as a decimal fraction.
func (c *SelectorConfig) RotationMarginDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.RotationMargin)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEXMM")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
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
	// App
	v.BindEnv("app.name", "DEXMM_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEXMM_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEXMM_LOG_LEVEL", "LOG_LEVEL")

	// Feed
	v.BindEnv("feed.websocket_url", "DEXMM_FEED_WS_URL", "FEED_WS_URL")

	// Chain
	v.BindEnv("chain.http_url", "DEXMM_CHAIN_HTTP_URL", "CHAIN_HTTP_URL")
	v.BindEnv("chain.chain_id", "DEXMM_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("chain.private_key", "DEXMM_PRIVATE_KEY", "PRIVATE_KEY")

	// Routers
	v.BindEnv("routers.v2_router", "DEXMM_V2_ROUTER")
	v.BindEnv("routers.v3_router", "DEXMM_V3_ROUTER")
	v.BindEnv("routers.v3_quoter", "DEXMM_V3_QUOTER")

	// Selector
	v.BindEnv("selector.pairs", "DEXMM_PAIRS")
	v.BindEnv("selector.stats_base_url", "DEXMM_STATS_BASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEXMM_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEXMM_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DEXMM_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dexmaker")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Feed defaults (Hyperliquid public WS)
	v.SetDefault("feed.websocket_url", "wss://api.hyperliquid.xyz/ws")
	v.SetDefault("feed.ping_interval", "30s")
	v.SetDefault("feed.pong_timeout", "10s")
	v.SetDefault("feed.initial_backoff", "1s")
	v.SetDefault("feed.max_backoff", "30s")
	v.SetDefault("feed.max_reconnects", 10)
	v.SetDefault("feed.stale_timeout", "15s")
	v.SetDefault("feed.announce_threshold", 0.001)

	// Chain defaults (HyperEVM mainnet)
	v.SetDefault("chain.http_url", "https://rpc.hyperliquid.xyz/evm")
	v.SetDefault("chain.chain_id", 999)

	// Router defaults (HyperSwap V2/V3)
	v.SetDefault("routers.v2_router", "0xb4a9C4e6Ea8E2191d2FA5B380452a634Fb21240A")
	v.SetDefault("routers.v3_router", "0x4E2960a8cd19B467b82d26D83fAcb0fAE26b094D")
	v.SetDefault("routers.v3_quoter", "0x03A918028f22D9E1473B7959C927AD7425A45C7C")
	v.SetDefault("routers.default_fee_tier", 3000)
	v.SetDefault("routers.intermediate_hops", []string{})

	// Trading defaults
	v.SetDefault("trading.trade_size", 10.0)
	v.SetDefault("trading.slippage_bps", 50)
	v.SetDefault("trading.trade_interval", "30s")
	v.SetDefault("trading.deadline", "5m")
	v.SetDefault("trading.v2_gas_limit", 300000)
	v.SetDefault("trading.v3_gas_limit", 500000)
	v.SetDefault("trading.quotes_per_minute", 60)
	v.SetDefault("trading.confirmation_wait", "2m")

	// Selector defaults
	v.SetDefault("selector.pairs", []string{"HYPE-USDC"})
	v.SetDefault("selector.max_active", 3)
	v.SetDefault("selector.eval_interval", "5m")
	v.SetDefault("selector.rotate_interval", "1m")
	v.SetDefault("selector.rotation_margin", 0.20)
	v.SetDefault("selector.strategy", "composite")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexmaker")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required")
	}
	if c.Feed.PingInterval <= 0 {
		return fmt.Errorf("feed.ping_interval must be positive")
	}
	if c.Feed.PongTimeout <= 0 || c.Feed.PongTimeout >= c.Feed.PingInterval {
		return fmt.Errorf("feed.pong_timeout must be positive and shorter than feed.ping_interval")
	}
	if c.Chain.HTTPURL == "" {
		return fmt.Errorf("chain.http_url is required")
	}
	if !common.IsHexAddress(c.Routers.V2Router) {
		return fmt.Errorf("invalid routers.v2_router: %s", c.Routers.V2Router)
	}
	if !common.IsHexAddress(c.Routers.V3Router) {
		return fmt.Errorf("invalid routers.v3_router: %s", c.Routers.V3Router)
	}
	if !common.IsHexAddress(c.Routers.V3Quoter) {
		return fmt.Errorf("invalid routers.v3_quoter: %s", c.Routers.V3Quoter)
	}
	if len(c.Selector.Pairs) == 0 {
		return fmt.Errorf("selector.pairs cannot be empty")
	}
	if c.Selector.MaxActive <= 0 {
		return fmt.Errorf("selector.max_active must be positive")
	}
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps > 10000 {
		return fmt.Errorf("trading.slippage_bps must be in [0, 10000]")
	}
	return nil
}
