// Package config defines the engine's configuration tree and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and can be
// overridden per-field by POLYARB_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Opinion    OpinionConfig    `toml:"opinion"`
	Scan       ScanConfig       `toml:"scan"`
	Match      MatchConfig      `toml:"match"`
	Execution  ExecutionConfig  `toml:"execution"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the Polymarket signing key material.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost          string  `toml:"clob_host"`
	GammaHost         string  `toml:"gamma_host"`
	WsHost            string  `toml:"ws_host"`
	ChainID           int     `toml:"chain_id"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// OpinionConfig holds Opinion Open API parameters.
type OpinionConfig struct {
	BaseURL           string  `toml:"base_url"`
	WsURL             string  `toml:"ws_url"`
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ScanConfig holds trade sizing and opportunity acceptance parameters.
type ScanConfig struct {
	Interval         duration           `toml:"interval"`
	MarketLimit      int                `toml:"market_limit"`
	DefaultQuoteSize float64            `toml:"default_quote_size"`
	MinTradeSize     float64            `toml:"min_trade_size"`
	MaxTradeSize     float64            `toml:"max_trade_size"`
	MaxSlippageBps   float64            `toml:"max_slippage_bps"`
	MinProfitPercent float64            `toml:"min_profit_percent"`
	CatalogTTL       duration           `toml:"catalog_ttl"`
	PerVenueFeeBps   map[string]float64 `toml:"per_venue_fee_bps"`
}

// MatchConfig holds cross-venue title matching parameters.
type MatchConfig struct {
	Threshold float64 `toml:"threshold"`
	// MaxEndDateGapHours rejects pairs whose resolution dates differ by
	// more than this many hours. Zero disables the gate.
	MaxEndDateGapHours float64 `toml:"max_end_date_gap_hours"`
	// Overrides maps a Polymarket market ID to an Opinion market ID,
	// pinning pairs the similarity score misses.
	Overrides map[string]string `toml:"overrides"`
}

// ExecutionConfig holds dual-leg execution parameters.
type ExecutionConfig struct {
	AutoExecute   bool     `toml:"auto_execute"`
	Deadline      duration `toml:"deadline"`
	MaxAttempts   int      `toml:"max_attempts"`
	RetryBackoff  duration `toml:"retry_backoff"`
	PairCooldown  duration `toml:"pair_cooldown"`
	CheckBalances bool     `toml:"check_balances"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "30s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the built-in defaults. These
// match config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:          "https://clob.polymarket.com",
			GammaHost:         "https://gamma-api.polymarket.com",
			WsHost:            "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:           137,
			RequestsPerSecond: 10,
		},
		Opinion: OpinionConfig{
			BaseURL:           "https://openapi.opinion.trade",
			WsURL:             "wss://openapi.opinion.trade/ws",
			RequestsPerSecond: 10,
		},
		Scan: ScanConfig{
			Interval:         duration{60 * time.Second},
			MarketLimit:      50,
			DefaultQuoteSize: 10,
			MinTradeSize:     5,
			MaxTradeSize:     50,
			MaxSlippageBps:   150,
			MinProfitPercent: 1.0,
			CatalogTTL:       duration{5 * time.Minute},
			PerVenueFeeBps: map[string]float64{
				"polymarket": 0.0,
				"opinion":    0.0,
			},
		},
		Match: MatchConfig{
			Threshold:          0.6,
			MaxEndDateGapHours: 48,
		},
		Execution: ExecutionConfig{
			AutoExecute:   false,
			Deadline:      duration{10 * time.Second},
			MaxAttempts:   3,
			RetryBackoff:  duration{500 * time.Millisecond},
			PairCooldown:  duration{30 * time.Second},
			CheckBalances: true,
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "polyarb",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyarb-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "execution_complete", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"bot":     true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks for obviously invalid or missing values and returns one
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, bot, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is only needed when orders can be placed.
	trading := strings.ToLower(c.Mode) == "bot" || c.Execution.AutoExecute
	if trading {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	if c.Opinion.BaseURL == "" {
		errs = append(errs, "opinion: base_url must not be empty")
	}

	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be positive")
	}
	if c.Scan.DefaultQuoteSize <= 0 {
		errs = append(errs, "scan: default_quote_size must be > 0")
	}
	if c.Scan.MinTradeSize < 0 {
		errs = append(errs, "scan: min_trade_size must be >= 0")
	}
	if c.Scan.MaxTradeSize > 0 && c.Scan.MaxTradeSize < c.Scan.MinTradeSize {
		errs = append(errs, "scan: max_trade_size must not be below min_trade_size")
	}
	if c.Scan.MaxSlippageBps < 0 {
		errs = append(errs, "scan: max_slippage_bps must be >= 0")
	}

	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("match: threshold must be in [0,1], got %g", c.Match.Threshold))
	}

	if c.Execution.Deadline.Duration <= 0 {
		errs = append(errs, "execution: deadline must be positive")
	}
	if c.Execution.MaxAttempts < 1 {
		errs = append(errs, "execution: max_attempts must be >= 1")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
