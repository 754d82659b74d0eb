package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path, merges it over the built-in defaults,
// then applies POLYARB_* environment overrides. The result has NOT been
// validated; call Config.Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// A local .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields for every POLYARB_* variable that is
// set and non-empty, so operators can inject secrets without editing TOML.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "POLYARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYARB_WALLET_KEY_PASSWORD")

	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYARB_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYARB_POLYMARKET_CHAIN_ID")
	setFloat64(&cfg.Polymarket.RequestsPerSecond, "POLYARB_POLYMARKET_RPS")

	setStr(&cfg.Opinion.BaseURL, "POLYARB_OPINION_BASE_URL")
	setStr(&cfg.Opinion.WsURL, "POLYARB_OPINION_WS_URL")
	setStr(&cfg.Opinion.APIKey, "POLYARB_OPINION_API_KEY")
	setFloat64(&cfg.Opinion.RequestsPerSecond, "POLYARB_OPINION_RPS")

	setDuration(&cfg.Scan.Interval, "POLYARB_SCAN_INTERVAL")
	setInt(&cfg.Scan.MarketLimit, "POLYARB_SCAN_MARKET_LIMIT")
	setFloat64(&cfg.Scan.DefaultQuoteSize, "POLYARB_SCAN_DEFAULT_QUOTE_SIZE")
	setFloat64(&cfg.Scan.MinTradeSize, "POLYARB_SCAN_MIN_TRADE_SIZE")
	setFloat64(&cfg.Scan.MaxTradeSize, "POLYARB_SCAN_MAX_TRADE_SIZE")
	setFloat64(&cfg.Scan.MaxSlippageBps, "POLYARB_SCAN_MAX_SLIPPAGE_BPS")
	setFloat64(&cfg.Scan.MinProfitPercent, "POLYARB_SCAN_MIN_PROFIT_PERCENT")
	setDuration(&cfg.Scan.CatalogTTL, "POLYARB_SCAN_CATALOG_TTL")

	setFloat64(&cfg.Match.Threshold, "POLYARB_MATCH_THRESHOLD")
	setFloat64(&cfg.Match.MaxEndDateGapHours, "POLYARB_MATCH_MAX_END_DATE_GAP_HOURS")

	setBool(&cfg.Execution.AutoExecute, "POLYARB_EXECUTION_AUTO_EXECUTE")
	setDuration(&cfg.Execution.Deadline, "POLYARB_EXECUTION_DEADLINE")
	setInt(&cfg.Execution.MaxAttempts, "POLYARB_EXECUTION_MAX_ATTEMPTS")
	setDuration(&cfg.Execution.RetryBackoff, "POLYARB_EXECUTION_RETRY_BACKOFF")
	setDuration(&cfg.Execution.PairCooldown, "POLYARB_EXECUTION_PAIR_COOLDOWN")
	setBool(&cfg.Execution.CheckBalances, "POLYARB_EXECUTION_CHECK_BALANCES")

	setStr(&cfg.Postgres.DSN, "POLYARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYARB_POSTGRES_POOL_MIN_CONNS")

	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYARB_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "POLYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "POLYARB_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Notify.TelegramToken, "POLYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYARB_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
}

// Typed env helpers; each only mutates the target when the variable is set
// and parses cleanly.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
