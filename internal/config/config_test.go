package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate(), "defaults must be valid for scan mode")
	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 60*time.Second, cfg.Scan.Interval.Duration)
	assert.InDelta(t, 0.6, cfg.Match.Threshold, 1e-9)
	assert.InDelta(t, 48, cfg.Match.MaxEndDateGapHours, 1e-9)
	assert.False(t, cfg.Execution.AutoExecute)
}

func TestValidateTradingNeedsWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bot"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")

	cfg.Wallet.PrivateKey = "0x01"
	assert.NoError(t, cfg.Validate())

	cfg = Defaults()
	cfg.Execution.AutoExecute = true
	err = cfg.Validate()
	require.Error(t, err, "auto_execute in any mode needs a key")
	assert.Contains(t, err.Error(), "wallet")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bot"
	cfg.Wallet.EncryptedKeyPath = "/tmp/key.enc"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")

	cfg.Wallet.KeyPassword = "hunter2"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Scan.DefaultQuoteSize = 0
	cfg.Match.Threshold = 1.5
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown mode", "unknown log_level", "default_quote_size", "threshold", "redis"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "monitor"
log_level = "debug"

[scan]
interval = "15s"
min_profit_percent = 2.5

[match.overrides]
"512329" = "1042"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.Scan.Interval.Duration)
	assert.InDelta(t, 2.5, cfg.Scan.MinProfitPercent, 1e-9)
	assert.Equal(t, "1042", cfg.Match.Overrides["512329"])
	assert.Equal(t, 50, cfg.Scan.MarketLimit, "untouched fields keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "scan"

[opinion]
api_key = "from-file"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("POLYARB_MODE", "monitor")
	t.Setenv("POLYARB_OPINION_API_KEY", "from-env")
	t.Setenv("POLYARB_SCAN_INTERVAL", "5s")
	t.Setenv("POLYARB_EXECUTION_AUTO_EXECUTE", "true")
	t.Setenv("POLYARB_NOTIFY_EVENTS", "error, exposure")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "from-env", cfg.Opinion.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Scan.Interval.Duration)
	assert.True(t, cfg.Execution.AutoExecute)
	assert.Equal(t, []string{"error", "exposure"}, cfg.Notify.Events)
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"scan\"\n"), 0o600))

	t.Setenv("POLYARB_SCAN_INTERVAL", "not-a-duration")
	t.Setenv("POLYARB_POSTGRES_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Scan.Interval.Duration)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Wallet.KeyPassword = "hunter2"
	cfg.Opinion.APIKey = "op-secret"
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Wallet.KeyPassword)
	assert.Equal(t, "***", red.Opinion.APIKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey, "original is untouched")
	assert.Equal(t, cfg.Mode, red.Mode, "non-secret fields pass through")
}
