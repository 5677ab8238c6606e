package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over the built-in defaults and then
// applies COREYIELD_* environment overrides. Call Config.Validate on the
// result; Load itself does not validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from COREYIELD_* variables so
// secrets can come from the environment instead of the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "COREYIELD_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "COREYIELD_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "COREYIELD_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "COREYIELD_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "COREYIELD_CHAIN_ID")
	setUint64(&cfg.Chain.GasLimit, "COREYIELD_CHAIN_GAS_LIMIT")
	setInt(&cfg.Chain.ConfirmAttempts, "COREYIELD_CHAIN_CONFIRM_ATTEMPTS")
	setDuration(&cfg.Chain.ConfirmInterval, "COREYIELD_CHAIN_CONFIRM_INTERVAL")

	// ── Orchestrator ──
	setInt(&cfg.Orchestrator.MarketPollAttempts, "COREYIELD_ORCHESTRATOR_MARKET_POLL_ATTEMPTS")
	setDuration(&cfg.Orchestrator.MarketPollInterval, "COREYIELD_ORCHESTRATOR_MARKET_POLL_INTERVAL")
	setInt(&cfg.Orchestrator.BalancePollAttempts, "COREYIELD_ORCHESTRATOR_BALANCE_POLL_ATTEMPTS")
	setDuration(&cfg.Orchestrator.BalancePollInterval, "COREYIELD_ORCHESTRATOR_BALANCE_POLL_INTERVAL")
	setDuration(&cfg.Orchestrator.CompleteCooldown, "COREYIELD_ORCHESTRATOR_COMPLETE_COOLDOWN")

	// ── Reconciler ──
	setInt(&cfg.Reconciler.Attempts, "COREYIELD_RECONCILER_ATTEMPTS")
	setDuration(&cfg.Reconciler.Interval, "COREYIELD_RECONCILER_INTERVAL")
	setDuration(&cfg.Reconciler.LoopInterval, "COREYIELD_RECONCILER_LOOP_INTERVAL")
	setStringSlice(&cfg.Reconciler.Wallets, "COREYIELD_RECONCILER_WALLETS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COREYIELD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COREYIELD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COREYIELD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COREYIELD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COREYIELD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COREYIELD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COREYIELD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COREYIELD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COREYIELD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COREYIELD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COREYIELD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COREYIELD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COREYIELD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COREYIELD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COREYIELD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COREYIELD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COREYIELD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COREYIELD_S3_REGION")
	setStr(&cfg.S3.Bucket, "COREYIELD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COREYIELD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COREYIELD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COREYIELD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COREYIELD_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "COREYIELD_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COREYIELD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COREYIELD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COREYIELD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COREYIELD_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COREYIELD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COREYIELD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COREYIELD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COREYIELD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COREYIELD_MODE")
	setStr(&cfg.LogLevel, "COREYIELD_LOG_LEVEL")
}

// Each setter mutates its target only when the variable is set and non-empty.

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
