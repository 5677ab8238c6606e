// Package config defines the top-level configuration for the CoreYield
// orchestrator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root of the orchestrator's configuration, decoded from a
// TOML file with COREYIELD_* environment overrides applied on top.
type Config struct {
	Wallet       WalletConfig       `toml:"wallet"`
	Chain        ChainConfig        `toml:"chain"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Reconciler   ReconcilerConfig   `toml:"reconciler"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Server       ServerConfig       `toml:"server"`
	Notify       NotifyConfig       `toml:"notify"`
	Assets       []AssetConfig      `toml:"assets"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// WalletConfig holds the signing key for the orchestrated wallet.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds RPC endpoint and transaction parameters.
type ChainConfig struct {
	RPCURL          string   `toml:"rpc_url"`
	ChainID         int64    `toml:"chain_id"`
	GasLimit        uint64   `toml:"gas_limit"`
	ConfirmAttempts int      `toml:"confirm_attempts"`
	ConfirmInterval duration `toml:"confirm_interval"`
}

// OrchestratorConfig tunes the intent state machine's bounded waits.
type OrchestratorConfig struct {
	MarketPollAttempts  int      `toml:"market_poll_attempts"`
	MarketPollInterval  duration `toml:"market_poll_interval"`
	BalancePollAttempts int      `toml:"balance_poll_attempts"`
	BalancePollInterval duration `toml:"balance_poll_interval"`
	CompleteCooldown    duration `toml:"complete_cooldown"`
}

// ReconcilerConfig tunes the post-transaction balance refresh.
type ReconcilerConfig struct {
	Attempts     int      `toml:"attempts"`
	Interval     duration `toml:"interval"`
	LoopInterval duration `toml:"loop_interval"`
	Wallets      []string `toml:"wallets"`
}

// PostgresConfig holds PostgreSQL connection parameters for the tx ledger.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig covers the position cache and the event bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig controls the HTTP and WebSocket API surface.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig configures alert delivery channels and the event allowlist.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// AssetConfig declares an extra tokenizable asset beyond the built-in set.
type AssetConfig struct {
	Key        string   `toml:"key"`
	Symbol     string   `toml:"symbol"`
	Name       string   `toml:"name"`
	Decimals   int      `toml:"decimals"`
	DisplayAPY float64  `toml:"display_apy"`
	Underlying string   `toml:"underlying"`
	SYToken    string   `toml:"sy_token"`
	Factory    string   `toml:"factory"`
	Maturity   duration `toml:"maturity"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText lets the TOML decoder accept duration strings such as "5m".
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText is the encoding counterpart for round-trips.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the baseline Config that config.example.toml documents.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:          "https://rpc.test2.btcs.network",
			ChainID:         1114,
			GasLimit:        1_500_000,
			ConfirmAttempts: 30,
			ConfirmInterval: duration{2 * time.Second},
		},
		Orchestrator: OrchestratorConfig{
			MarketPollAttempts:  10,
			MarketPollInterval:  duration{2 * time.Second},
			BalancePollAttempts: 5,
			BalancePollInterval: duration{2 * time.Second},
			CompleteCooldown:    duration{3 * time.Second},
		},
		Reconciler: ReconcilerConfig{
			Attempts:     5,
			Interval:     duration{3 * time.Second},
			LoopInterval: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "coreyield",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "coreyield-data",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"deposit_confirmed", "split_confirmed", "market_created", "yield_claimed", "tx_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve": true,
	"watch": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every invalid or missing value it finds in one error, so
// a misconfigured deployment fails with the full picture.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: a signing key is required for every mode that submits
	// transactions.
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url is required")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Chain.ConfirmAttempts < 1 {
		errs = append(errs, "chain: confirm_attempts must be >= 1")
	}
	if c.Chain.ConfirmInterval.Duration <= 0 {
		errs = append(errs, "chain: confirm_interval must be > 0")
	}

	// Orchestrator
	if c.Orchestrator.MarketPollAttempts < 1 {
		errs = append(errs, "orchestrator: market_poll_attempts must be >= 1")
	}
	if c.Orchestrator.BalancePollAttempts < 1 {
		errs = append(errs, "orchestrator: balance_poll_attempts must be >= 1")
	}
	if c.Orchestrator.CompleteCooldown.Duration <= 0 {
		errs = append(errs, "orchestrator: complete_cooldown must be > 0")
	}

	// Reconciler
	if c.Reconciler.Attempts < 1 {
		errs = append(errs, "reconciler: attempts must be >= 1")
	}
	if c.Reconciler.Interval.Duration <= 0 {
		errs = append(errs, "reconciler: interval must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host is required when postgres.dsn is unset")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port out of range: %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database is required")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint is required")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket is required")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port out of range: %d", c.Server.Port))
		}
	}

	// Assets
	for i, a := range c.Assets {
		if a.Key == "" {
			errs = append(errs, fmt.Sprintf("assets[%d]: key must not be empty", i))
		}
		if a.Underlying == "" || a.SYToken == "" || a.Factory == "" {
			errs = append(errs, fmt.Sprintf("assets[%d]: underlying, sy_token, and factory must all be set", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
