// Package config defines the top-level configuration for the netfolio
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by NETFOLIO_* environment
// variables.
type Config struct {
	Main       MainConfig       `toml:"main"`
	Exchanges  []ExchangeConfig `toml:"exchanges"`
	Blockchain BlockchainConfig `toml:"blockchain"`
	Oracle     OracleConfig     `toml:"oracle"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Export     ExportConfig     `toml:"export"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
}

// MainConfig holds engine-wide parameters.
type MainConfig struct {
	// Currency is the valuation currency every holding is converted into.
	Currency string `toml:"currency"`

	// CacheTTL is how long a successful source fetch stays fresh.
	// Zero disables caching entirely (every run refetches).
	CacheTTL duration `toml:"cache_ttl"`

	// FetchTimeout bounds each individual source fetch.
	FetchTimeout duration `toml:"fetch_timeout"`

	// SnapshotInterval is how often serve mode runs a persisted snapshot
	// in the background. Zero disables periodic snapshots.
	SnapshotInterval duration `toml:"snapshot_interval"`

	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`
}

// ExchangeConfig holds credentials for one connected exchange account.
// The order of [[exchanges]] blocks in the file is the configured location
// order used when persisting location rows.
type ExchangeConfig struct {
	Name      string `toml:"name"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
	BaseURL   string `toml:"base_url"`
}

// BlockchainConfig holds the tracked on-chain accounts.
type BlockchainConfig struct {
	EthRpcURL    string   `toml:"eth_rpc_url"`
	EthAddresses []string `toml:"eth_addresses"`
	BtcAddresses []string `toml:"btc_addresses"`
	BtcAPIURL    string   `toml:"btc_api_url"`

	// Tokens maps an ERC-20 token symbol to its contract address. Token
	// balances are queried for every tracked ETH address.
	Tokens map[string]string `toml:"tokens"`
}

// OracleConfig holds the price oracle endpoint.
type OracleConfig struct {
	BaseURL string `toml:"base_url"`

	// PriceTTL is how long a resolved unit price stays cached in Redis.
	PriceTTL duration `toml:"price_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ExportConfig holds S3-compatible object storage parameters for snapshot
// exports. Export is disabled when Bucket is empty.
type ExportConfig struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`

	// RateLimit caps requests per client IP per RateLimitWindow. Zero
	// disables API throttling.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds outbound notification channels. All channels are
// optional; notifications are disabled when none is configured. Events
// filters which event types are forwarded; empty means all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML decoding.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Main: MainConfig{
			Currency:         "USD",
			CacheTTL:         duration{10 * time.Minute},
			FetchTimeout:     duration{30 * time.Second},
			SnapshotInterval: duration{24 * time.Hour},
			Mode:             "serve",
			LogLevel:         "info",
		},
		Blockchain: BlockchainConfig{
			BtcAPIURL: "https://blockstream.info/api",
		},
		Oracle: OracleConfig{
			BaseURL:  "https://api.coingecko.com/api/v3",
			PriceTTL: duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "netfolio",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimitWindow: duration{time.Second},
		},
	}
}

var validModes = map[string]bool{
	"serve": true,
	"once":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownExchanges = map[string]bool{
	"binance":  true,
	"poloniex": true,
}

// Validate checks the configuration for internal consistency. It collects
// every problem and reports them in one error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Main.Mode)] {
		errs = append(errs, fmt.Sprintf("main: unknown mode %q (valid: serve, once)", c.Main.Mode))
	}
	if !validLogLevels[strings.ToLower(c.Main.LogLevel)] {
		errs = append(errs, fmt.Sprintf("main: unknown log_level %q (valid: debug, info, warn, error)", c.Main.LogLevel))
	}
	if c.Main.Currency == "" {
		errs = append(errs, "main: currency must not be empty")
	}
	if c.Main.CacheTTL.Duration < 0 {
		errs = append(errs, "main: cache_ttl must not be negative")
	}
	if c.Main.FetchTimeout.Duration <= 0 {
		errs = append(errs, "main: fetch_timeout must be positive")
	}
	if c.Main.SnapshotInterval.Duration < 0 {
		errs = append(errs, "main: snapshot_interval must not be negative")
	}

	seen := map[string]bool{}
	for i, ex := range c.Exchanges {
		if !knownExchanges[strings.ToLower(ex.Name)] {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: unsupported exchange %q (valid: binance, poloniex)", i, ex.Name))
			continue
		}
		if seen[strings.ToLower(ex.Name)] {
			errs = append(errs, fmt.Sprintf("exchanges[%d]: duplicate exchange %q", i, ex.Name))
		}
		seen[strings.ToLower(ex.Name)] = true
		if ex.ApiKey == "" || ex.ApiSecret == "" {
			errs = append(errs, fmt.Sprintf("exchanges[%d] (%s): api_key and api_secret must both be set", i, ex.Name))
		}
	}

	if len(c.Blockchain.EthAddresses) > 0 && c.Blockchain.EthRpcURL == "" {
		errs = append(errs, "blockchain: eth_rpc_url is required when eth_addresses are configured")
	}
	if len(c.Blockchain.Tokens) > 0 && len(c.Blockchain.EthAddresses) == 0 {
		errs = append(errs, "blockchain: tokens are configured but no eth_addresses are tracked")
	}
	if len(c.Blockchain.BtcAddresses) > 0 && c.Blockchain.BtcAPIURL == "" {
		errs = append(errs, "blockchain: btc_api_url is required when btc_addresses are configured")
	}

	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		errs = append(errs, "postgres: either dsn or host/database/user must be set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	// The export key pair must be set together when a bucket is configured.
	if c.Export.Bucket != "" {
		if c.Export.Region == "" {
			errs = append(errs, "export: region is required when bucket is set")
		}
		ak := c.Export.AccessKey != ""
		sk := c.Export.SecretKey != ""
		if ak != sk {
			errs = append(errs, "export: access_key and secret_key must be set together")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ExchangeNames returns the configured exchange names in file order,
// lowercased. This is the configured location order.
func (c *Config) ExchangeNames() []string {
	names := make([]string, 0, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		names = append(names, strings.ToLower(ex.Name))
	}
	return names
}
