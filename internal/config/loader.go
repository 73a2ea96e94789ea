package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NETFOLIO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NETFOLIO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Main ──
	setStr(&cfg.Main.Currency, "NETFOLIO_CURRENCY")
	setDuration(&cfg.Main.CacheTTL, "NETFOLIO_CACHE_TTL")
	setDuration(&cfg.Main.FetchTimeout, "NETFOLIO_FETCH_TIMEOUT")
	setDuration(&cfg.Main.SnapshotInterval, "NETFOLIO_SNAPSHOT_INTERVAL")
	setStr(&cfg.Main.Mode, "NETFOLIO_MODE")
	setStr(&cfg.Main.LogLevel, "NETFOLIO_LOG_LEVEL")

	// ── Exchanges ── keys are per exchange name, e.g.
	// NETFOLIO_EXCHANGE_BINANCE_API_KEY.
	for i := range cfg.Exchanges {
		name := strings.ToUpper(cfg.Exchanges[i].Name)
		setStr(&cfg.Exchanges[i].ApiKey, "NETFOLIO_EXCHANGE_"+name+"_API_KEY")
		setStr(&cfg.Exchanges[i].ApiSecret, "NETFOLIO_EXCHANGE_"+name+"_API_SECRET")
		setStr(&cfg.Exchanges[i].BaseURL, "NETFOLIO_EXCHANGE_"+name+"_BASE_URL")
	}

	// ── Blockchain ──
	setStr(&cfg.Blockchain.EthRpcURL, "NETFOLIO_BLOCKCHAIN_ETH_RPC_URL")
	setStringSlice(&cfg.Blockchain.EthAddresses, "NETFOLIO_BLOCKCHAIN_ETH_ADDRESSES")
	setStringSlice(&cfg.Blockchain.BtcAddresses, "NETFOLIO_BLOCKCHAIN_BTC_ADDRESSES")
	setStr(&cfg.Blockchain.BtcAPIURL, "NETFOLIO_BLOCKCHAIN_BTC_API_URL")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "NETFOLIO_ORACLE_BASE_URL")
	setDuration(&cfg.Oracle.PriceTTL, "NETFOLIO_ORACLE_PRICE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NETFOLIO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NETFOLIO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NETFOLIO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NETFOLIO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NETFOLIO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NETFOLIO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NETFOLIO_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NETFOLIO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NETFOLIO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NETFOLIO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "NETFOLIO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NETFOLIO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NETFOLIO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NETFOLIO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NETFOLIO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NETFOLIO_REDIS_TLS_ENABLED")

	// ── Export ──
	setStr(&cfg.Export.Endpoint, "NETFOLIO_EXPORT_ENDPOINT")
	setStr(&cfg.Export.Region, "NETFOLIO_EXPORT_REGION")
	setStr(&cfg.Export.Bucket, "NETFOLIO_EXPORT_BUCKET")
	setStr(&cfg.Export.AccessKey, "NETFOLIO_EXPORT_ACCESS_KEY")
	setStr(&cfg.Export.SecretKey, "NETFOLIO_EXPORT_SECRET_KEY")
	setBool(&cfg.Export.UseSSL, "NETFOLIO_EXPORT_USE_SSL")
	setBool(&cfg.Export.ForcePathStyle, "NETFOLIO_EXPORT_FORCE_PATH_STYLE")
	setStr(&cfg.Export.Prefix, "NETFOLIO_EXPORT_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "NETFOLIO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NETFOLIO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NETFOLIO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "NETFOLIO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "NETFOLIO_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NETFOLIO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NETFOLIO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NETFOLIO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NETFOLIO_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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
