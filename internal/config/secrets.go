package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Copy the exchanges slice so the original credentials stay intact.
	out.Exchanges = make([]ExchangeConfig, len(cfg.Exchanges))
	copy(out.Exchanges, cfg.Exchanges)
	for i := range out.Exchanges {
		redact(&out.Exchanges[i].ApiKey)
		redact(&out.Exchanges[i].ApiSecret)
	}

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Export
	out.Export = cfg.Export
	redact(&out.Export.AccessKey)
	redact(&out.Export.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
