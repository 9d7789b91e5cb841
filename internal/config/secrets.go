package config

// RedactedConfig returns a copy of cfg with secrets replaced by "***", for
// logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Venues = make([]VenueConfig, len(cfg.Venues))
	for i, v := range cfg.Venues {
		redact(&v.APIKey)
		redact(&v.APISecret)
		redact(&v.SecretPassword)
		out.Venues[i] = v
	}

	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Onchain.RPCURL)
	redact(&out.Server.APIKey)

	// Copy slices so callers cannot mutate the original through the copy.
	out.Model.StaticWeights = append([]float64(nil), cfg.Model.StaticWeights...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
