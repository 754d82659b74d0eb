package config

// RedactedConfig returns a copy of cfg with secret material replaced by
// "***" so the active configuration can be logged safely.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Opinion.APIKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so the redacted copy cannot mutate the original.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Match.Overrides != nil {
		out.Match.Overrides = make(map[string]string, len(cfg.Match.Overrides))
		for k, v := range cfg.Match.Overrides {
			out.Match.Overrides[k] = v
		}
	}
	if cfg.Scan.PerVenueFeeBps != nil {
		out.Scan.PerVenueFeeBps = make(map[string]float64, len(cfg.Scan.PerVenueFeeBps))
		for k, v := range cfg.Scan.PerVenueFeeBps {
			out.Scan.PerVenueFeeBps[k] = v
		}
	}
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
