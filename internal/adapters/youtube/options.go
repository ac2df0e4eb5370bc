package youtube

import "tubesense/internal/platform/config"

// FromConfig reads client options from SERVICE_YOUTUBE_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("SERVICE_YOUTUBE_")
	return Options{
		APIKey:    c.MayString("API_KEY", ""),
		Endpoint:  c.MayString("ENDPOINT", ""),
		UserAgent: c.MayString("USER_AGENT", defaultUA),
		RPS:       c.MayFloat64("RPS", defaultRPS),
		Burst:     c.MayInt("BURST", 1),
		Language:  c.MayString("LANGUAGE", defaultLanguage),
		SameDay:   c.MayBool("SAME_DAY", false),
	}
}
