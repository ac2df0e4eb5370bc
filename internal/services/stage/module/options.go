package module

import (
	"time"

	"tubesense/internal/platform/config"
)

// Options holds the stager's chunking and retry settings
type Options struct {
	BatchSize int
	MaxTries  int
	RetryBase time.Duration
	RetryMax  time.Duration
}

// FromConfig reads the stager options from config with CORE_STAGE_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_STAGE_")
	return Options{
		BatchSize: c.MayInt("BATCH_SIZE", 0),
		MaxTries:  c.MayInt("RETRIES", 3),
		RetryBase: c.MayDuration("RETRY_BASE", 250*time.Millisecond),
		RetryMax:  c.MayDuration("RETRY_MAX", 5*time.Second),
	}
}
