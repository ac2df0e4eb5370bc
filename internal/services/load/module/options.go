package module

import (
	"time"

	"tubesense/internal/platform/config"
	stagedom "tubesense/internal/services/stage/domain"
)

// Options holds the loader knobs
type Options struct {
	MaxTries    int
	RetryBase   time.Duration
	RetryMax    time.Duration
	LockTimeout time.Duration

	// Migrate applies the embedded warehouse migrations on New
	Migrate bool
	// Mirror copies recomputed aggregates into clickhouse
	Mirror bool

	PendingPrefix string
}

// FromConfig reads the loader options from config with CORE_LOAD_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_LOAD_")
	return Options{
		MaxTries:      c.MayInt("RETRIES", 3),
		RetryBase:     c.MayDuration("RETRY_BASE", 200*time.Millisecond),
		RetryMax:      c.MayDuration("RETRY_MAX", 3*time.Second),
		LockTimeout:   c.MayDuration("LOCK_TIMEOUT", 5*time.Second),
		Migrate:       c.MayBool("MIGRATE", true),
		Mirror:        c.MayBool("CH_MIRROR", false),
		PendingPrefix: c.MayString("PENDING_PREFIX", stagedom.StagedPrefix),
	}
}
